// Package server exposes the latest assembled trend summary over a small
// REST API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/basinwatch/watertrend/internal/analysis"
	"github.com/basinwatch/watertrend/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	serverCfg config.ServerData
	Server    http.Server
	logger    *zap.SugaredLogger
	handlers  *Handlers
	summaryMu sync.RWMutex
	summary   *analysis.Summary
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if sc.Port == 0 {
		return nil, fmt.Errorf("server port must be set")
	}

	ctrl := &Controller{
		ctx:       ctx,
		wg:        wg,
		serverCfg: sc,
		logger:    logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	router := mux.NewRouter()
	router.HandleFunc("/api/summary", ctrl.handlers.GetSummary).Methods(http.MethodGet)
	router.HandleFunc("/api/summary/{basin}", ctrl.handlers.GetBasinSummary).Methods(http.MethodGet)
	router.HandleFunc("/health", ctrl.handlers.Health).Methods(http.MethodGet)

	ctrl.Server = http.Server{
		Addr:         fmt.Sprintf("%s:%d", sc.ListenAddr, sc.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return ctrl, nil
}

// SetSummary publishes a freshly assembled summary to the API.
func (c *Controller) SetSummary(summary *analysis.Summary) {
	c.summaryMu.Lock()
	c.summary = summary
	c.summaryMu.Unlock()
}

// Summary returns the currently published summary, or nil before the first
// analysis completes.
func (c *Controller) Summary() *analysis.Summary {
	c.summaryMu.RLock()
	defer c.summaryMu.RUnlock()
	return c.summary
}

// StartServer starts serving and blocks until the controller context is
// cancelled, then shuts down gracefully.
func (c *Controller) StartServer() error {
	c.wg.Add(1)
	defer c.wg.Done()

	errCh := make(chan error, 1)
	go func() {
		c.logger.Infof("result server listening on %s", c.Server.Addr)
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("result server error: %w", err)
	case <-c.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("result server shutdown: %w", err)
	}
	c.logger.Info("result server stopped")
	return nil
}
