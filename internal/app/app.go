// Package app wires configuration, data retrieval, the trend pipeline, and
// the result surfaces together.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/basinwatch/watertrend/internal/analysis"
	"github.com/basinwatch/watertrend/internal/database"
	"github.com/basinwatch/watertrend/internal/log"
	"github.com/basinwatch/watertrend/internal/nwis"
	"github.com/basinwatch/watertrend/internal/server"
	"github.com/basinwatch/watertrend/internal/snapshot"
	"github.com/basinwatch/watertrend/internal/table"
	"github.com/basinwatch/watertrend/internal/trend"
	"github.com/basinwatch/watertrend/pkg/config"
	"go.uber.org/zap"
)

// Run modes accepted by the CLI.
const (
	ModeFetch   = "fetch"
	ModeAnalyze = "analyze"
	ModeServe   = "serve"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run executes the requested mode and blocks until it completes (or, for
// serve mode, until shutdown).
func (a *App) Run(ctx context.Context, mode string) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return fmt.Errorf("error applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch mode {
	case ModeFetch:
		_, err := a.fetch(ctx, cfg)
		return err
	case ModeAnalyze:
		_, err := a.analyze(ctx, cfg)
		return err
	case ModeServe:
		return a.serve(ctx, cfg)
	}
	return fmt.Errorf("unsupported mode: %s (use %s, %s, or %s)", mode, ModeFetch, ModeAnalyze, ModeServe)
}

// fetch downloads all configured site/parameter series, aggregates them to
// daily values, and writes the snapshot (and database, when configured).
func (a *App) fetch(ctx context.Context, cfg *config.ConfigData) (*table.Table, error) {
	start, end, err := parsePeriod(cfg.Period)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.DataSource.TimeoutSeconds) * time.Second
	client := nwis.NewClient(cfg.DataSource.BaseURL, timeout, a.logger)

	tidy := table.New(nil)
	for _, site := range cfg.Sites {
		for _, param := range cfg.Parameters {
			obs, err := client.FetchDaily(ctx,
				nwis.Site{ID: site.ID, Name: site.Name, Basin: site.Basin},
				nwis.Parameter{Code: param.Code, Name: param.Name},
				start, end)
			if err != nil {
				return nil, fmt.Errorf("fetching %s/%s: %w", site.ID, param.Name, err)
			}
			tidy = tidy.Append(obs...)
		}
	}

	tidy = tidy.AggregateDaily()
	log.Infof("fetched %d daily observations for %d sites and %d parameters",
		tidy.Len(), len(cfg.Sites), len(cfg.Parameters))

	if cfg.Snapshot.Path != "" {
		if err := snapshot.Save(cfg.Snapshot.Path, tidy); err != nil {
			return nil, err
		}
		log.Infof("snapshot written to %s", cfg.Snapshot.Path)
	}

	if cfg.Storage.TimescaleDB != nil {
		db := database.NewClient(cfg.Storage.TimescaleDB.ConnectionString, a.logger)
		if err := db.Connect(); err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		if err := db.SaveObservations(tidy.Rows()); err != nil {
			return nil, err
		}
	}

	return tidy, nil
}

// loadTable prefers the snapshot and falls back to a live fetch.
func (a *App) loadTable(ctx context.Context, cfg *config.ConfigData) (*table.Table, error) {
	if cfg.Snapshot.Path != "" && snapshot.Exists(cfg.Snapshot.Path) {
		tidy, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return nil, err
		}
		log.Infof("loaded %d observations from snapshot %s", tidy.Len(), cfg.Snapshot.Path)
		return tidy, nil
	}
	return a.fetch(ctx, cfg)
}

// analyze runs the partition -> estimate -> assemble pipeline and prints the
// summary table.
func (a *App) analyze(ctx context.Context, cfg *config.ConfigData) (*analysis.Summary, error) {
	tidy, err := a.loadTable(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tidy = tidy.AggregateDaily()
	if months := lowFlowMonths(cfg.Analysis); len(months) > 0 {
		before := tidy.Len()
		tidy = tidy.FilterMonths(months)
		log.Infof("low-flow filter kept %d of %d observations", tidy.Len(), before)
	}

	set, err := tidy.Partition(cfg.Analysis.GroupBy)
	if err != nil {
		return nil, err
	}

	estimator, err := estimatorFor(cfg.Analysis)
	if err != nil {
		return nil, err
	}

	assembler, err := analysis.NewAssembler(analysis.Config{
		Alpha:   cfg.Analysis.Alpha,
		Workers: cfg.Analysis.Workers,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	summary, err := assembler.Run(ctx, set, estimator)
	if err != nil {
		return nil, err
	}

	printSummary(summary)

	if cfg.Storage.TimescaleDB != nil {
		db := database.NewClient(cfg.Storage.TimescaleDB.ConnectionString, a.logger)
		if err := db.Connect(); err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		runID, err := db.SaveSummary(summary)
		if err != nil {
			return nil, err
		}
		log.Infof("summary persisted as run %s", runID)
	}

	return summary, nil
}

// serve analyzes once, publishes the summary over the REST API, and blocks
// until a shutdown signal arrives.
func (a *App) serve(ctx context.Context, cfg *config.ConfigData) error {
	if cfg.Server == nil {
		return fmt.Errorf("serve mode requires a server section in the configuration")
	}

	summary, err := a.analyze(ctx, cfg)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl, err := server.NewController(ctx, &wg, *cfg.Server, a.logger)
	if err != nil {
		return err
	}
	ctrl.SetSummary(summary)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.StartServer()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	case err := <-errCh:
		return err
	}

	cancel()
	wg.Wait()
	log.Info("shutdown complete")
	return <-errCh
}

// estimatorFor builds the configured estimator. The estimator configuration
// is constructed here, per run; nothing shares a default model value.
func estimatorFor(cfg config.AnalysisData) (trend.Estimator, error) {
	switch cfg.Estimator {
	case "ols":
		return trend.NewOLS(trend.OLSConfig{MinPoints: cfg.MinPoints}), nil
	case "mann-kendall", "":
		return trend.NewMannKendall(trend.MannKendallConfig{MinPoints: cfg.MinPoints}), nil
	}
	return nil, fmt.Errorf("unknown estimator %q (use ols or mann-kendall)", cfg.Estimator)
}

func parsePeriod(period config.PeriodData) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", period.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad period start %q: %w", period.Start, err)
	}
	end, err := time.Parse("2006-01-02", period.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad period end %q: %w", period.End, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("period end %s precedes start %s", period.End, period.Start)
	}
	return start, end, nil
}

func lowFlowMonths(cfg config.AnalysisData) []time.Month {
	months := make([]time.Month, 0, len(cfg.LowFlowMonths))
	for _, m := range cfg.LowFlowMonths {
		months = append(months, time.Month(m))
	}
	return months
}

// printSummary writes the summary as an aligned text table on stdout.
func printSummary(summary *analysis.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	header := ""
	for _, col := range summary.Columns {
		header += col + "\t"
	}
	fmt.Fprintf(w, "%sslope\tp-value\tn\ttrend\n", header)

	for _, row := range summary.Rows {
		line := ""
		for _, v := range row.Key {
			line += v + "\t"
		}
		if row.Computed {
			fmt.Fprintf(w, "%s%.4f\t%.4f\t%d\t%v\n", line, row.Slope, row.PValue, row.N, row.Trend)
		} else {
			fmt.Fprintf(w, "%snot computed (%s)\t-\t%d\t-\n", line, row.FailureKind, row.N)
		}
	}

	w.Flush()
	fmt.Printf("\n%d partitions, estimator=%s, alpha=%g\n", len(summary.Rows), summary.Estimator, summary.Alpha)
}
