// Package database persists observations and trend summaries to a
// TimescaleDB/PostgreSQL database through GORM.
package database

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/basinwatch/watertrend/internal/analysis"
	"github.com/basinwatch/watertrend/internal/log"
	"github.com/basinwatch/watertrend/internal/table"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// observationBatchSize keeps bulk inserts under the postgres parameter limit.
const observationBatchSize = 500

// Client holds the connection to the database
type Client struct {
	DB     *gorm.DB // Exported so it can be accessed from other packages
	dsn    string
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(dsn string, logger *zap.SugaredLogger) *Client {
	return &Client{
		dsn:    dsn,
		logger: logger,
	}
}

// Connect connects to the database
func (c *Client) Connect() error {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to database...")
	db, err := gorm.Open(postgres.Open(c.dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return fmt.Errorf("unable to create database connection: %w", err)
	}
	c.DB = db
	log.Info("database connection successful")

	return nil
}

// Migrate creates or updates the schema for all persisted models.
func (c *Client) Migrate() error {
	return c.DB.AutoMigrate(&ObservationRecord{}, &TrendRun{}, &TrendSummaryRecord{})
}

// SaveObservations bulk-inserts observations in batches.
func (c *Client) SaveObservations(rows []table.Observation) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]ObservationRecord, len(rows))
	for i, obs := range rows {
		records[i] = ObservationRecord{
			SiteID:        obs.SiteID,
			Parameter:     obs.Parameter,
			Basin:         obs.Basin,
			Date:          obs.Date,
			Concentration: obs.Concentration,
		}
		if obs.HasDischarge {
			discharge := obs.Discharge
			records[i].Discharge = &discharge
		}
	}

	if err := c.DB.CreateInBatches(records, observationBatchSize).Error; err != nil {
		return fmt.Errorf("error inserting observations: %w", err)
	}
	c.logger.Infof("saved %d observations", len(records))
	return nil
}

// SaveSummary persists a run and its rows in one transaction and returns the
// generated run ID.
func (c *Client) SaveSummary(summary *analysis.Summary) (string, error) {
	runID := uuid.New().String()

	run := TrendRun{
		RunID:     runID,
		Estimator: summary.Estimator,
		Alpha:     summary.Alpha,
		GroupBy:   strings.Join(summary.Columns, ","),
	}

	records := make([]TrendSummaryRecord, len(summary.Rows))
	for i, row := range summary.Rows {
		records[i] = TrendSummaryRecord{
			RunID:       runID,
			GroupKey:    strings.Join(row.Key, "/"),
			N:           row.N,
			Computed:    row.Computed,
			FailureKind: row.FailureKind,
			Trend:       row.Trend,
		}
		if row.Computed && !math.IsNaN(row.Slope) {
			slope := row.Slope
			pValue := row.PValue
			records[i].Slope = &slope
			records[i].PValue = &pValue
		}
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return "", fmt.Errorf("error saving trend summary: %w", err)
	}

	c.logger.Infow("saved trend summary", "run_id", runID, "rows", len(records))
	return runID, nil
}

// GetSummaryRows fetches the stored rows for a run, in group-key order.
func (c *Client) GetSummaryRows(runID string) ([]TrendSummaryRecord, error) {
	var records []TrendSummaryRecord
	if err := c.DB.Where("run_id = ?", runID).Order("group_key").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("error querying trend summaries: %w", err)
	}
	return records, nil
}
