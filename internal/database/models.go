package database

import (
	"time"
)

// ObservationRecord is one daily-aggregated observation persisted for audit
// and re-analysis. Discharge is nullable because many water-quality samples
// have no paired streamflow measurement.
type ObservationRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement;column:id"`
	SiteID        string    `gorm:"column:site_id;not null;index:idx_obs_series,priority:1"`
	Parameter     string    `gorm:"column:parameter;not null;index:idx_obs_series,priority:2"`
	Basin         string    `gorm:"column:basin;not null"`
	Date          time.Time `gorm:"column:date;not null;index:idx_obs_series,priority:3"`
	Concentration float64   `gorm:"column:concentration;not null"`
	Discharge     *float64  `gorm:"column:discharge"`
	CreatedAt     time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ObservationRecord
func (ObservationRecord) TableName() string {
	return "observations"
}

// TrendRun records one invocation of the analysis pipeline. Summary rows
// reference it by RunID.
type TrendRun struct {
	RunID     string    `gorm:"primaryKey;column:run_id"`
	Estimator string    `gorm:"column:estimator;not null"`
	Alpha     float64   `gorm:"column:alpha;not null"`
	GroupBy   string    `gorm:"column:group_by;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for TrendRun
func (TrendRun) TableName() string {
	return "trend_runs"
}

// TrendSummaryRecord is one partition's result within a run. Slope and
// PValue are nullable: a row that could not be computed stores NULLs plus
// the failure kind, so "no trend" and "could not evaluate" stay distinct in
// the database too.
type TrendSummaryRecord struct {
	ID          uint     `gorm:"primaryKey;autoIncrement;column:id"`
	RunID       string   `gorm:"column:run_id;not null;index"`
	GroupKey    string   `gorm:"column:group_key;not null"`
	Slope       *float64 `gorm:"column:slope"`
	PValue      *float64 `gorm:"column:p_value"`
	N           int      `gorm:"column:n;not null"`
	Computed    bool     `gorm:"column:computed;not null"`
	FailureKind string   `gorm:"column:failure_kind"`
	Trend       bool     `gorm:"column:trend;not null"`
}

// TableName specifies the table name for TrendSummaryRecord
func (TrendSummaryRecord) TableName() string {
	return "trend_summaries"
}
