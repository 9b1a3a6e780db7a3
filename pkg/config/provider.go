// Package config loads watertrend configuration from YAML files or SQLite
// databases behind a common provider interface.
package config

import "fmt"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSites() ([]SiteData, error)
	GetParameters() ([]ParameterData, error)

	// Configuration management
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Sites      []SiteData      `json:"sites"`
	Parameters []ParameterData `json:"parameters"`
	Period     PeriodData      `json:"period"`
	Analysis   AnalysisData    `json:"analysis"`
	DataSource DataSourceData  `json:"datasource,omitempty"`
	Snapshot   SnapshotData    `json:"snapshot,omitempty"`
	Storage    StorageData     `json:"storage,omitempty"`
	Server     *ServerData     `json:"server,omitempty"`
}

// SiteData identifies one monitoring site and the basin it drains.
type SiteData struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Basin string `json:"basin"`
}

// ParameterData maps an NWIS parameter code to the constituent name used in
// the summary table (e.g. 00945 -> sulfate).
type ParameterData struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PeriodData bounds the analysis window, dates formatted as 2006-01-02.
type PeriodData struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisData holds the estimation settings. Alpha must be set explicitly;
// there is no hidden default threshold.
type AnalysisData struct {
	Estimator     string   `json:"estimator"`
	Alpha         float64  `json:"alpha"`
	MinPoints     int      `json:"min_points,omitempty"`
	GroupBy       []string `json:"group_by"`
	Workers       int      `json:"workers,omitempty"`
	LowFlowMonths []int    `json:"low_flow_months,omitempty"`
}

// DataSourceData holds the NWIS endpoint settings.
type DataSourceData struct {
	BaseURL        string `json:"base_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// SnapshotData holds the cached-table location.
type SnapshotData struct {
	Path string `json:"path,omitempty"`
}

// StorageData holds the configuration for persistence backends.
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// ServerData holds the result server settings.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// Validate checks the cross-cutting requirements a provider cannot express:
// at least one site and parameter, a bounded period, and an explicit alpha.
func (c *ConfigData) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	if len(c.Parameters) == 0 {
		return fmt.Errorf("no parameters configured")
	}
	if c.Period.Start == "" || c.Period.End == "" {
		return fmt.Errorf("analysis period start and end are required")
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return fmt.Errorf("analysis alpha must be set explicitly in (0, 1), got %v", c.Analysis.Alpha)
	}
	if len(c.Analysis.GroupBy) == 0 {
		return fmt.Errorf("analysis group_by must name at least one column")
	}
	for _, m := range c.Analysis.LowFlowMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("low_flow_months entries must be 1-12, got %d", m)
		}
	}
	return nil
}
