package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sites:
  - id: "01518000"
    name: Tioga River at Tioga PA
    basin: tioga
  - id: "01548500"
    basin: pine
parameters:
  - code: "00945"
    name: sulfate
  - code: "00940"
    name: chloride
period:
  start: "1980-01-01"
  end: "2020-12-31"
analysis:
  estimator: mann-kendall
  alpha: 0.05
  min_points: 10
  group_by: [basin, parameter]
  workers: 4
  low_flow_months: [7, 8, 9]
datasource:
  base_url: https://waterservices.usgs.gov/nwis
  timeout_seconds: 60
snapshot:
  path: /var/lib/watertrend/observations.snapshot
storage:
  timescaledb:
    connection_string: host=localhost dbname=watertrend
server:
  listen_addr: 127.0.0.1
  port: 8530
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	provider := NewYAMLProvider(writeConfig(t, sampleYAML))
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, "01518000", cfg.Sites[0].ID)
	assert.Equal(t, "tioga", cfg.Sites[0].Basin)
	assert.Equal(t, "pine", cfg.Sites[1].Basin)

	require.Len(t, cfg.Parameters, 2)
	assert.Equal(t, "sulfate", cfg.Parameters[0].Name)

	assert.Equal(t, "1980-01-01", cfg.Period.Start)
	assert.Equal(t, "mann-kendall", cfg.Analysis.Estimator)
	assert.Equal(t, 0.05, cfg.Analysis.Alpha)
	assert.Equal(t, 10, cfg.Analysis.MinPoints)
	assert.Equal(t, []string{"basin", "parameter"}, cfg.Analysis.GroupBy)
	assert.Equal(t, []int{7, 8, 9}, cfg.Analysis.LowFlowMonths)

	assert.Equal(t, 60, cfg.DataSource.TimeoutSeconds)
	assert.Equal(t, "/var/lib/watertrend/observations.snapshot", cfg.Snapshot.Path)
	require.NotNil(t, cfg.Storage.TimescaleDB)
	assert.Equal(t, "host=localhost dbname=watertrend", cfg.Storage.TimescaleDB.ConnectionString)
	require.NotNil(t, cfg.Server)
	assert.Equal(t, 8530, cfg.Server.Port)

	assert.True(t, provider.IsReadOnly())
}

func TestYAMLProviderSections(t *testing.T) {
	provider := NewYAMLProvider(writeConfig(t, sampleYAML))

	sites, err := provider.GetSites()
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	params, err := provider.GetParameters()
	require.NoError(t, err)
	assert.Len(t, params, 2)
}

func TestYAMLProviderMissingFile(t *testing.T) {
	provider := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := provider.LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := func() *ConfigData {
		return &ConfigData{
			Sites:      []SiteData{{ID: "01", Basin: "tioga"}},
			Parameters: []ParameterData{{Code: "00945", Name: "sulfate"}},
			Period:     PeriodData{Start: "1980-01-01", End: "2020-12-31"},
			Analysis:   AnalysisData{Alpha: 0.05, GroupBy: []string{"basin"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ConfigData)
		wantErr bool
	}{
		{"valid", func(*ConfigData) {}, false},
		{"no sites", func(c *ConfigData) { c.Sites = nil }, true},
		{"no parameters", func(c *ConfigData) { c.Parameters = nil }, true},
		{"missing period", func(c *ConfigData) { c.Period.End = "" }, true},
		{"alpha unset", func(c *ConfigData) { c.Analysis.Alpha = 0 }, true},
		{"alpha out of range", func(c *ConfigData) { c.Analysis.Alpha = 1.5 }, true},
		{"no group columns", func(c *ConfigData) { c.Analysis.GroupBy = nil }, true},
		{"bad low-flow month", func(c *ConfigData) { c.Analysis.LowFlowMonths = []int{13} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("WATERTREND_DB_DSN", "host=db dbname=override")
	t.Setenv("WATERTREND_SNAPSHOT_PATH", "/tmp/override.snapshot")

	cfg := &ConfigData{}
	require.NoError(t, ApplyEnvOverrides(cfg))

	require.NotNil(t, cfg.Storage.TimescaleDB)
	assert.Equal(t, "host=db dbname=override", cfg.Storage.TimescaleDB.ConnectionString)
	assert.Equal(t, "/tmp/override.snapshot", cfg.Snapshot.Path)
}
