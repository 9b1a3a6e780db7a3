package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML-tagged mirror structs. ConfigData itself carries JSON tags for the
// REST surface, so the YAML shapes are declared separately and converted.
type yamlConfig struct {
	Sites      []siteYAML      `yaml:"sites"`
	Parameters []parameterYAML `yaml:"parameters"`
	Period     periodYAML      `yaml:"period"`
	Analysis   analysisYAML    `yaml:"analysis"`
	DataSource *dataSourceYAML `yaml:"datasource,omitempty"`
	Snapshot   *snapshotYAML   `yaml:"snapshot,omitempty"`
	Storage    *storageYAML    `yaml:"storage,omitempty"`
	Server     *serverYAML     `yaml:"server,omitempty"`
}

type siteYAML struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name,omitempty"`
	Basin string `yaml:"basin"`
}

type parameterYAML struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type periodYAML struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type analysisYAML struct {
	Estimator     string   `yaml:"estimator"`
	Alpha         float64  `yaml:"alpha"`
	MinPoints     int      `yaml:"min_points,omitempty"`
	GroupBy       []string `yaml:"group_by"`
	Workers       int      `yaml:"workers,omitempty"`
	LowFlowMonths []int    `yaml:"low_flow_months,omitempty"`
}

type dataSourceYAML struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

type snapshotYAML struct {
	Path string `yaml:"path,omitempty"`
}

type storageYAML struct {
	TimescaleDB *timescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type timescaleDBYAML struct {
	ConnectionString string `yaml:"connection_string"`
}

type serverYAML struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var raw yamlConfig
	err = yaml.Unmarshal(cfgFile, &raw)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{
		Sites:      make([]SiteData, len(raw.Sites)),
		Parameters: make([]ParameterData, len(raw.Parameters)),
		Period:     PeriodData{Start: raw.Period.Start, End: raw.Period.End},
		Analysis: AnalysisData{
			Estimator:     raw.Analysis.Estimator,
			Alpha:         raw.Analysis.Alpha,
			MinPoints:     raw.Analysis.MinPoints,
			GroupBy:       raw.Analysis.GroupBy,
			Workers:       raw.Analysis.Workers,
			LowFlowMonths: raw.Analysis.LowFlowMonths,
		},
	}

	for i, site := range raw.Sites {
		config.Sites[i] = SiteData{ID: site.ID, Name: site.Name, Basin: site.Basin}
	}
	for i, param := range raw.Parameters {
		config.Parameters[i] = ParameterData{Code: param.Code, Name: param.Name}
	}

	if raw.DataSource != nil {
		config.DataSource = DataSourceData{
			BaseURL:        raw.DataSource.BaseURL,
			TimeoutSeconds: raw.DataSource.TimeoutSeconds,
		}
	}
	if raw.Snapshot != nil {
		config.Snapshot = SnapshotData{Path: raw.Snapshot.Path}
	}
	if raw.Storage != nil && raw.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: raw.Storage.TimescaleDB.ConnectionString,
		}
	}
	if raw.Server != nil {
		config.Server = &ServerData{
			ListenAddr: raw.Server.ListenAddr,
			Port:       raw.Server.Port,
		}
	}

	y.config = config
	return config, nil
}

// GetSites returns the configured sites
func (y *YAMLProvider) GetSites() ([]SiteData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config.Sites, nil
}

// GetParameters returns the configured parameters
func (y *YAMLProvider) GetParameters() ([]ParameterData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config.Parameters, nil
}

// IsReadOnly returns true: YAML files are not managed at runtime
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}
