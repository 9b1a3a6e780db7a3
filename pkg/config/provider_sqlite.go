package config

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	sites, err := s.GetSites()
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	config.Sites = sites

	parameters, err := s.GetParameters()
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	config.Parameters = parameters

	if err := s.loadAnalysis(config); err != nil {
		return nil, fmt.Errorf("failed to load analysis settings: %w", err)
	}

	if err := s.loadCollaborators(config); err != nil {
		return nil, fmt.Errorf("failed to load collaborator settings: %w", err)
	}

	return config, nil
}

// GetSites returns site configurations from the database
func (s *SQLiteProvider) GetSites() ([]SiteData, error) {
	query := `
		SELECT id, name, basin
		FROM sites
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteData
	for rows.Next() {
		var site SiteData
		var name sql.NullString
		if err := rows.Scan(&site.ID, &name, &site.Basin); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		site.Name = name.String
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// GetParameters returns parameter configurations from the database
func (s *SQLiteProvider) GetParameters() ([]ParameterData, error) {
	query := `
		SELECT code, name
		FROM parameters
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY code
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var parameters []ParameterData
	for rows.Next() {
		var param ParameterData
		if err := rows.Scan(&param.Code, &param.Name); err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}
		parameters = append(parameters, param)
	}

	return parameters, rows.Err()
}

// loadAnalysis populates the period and analysis sections from the singleton
// analysis row.
func (s *SQLiteProvider) loadAnalysis(config *ConfigData) error {
	query := `
		SELECT period_start, period_end, estimator, alpha, min_points,
		       group_by, workers, low_flow_months
		FROM analysis
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var groupBy, lowFlowMonths sql.NullString
	var minPoints, workers sql.NullInt64

	err := s.db.QueryRow(query).Scan(
		&config.Period.Start, &config.Period.End,
		&config.Analysis.Estimator, &config.Analysis.Alpha,
		&minPoints, &groupBy, &workers, &lowFlowMonths,
	)
	if err != nil {
		return err
	}

	config.Analysis.MinPoints = int(minPoints.Int64)
	config.Analysis.Workers = int(workers.Int64)
	config.Analysis.GroupBy = splitList(groupBy.String)
	for _, field := range splitList(lowFlowMonths.String) {
		var month int
		if _, err := fmt.Sscanf(field, "%d", &month); err != nil {
			return fmt.Errorf("bad low_flow_months entry %q: %w", field, err)
		}
		config.Analysis.LowFlowMonths = append(config.Analysis.LowFlowMonths, month)
	}

	return nil
}

// loadCollaborators populates the datasource, snapshot, storage, and server
// sections. All are optional.
func (s *SQLiteProvider) loadCollaborators(config *ConfigData) error {
	query := `
		SELECT nwis_base_url, nwis_timeout_seconds, snapshot_path,
		       timescaledb_connection_string, server_listen_addr, server_port
		FROM collaborators
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var baseURL, snapshotPath, connString, listenAddr sql.NullString
	var timeoutSeconds, serverPort sql.NullInt64

	err := s.db.QueryRow(query).Scan(
		&baseURL, &timeoutSeconds, &snapshotPath,
		&connString, &listenAddr, &serverPort,
	)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	config.DataSource = DataSourceData{
		BaseURL:        baseURL.String,
		TimeoutSeconds: int(timeoutSeconds.Int64),
	}
	config.Snapshot = SnapshotData{Path: snapshotPath.String}
	if connString.Valid && connString.String != "" {
		config.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: connString.String}
	}
	if serverPort.Valid && serverPort.Int64 > 0 {
		config.Server = &ServerData{
			ListenAddr: listenAddr.String,
			Port:       int(serverPort.Int64),
		}
	}

	return nil
}

// IsReadOnly returns false: SQLite configs can be managed in place
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}

// splitList splits a comma-separated column value, tolerating spaces and an
// empty string.
func splitList(value string) []string {
	var fields []string
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}
