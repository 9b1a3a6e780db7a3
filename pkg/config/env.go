package config

import (
	"github.com/kelseyhightower/envconfig"
)

// envOverrides holds the deploy-sensitive values that may be overridden from
// the environment instead of the config file. Prefix: WATERTREND_, e.g.
// WATERTREND_DB_DSN, WATERTREND_LISTEN_ADDR.
type envOverrides struct {
	DatabaseDSN  string `envconfig:"DB_DSN"`
	ListenAddr   string `envconfig:"LISTEN_ADDR"`
	NWISBaseURL  string `envconfig:"NWIS_URL"`
	SnapshotPath string `envconfig:"SNAPSHOT_PATH"`
}

// ApplyEnvOverrides overlays environment variables onto a loaded config.
// Only values that are actually set in the environment take effect.
func ApplyEnvOverrides(config *ConfigData) error {
	var env envOverrides
	if err := envconfig.Process("watertrend", &env); err != nil {
		return err
	}

	if env.DatabaseDSN != "" {
		if config.Storage.TimescaleDB == nil {
			config.Storage.TimescaleDB = &TimescaleDBData{}
		}
		config.Storage.TimescaleDB.ConnectionString = env.DatabaseDSN
	}
	if env.ListenAddr != "" && config.Server != nil {
		config.Server.ListenAddr = env.ListenAddr
	}
	if env.NWISBaseURL != "" {
		config.DataSource.BaseURL = env.NWISBaseURL
	}
	if env.SnapshotPath != "" {
		config.Snapshot.Path = env.SnapshotPath
	}

	return nil
}
