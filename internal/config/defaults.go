package config

import "path/filepath"

// Built-in defaults.
const (
	DefaultDataDir     = "/var/lib/cronbox"
	DefaultStoreDriver = "file"
	DefaultGatewayBind = "127.0.0.1:8420"
)

// ApplyDefaults fills zero-valued fields with their defaults. Load
// calls it automatically; tests and embedders building a Config by
// hand call it directly.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Driver {
		case "sqlite":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "cronbox.db")
		case "file":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "jobs.json")
		}
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = DefaultGatewayBind
	}
}
