package config

import (
	"errors"
	"fmt"
	"net"
)

// storeDrivers are the accepted store.driver values.
var storeDrivers = map[string]bool{
	"file":   true,
	"sqlite": true,
	"memory": true,
}

// Validate checks the structural validity of a Config. It collects all
// problems instead of stopping at the first one.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateGateway(&cfg.Gateway)...)

	if cfg.Agent != nil && cfg.Agent.Model == "" {
		errs = append(errs, errors.New("config: agent.model is required when agent defaults are set"))
	}

	return errors.Join(errs...)
}

func validateStore(store *StoreConfig) []error {
	var errs []error
	if !storeDrivers[store.Driver] {
		errs = append(errs, fmt.Errorf("config: unknown store driver %q (supported: file, sqlite, memory)", store.Driver))
	}
	if store.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("config: store.history_limit must not be negative, got %d", store.HistoryLimit))
	}
	return errs
}

func validateGateway(gw *GatewayConfig) []error {
	if !gw.Enabled {
		return nil
	}
	var errs []error

	if _, _, err := net.SplitHostPort(gw.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: gateway.bind %q is not host:port: %w", gw.Bind, err))
	}
	if gw.AuthToken == "" {
		errs = append(errs, errors.New("config: gateway.auth_token is required when the gateway is enabled"))
	}
	if gw.ReadTimeout < 0 || gw.WriteTimeout < 0 {
		errs = append(errs, errors.New("config: gateway timeouts must not be negative"))
	}
	return errs
}
