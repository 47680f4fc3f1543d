// Package config handles YAML configuration loading, environment
// variable expansion, defaulting, and structural validation for
// cronbox.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML durations in time.ParseDuration notation
// ("30s", "5m") or as bare nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var asInt int64
	if err := node.Decode(&asInt); err == nil {
		*d = Duration(asInt)
		return nil
	}

	var asString string
	if err := node.Decode(&asString); err != nil {
		return fmt.Errorf("config: duration must be a string or integer: %w", err)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", asString, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is the base directory for state files. Store paths
	// default to locations under it.
	DataDir string `yaml:"data_dir,omitempty"`

	Store     StoreConfig     `yaml:"store,omitempty"`
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	// Agent holds the default settings applied to agent jobs that do
	// not carry their own.
	Agent *AgentDefaults `yaml:"agent,omitempty"`
}

// StoreConfig selects and tunes the job store backend.
type StoreConfig struct {
	// Driver is one of "file", "sqlite", or "memory".
	Driver string `yaml:"driver,omitempty"`

	// Path overrides the store file location. Ignored by the memory
	// driver.
	Path string `yaml:"path,omitempty"`

	// HistoryLimit caps retained execution records per job.
	// 0 selects the built-in default.
	HistoryLimit int `yaml:"history_limit,omitempty"`
}

// SchedulerConfig tunes the cron engine.
type SchedulerConfig struct {
	// Workspace is the default working directory for job commands.
	Workspace string `yaml:"workspace,omitempty"`

	// DefaultTimeout bounds each execution unless the job overrides
	// it. 0 selects the built-in default; negative disables timeouts.
	DefaultTimeout Duration `yaml:"default_timeout,omitempty"`
}

// GatewayConfig controls the HTTP admin API.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Bind    string `yaml:"bind,omitempty"`

	// AuthToken protects all /api routes with bearer authentication.
	// Required when the gateway is enabled.
	AuthToken string `yaml:"auth_token,omitempty"`

	ReadTimeout  Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty"`
}

// TelemetryConfig controls trace export. Metrics and spans stay
// disabled when the endpoint is empty.
type TelemetryConfig struct {
	// OTLPEndpoint is the host:port of an OTLP/HTTP collector.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// AgentDefaults are the fallback settings for agent jobs.
type AgentDefaults struct {
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}
