// Package main is the entry point for the cronbox CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cronbox/cronbox/internal/agentexec"
	"github.com/cronbox/cronbox/internal/config"
	"github.com/cronbox/cronbox/internal/cron"
	"github.com/cronbox/cronbox/internal/cron/sqlite"
	"github.com/cronbox/cronbox/internal/gateway"
	"github.com/cronbox/cronbox/internal/telemetry"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cronbox",
		Short:         "A cron-style scheduler for shell commands and AI agent jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), startCmd(), configCmd(), jobCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("cronbox %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger()

			var shutdownTraces func(context.Context) error
			if cfg.Telemetry.OTLPEndpoint != "" {
				shutdown, err := telemetry.SetupOTLP(cmd.Context(), cfg.Telemetry.OTLPEndpoint)
				if err != nil {
					return err
				}
				shutdownTraces = shutdown
			}
			if err := telemetry.Init(); err != nil {
				return err
			}

			manager, closeStore, err := buildManager(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := manager.Start(); err != nil {
				return err
			}

			var gw *gateway.Gateway
			if cfg.Gateway.Enabled {
				gw = gateway.New(gateway.Config{
					Bind:         cfg.Gateway.Bind,
					AuthToken:    cfg.Gateway.AuthToken,
					ReadTimeout:  cfg.Gateway.ReadTimeout.Std(),
					WriteTimeout: cfg.Gateway.WriteTimeout.Std(),
				}, manager, logger)
				if err := gw.Start(); err != nil {
					return err
				}
			}

			logger.Info("cronbox started", "version", version)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logger.Info("shutting down")

			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if gw != nil {
				if err := gw.Stop(stopCtx); err != nil {
					logger.Error("gateway shutdown failed", "error", err)
				}
			}
			if err := manager.Stop(stopCtx); err != nil {
				logger.Error("scheduler shutdown failed", "error", err)
			}
			if shutdownTraces != nil {
				if err := shutdownTraces(stopCtx); err != nil {
					logger.Error("trace exporter shutdown failed", "error", err)
				}
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (store: %s, gateway: %v)\n", cfg.Store.Driver, cfg.Gateway.Enabled)
			return nil
		},
	})
	return cmd
}

// loadConfig resolves the config path from the flag or the standard
// locations and loads it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/cronbox/cronbox.yaml → ./cronbox.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "cronbox", "cronbox.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "cronbox", "cronbox.yaml"))
	}

	candidates = append(candidates, "cronbox.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// buildManager opens the configured store and wires a manager around
// it. The returned closer releases the store.
func buildManager(cfg *config.Config, logger *slog.Logger) (*cron.Manager, func() error, error) {
	var (
		store cron.Store
		err   error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		store, err = sqlite.Open(cfg.Store.Path, cfg.Store.HistoryLimit, logger)
	case "memory":
		store = cron.NewMemoryStore(cfg.Store.HistoryLimit)
	default:
		store, err = cron.OpenFileStore(cfg.Store.Path, cfg.Store.HistoryLimit)
	}
	if err != nil {
		return nil, nil, err
	}

	manager := cron.NewManager(cron.Config{
		Store:          store,
		Logger:         logger,
		Workspace:      cfg.Scheduler.Workspace,
		DefaultTimeout: cfg.Scheduler.DefaultTimeout.Std(),
	})

	if cfg.Agent != nil {
		manager.SetAgentExecutor(agentexec.New(agentexec.Defaults{
			Model:        cfg.Agent.Model,
			APIKey:       cfg.Agent.APIKey,
			BaseURL:      cfg.Agent.BaseURL,
			SystemPrompt: cfg.Agent.SystemPrompt,
		}, nil, logger))
	}

	return manager, store.Close, nil
}
