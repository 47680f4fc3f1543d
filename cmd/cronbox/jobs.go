package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cronbox/cronbox/internal/cron"
	"github.com/cronbox/cronbox/internal/translate"
	"github.com/spf13/cobra"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(
		jobAddCmd(), jobAddAgentCmd(), jobListCmd(), jobGetCmd(),
		jobPauseCmd(), jobResumeCmd(), jobRemoveCmd(), jobRunCmd(),
		jobHistoryCmd(), jobPurgeCmd(),
	)
	return cmd
}

// withManager handles the boilerplate shared by every job subcommand:
// load config, open the store, run, close.
func withManager(cmd *cobra.Command, fn func(ctx context.Context, m *cron.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manager, closeStore, err := buildManager(cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return fn(cmd.Context(), manager)
}

// scheduleFromFlags resolves --schedule / --every into a cron
// expression.
func scheduleFromFlags(cmd *cobra.Command) (string, error) {
	schedule, _ := cmd.Flags().GetString("schedule")
	every, _ := cmd.Flags().GetString("every")
	switch {
	case schedule != "" && every != "":
		return "", fmt.Errorf("--schedule and --every are mutually exclusive")
	case every != "":
		return translate.Translate(every)
	case schedule != "":
		return schedule, nil
	default:
		return "", fmt.Errorf("either --schedule or --every is required")
	}
}

func addScheduleFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("schedule", "s", "", `Cron expression ("*/5 * * * *")`)
	cmd.Flags().StringP("every", "e", "", `English phrase ("every day at 6am")`)
}

func jobAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <command>",
		Short: "Add a shell job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := scheduleFromFlags(cmd)
			if err != nil {
				return err
			}
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				job, err := m.AddJob(ctx, args[0], schedule, args[1])
				if err != nil {
					return err
				}
				printJob(job)
				return nil
			})
		},
	}
	addScheduleFlags(cmd)
	return cmd
}

func jobAddAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-agent <name> <prompt>",
		Short: "Add an AI agent job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := scheduleFromFlags(cmd)
			if err != nil {
				return err
			}
			agentCfg := cron.AgentJobConfig{}
			agentCfg.Model, _ = cmd.Flags().GetString("model")
			agentCfg.APIKey, _ = cmd.Flags().GetString("api-key")
			agentCfg.BaseURL, _ = cmd.Flags().GetString("base-url")
			agentCfg.SystemPrompt, _ = cmd.Flags().GetString("system-prompt")
			agentCfg.Workspace, _ = cmd.Flags().GetString("workspace")

			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				job, err := m.AddAgentJob(ctx, args[0], schedule, args[1], agentCfg)
				if err != nil {
					return err
				}
				printJob(job)
				return nil
			})
		},
	}
	addScheduleFlags(cmd)
	cmd.Flags().String("model", "", "Model name (falls back to agent defaults)")
	cmd.Flags().String("api-key", "", "API key")
	cmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().String("system-prompt", "", "System prompt")
	cmd.Flags().String("workspace", "", "Working directory for the agent")
	return cmd
}

func jobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				jobs, err := m.ListJobs(ctx)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Println("No jobs.")
					return nil
				}
				for _, job := range jobs {
					next := "-"
					if job.NextRun != nil {
						next = job.NextRun.Local().Format(time.RFC3339)
					}
					fmt.Printf("%s  %-8s %-20s %-16s next: %s\n", job.ID, job.Status, truncate(job.Name, 20), job.Schedule, next)
				}
				return nil
			})
		},
	}
}

func jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				job, err := m.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				printJob(job)
				return nil
			})
		},
	}
}

func jobPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				job, err := m.PauseJob(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Paused %s (%s)\n", job.Name, job.ID)
				return nil
			})
		},
	}
}

func jobResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				job, err := m.ResumeJob(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Resumed %s (%s)\n", job.Name, job.ID)
				return nil
			})
		},
	}
}

func jobRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job (its history is kept until purged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				if err := m.RemoveJob(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func jobRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				rec, err := m.RunJob(ctx, args[0])
				if err != nil {
					return err
				}
				printExecution(rec)
				return nil
			})
		},
	}
}

func jobHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show execution history, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				recs, err := m.History(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No executions.")
					return nil
				}
				for _, rec := range recs {
					printExecution(rec)
					fmt.Println()
				}
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Maximum records to show (0 = all)")
	return cmd
}

func jobPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Delete all execution history for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(ctx context.Context, m *cron.Manager) error {
				if err := m.PurgeHistory(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Purged history for %s\n", args[0])
				return nil
			})
		},
	}
}

func printJob(job *cron.Job) {
	fmt.Printf("ID:       %s\n", job.ID)
	fmt.Printf("Name:     %s\n", job.Name)
	fmt.Printf("Type:     %s\n", job.Type)
	fmt.Printf("Schedule: %s\n", job.Schedule)
	fmt.Printf("Status:   %s\n", job.Status)
	fmt.Printf("Command:  %s\n", job.Command)
	if job.Timeout > 0 {
		fmt.Printf("Timeout:  %s\n", job.Timeout)
	}
	if job.LastRun != nil {
		fmt.Printf("Last run: %s\n", job.LastRun.Local().Format(time.RFC3339))
	}
	if job.NextRun != nil {
		fmt.Printf("Next run: %s\n", job.NextRun.Local().Format(time.RFC3339))
	}
	fmt.Printf("Runs:     %d ok, %d failed\n", job.RunCount, job.FailCount)
}

func printExecution(rec *cron.Execution) {
	fmt.Printf("%s  %s  started %s", rec.ID, rec.Status, rec.StartedAt.Local().Format(time.RFC3339))
	if rec.ExitCode != nil {
		fmt.Printf("  exit %d", *rec.ExitCode)
	}
	fmt.Println()
	if rec.Stdout != "" {
		fmt.Printf("  stdout: %s\n", truncate(rec.Stdout, 200))
	}
	if rec.Stderr != "" {
		fmt.Printf("  stderr: %s\n", truncate(rec.Stderr, 200))
	}
	if rec.Error != "" {
		fmt.Printf("  error: %s\n", rec.Error)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
