package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cwbudde/iteropt/internal/config"
	"github.com/cwbudde/iteropt/internal/jobs"
	"github.com/cwbudde/iteropt/internal/runner"
	"github.com/cwbudde/iteropt/internal/store"
)

var (
	batchWorkers int
	batchDataDir string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run every run of a configuration file concurrently",
	Long: `Executes all entries of the runs section of --config, each with its own
solver and executor. Runs not yet started are skipped on SIGINT/SIGTERM.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Maximum concurrent runs (overrides config, 0 = config value)")
	batchCmd.Flags().StringVar(&batchDataDir, "data-dir", "", "Base directory for run records (overrides config)")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Runs) == 0 {
		return fmt.Errorf("no runs configured (use --config with a runs section)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if batchDataDir != "" {
		cfg.DataDir = batchDataDir
	}
	if batchWorkers > 0 {
		cfg.Workers = batchWorkers
	}

	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := submitRuns(cfg, st)
	slog.Info("Starting batch", "runs", len(cfg.Runs), "workers", cfg.Workers, "data_dir", cfg.DataDir)

	runErr := manager.RunAll(ctx, cfg.Workers)
	printJobs(os.Stdout, manager.List())
	return runErr
}

// submitRuns queues one job per configured run.
func submitRuns(cfg *config.File, st store.Store) *jobs.Manager {
	manager := jobs.NewManager()
	for _, run := range cfg.Runs {
		manager.Submit(run.Label(), func(ctx context.Context, jobID string) (*store.Record, error) {
			out, err := runner.Execute(run, runner.Options{
				RunID:   jobID,
				DataDir: cfg.DataDir,
				Store:   st,
				Logger:  slog.Default(),
			})
			if err != nil {
				return nil, err
			}
			return out.Record, nil
		})
	}
	return manager
}

func printJobs(w io.Writer, list []jobs.Job) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tNAME\tSTATE\tITERATIONS\tBEST COST\tTERMINATION")
	for _, job := range list {
		iters, best, term := "-", "-", job.Error
		if job.Record != nil {
			iters = fmt.Sprintf("%d", job.Record.Iterations)
			best = fmt.Sprintf("%.6g", float64(job.Record.BestCost))
			term = job.Record.Termination
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Name, stateColor(job.State).Sprint(job.State), iters, best, term)
	}
	tw.Flush()
}

func stateColor(state jobs.State) *color.Color {
	switch state {
	case jobs.StateCompleted:
		return color.New(color.FgGreen)
	case jobs.StateFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
