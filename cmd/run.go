package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cwbudde/iteropt/internal/config"
	"github.com/cwbudde/iteropt/internal/core"
	"github.com/cwbudde/iteropt/internal/runner"
	"github.com/cwbudde/iteropt/internal/store"
)

var (
	solverName   string
	problemName  string
	dim          int
	maxIters     uint64
	targetCost   float64
	seed         int64
	startMode    string
	perturb      bool
	observeEvery uint64
	traceRun     bool
	saveRun      bool
	fromRun      string
	runDataDir   string
	runID        string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Runs one solver on one test problem. Values come from the defaults section of
--config and ITEROPT_* variables; flags given on the command line win.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&solverName, "solver", "", "Solver: brent, newton, mayfly")
	runCmd.Flags().StringVar(&problemName, "problem", "", "Test problem (see 'iteropt problems')")
	runCmd.Flags().IntVar(&dim, "dim", 0, "Problem dimension (0 = problem default)")
	runCmd.Flags().Uint64Var(&maxIters, "max-iters", 0, "Maximum number of iterations")
	runCmd.Flags().Float64Var(&targetCost, "target-cost", 0, "Stop once the best cost reaches this value")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed")
	runCmd.Flags().StringVar(&startMode, "start", "", "Start point: default or random")
	runCmd.Flags().BoolVar(&perturb, "perturb", false, "Perturb one coordinate of the warm start")
	runCmd.Flags().Uint64Var(&observeEvery, "observe-every", 0, "Log every n-th iteration")
	runCmd.Flags().BoolVar(&traceRun, "trace", false, "Write every iteration to trace.jsonl")
	runCmd.Flags().BoolVar(&saveRun, "save", true, "Save the run record")
	runCmd.Flags().StringVar(&fromRun, "from", "", "Warm start from the best parameter of a saved run")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Base directory for run records (overrides config)")
	runCmd.Flags().StringVar(&runID, "id", "", "Run ID (default: random UUID)")

	rootCmd.AddCommand(runCmd)
}

// runFromFlags merges the flags the user set into base.
func runFromFlags(cmd *cobra.Command, base config.RunConfig) config.RunConfig {
	flags := cmd.Flags()
	if flags.Changed("solver") {
		base.Solver = solverName
	}
	if flags.Changed("problem") {
		base.Problem = problemName
	}
	if flags.Changed("dim") {
		base.Dim = dim
	}
	if flags.Changed("max-iters") {
		base.MaxIters = maxIters
	}
	if flags.Changed("target-cost") {
		target := targetCost
		base.TargetCost = &target
	}
	if flags.Changed("seed") {
		base.Seed = seed
	}
	if flags.Changed("start") {
		base.Start = startMode
	}
	if flags.Changed("perturb") {
		base.Perturb = perturb
	}
	if flags.Changed("observe-every") {
		base.ObserveEvery = observeEvery
	}
	if flags.Changed("trace") {
		base.Trace = traceRun
	}
	return base
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDataDir != "" {
		cfg.DataDir = runDataDir
	}
	run := runFromFlags(cmd, cfg.Defaults)

	opts := runner.Options{
		RunID:   runID,
		DataDir: cfg.DataDir,
		Logger:  slog.Default(),
	}

	if saveRun || fromRun != "" {
		st, err := store.NewFSStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to create record store: %w", err)
		}
		if saveRun {
			opts.Store = st
		}
		if fromRun != "" {
			warm, err := st.LoadRecord(fromRun)
			if err != nil {
				return fmt.Errorf("failed to load run %s: %w", fromRun, err)
			}
			opts.Warm = warm
			slog.Info("Warm start", "from", fromRun, "best_cost", float64(warm.BestCost))
		}
	}

	out, err := runner.Execute(run, opts)
	if err != nil {
		return err
	}

	printOutcome(os.Stdout, out, saveRun)
	return nil
}

func printOutcome(w io.Writer, out *runner.Outcome, saved bool) {
	fmt.Fprint(w, out.Summary)
	fmt.Fprintf(w, "Termination: %s\n", terminationColor(out.Termination).Sprint(out.Termination))
	if saved {
		fmt.Fprintf(w, "Saved run %s\n", out.Record.RunID)
	}
	if out.TracePath != "" {
		fmt.Fprintf(w, "Trace: %s\n", out.TracePath)
	}
}

// terminationColor is green for convergence, yellow for budget limits.
func terminationColor(reason core.TerminationReason) *color.Color {
	switch reason {
	case core.TargetPrecisionReached, core.TargetCostReached, core.NoChangeInCost:
		return color.New(color.FgGreen)
	case core.MaxItersReached:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
