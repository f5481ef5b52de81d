package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/iteropt/internal/store"
)

var (
	resultsDataDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
	showTrace      bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage saved run records",
	Long: `Manage saved run records including listing, inspecting and cleaning old runs.
Saved records can seed new runs with 'run --from'.`,
}

var listResultsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved runs",
	Long:  `Display all runs with run ID, problem, solver, timestamp, iterations, best cost and size on disk.`,
	RunE:  runListResults,
}

var showResultCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowResult,
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on retention policy.
You can keep only the N most recent runs or delete runs older than N days.`,
	RunE: runCleanResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.AddCommand(listResultsCmd)
	resultsCmd.AddCommand(showResultCmd)
	resultsCmd.AddCommand(cleanResultsCmd)

	resultsCmd.PersistentFlags().StringVar(&resultsDataDir, "data-dir", "", "Base directory for run records (overrides config)")

	showResultCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the recorded trace")

	cleanResultsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs (0 = keep all)")
	cleanResultsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanResultsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openResultsStore() (*store.FSStore, error) {
	dir := resultsDataDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.DataDir
	}
	st, err := store.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}
	return st, nil
}

func runListResults(cmd *cobra.Command, args []string) error {
	st, err := openResultsStore()
	if err != nil {
		return err
	}

	infos, err := st.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPROBLEM\tSOLVER\tTIMESTAMP\tITERATIONS\tBEST COST\tSIZE")
	fmt.Fprintln(w, "------\t-------\t------\t---------\t----------\t---------\t----")

	for _, info := range infos {
		size, err := getDirSize(filepath.Join(st.BaseDir(), "runs", info.RunID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.6g\t%s\n",
			shortID(info.RunID),
			info.Problem,
			info.Solver,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Iterations,
			float64(info.BestCost),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowResult(cmd *cobra.Command, args []string) error {
	st, err := openResultsStore()
	if err != nil {
		return err
	}

	record, err := st.LoadRecord(args[0])
	if err != nil {
		return err
	}
	printRecord(os.Stdout, record)

	if !showTrace {
		return nil
	}
	entries, err := store.LoadTrace(st.BaseDir(), record.RunID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("\nNo trace recorded.")
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	printTrace(os.Stdout, entries)
	return nil
}

func printRecord(w io.Writer, r *store.Record) {
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "    problem:       %s (dim %d)\n", r.Config.Problem, r.Config.Dim)
	fmt.Fprintf(w, "    solver:        %s\n", r.Config.Solver)
	fmt.Fprintf(w, "    timestamp:     %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "    param (best):  %v\n", r.BestParam)
	fmt.Fprintf(w, "    cost (best):   %v\n", float64(r.BestCost))
	fmt.Fprintf(w, "    iters (best):  %d\n", r.LastBestIter)
	fmt.Fprintf(w, "    iters (total): %d\n", r.Iterations)
	fmt.Fprintf(w, "    evaluations:   apply=%d gradient=%d hessian=%d\n",
		r.Counts.Apply, r.Counts.Gradient, r.Counts.Hessian)
	fmt.Fprintf(w, "    termination:   %s\n", r.Termination)
	fmt.Fprintf(w, "    time:          %.3fs\n", r.Duration)
}

func printTrace(w io.Writer, entries []store.TraceEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nITER\tCOST\tBEST COST\tPARAM")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%v\t%v\t%v\n", e.Iteration, float64(e.Cost), float64(e.BestCost), e.Param)
	}
	tw.Flush()
}

func runCleanResults(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	st, err := openResultsStore()
	if err != nil {
		return err
	}

	infos, err := st.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs to clean.")
		return nil
	}

	toDelete := selectRecordsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No runs match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s/%s, %s)\n",
			shortID(info.RunID),
			info.Problem,
			info.Solver,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := st.DeleteRecord(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.RunID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRecordsForDeletion applies the retention policy: runs older than
// olderThanDays, plus everything but the keepLast most recent runs.
func selectRecordsForDeletion(infos []store.RecordInfo, keepLast int, olderThanDays int) []store.RecordInfo {
	var toDelete []store.RecordInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RecordInfo, len(infos))
		copy(sorted, infos)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
