package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crategate/crategate/history"
	"github.com/crategate/crategate/policy"
)

var (
	historyPath  string
	historyLimit int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past audit runs from the history database",
	Long: `List recorded audit runs, most recent first. History is an append-only
operator log: stored runs never feed back into gate decisions.`,
	Example: `  crategate history --db .crategate/history.db
  crategate history --db .crategate/history.db --limit 5`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyPath, "db", "", "Path to history database")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Max runs to list (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := historyPath
	if path == "" {
		path = cfg.HistoryPath
	}
	if path == "" {
		return fmt.Errorf("%w: no history database configured (--db or history_path)", policy.ErrConfig)
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs := store.List(historyLimit)
	if len(runs) == 0 {
		cmd.Println("no recorded runs")
		return nil
	}

	for _, run := range runs {
		verdict := "FAIL"
		if run.Gate.Passed {
			verdict = "PASS"
		}
		cmd.Printf("#%d %s %s findings=%d forbidden=%d unresolved_high_risk=%d expired=%d profiles=%s\n",
			run.Sequence, run.GeneratedAt, verdict, run.FindingCount,
			run.Gate.ForbiddenCount, run.Gate.UnresolvedHighRiskCount,
			run.Gate.ExpiredTransitionCount, strings.Join(run.Profiles, ","))
	}
	return nil
}
