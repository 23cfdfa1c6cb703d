package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crategate/crategate/audit"
	"github.com/crategate/crategate/history"
	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/report"
)

var (
	auditPolicyPath    string
	auditProfiles      []string
	auditSummaryOutput string
	auditLogOutput     string
	auditWorkspace     string
	auditRulesDir      string
	auditHistoryPath   string
	auditNow           string
	auditConcurrency   int
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the dependency policy gate across all configured profiles",
	Long: `Run the full audit: invoke cargo tree for every selected profile,
classify each dependency occurrence against the policy document, evaluate
transition validity against wall-clock time, and emit the JSON report plus
the NDJSON finding log.

Exit codes: 0 = gate passed, 1 = gate failed (policy violation found),
2 = configuration, parse, or external tool error.`,
	Example: `  crategate audit                                  # All profiles
  crategate audit --profile wasm-browser           # One profile
  crategate audit --now 2026-01-01T00:00:00Z       # Reproducible run
  crategate audit --summary-output /tmp/report.json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditPolicyPath, "policy", ".github/crate_dependency_policy.json", "Path to policy JSON")
	auditCmd.Flags().StringArrayVar(&auditProfiles, "profile", nil, "Restrict scan to one or more profile ids (repeatable)")
	auditCmd.Flags().StringVar(&auditSummaryOutput, "summary-output", "", "Override summary report path")
	auditCmd.Flags().StringVar(&auditLogOutput, "log-output", "", "Override NDJSON log path")
	auditCmd.Flags().StringVar(&auditWorkspace, "workspace", "", "Cargo workspace directory")
	auditCmd.Flags().StringVar(&auditRulesDir, "rules", "", "Directory of Rego deny rules")
	auditCmd.Flags().StringVar(&auditHistoryPath, "history", "", "Record the run in this history database")
	auditCmd.Flags().StringVar(&auditNow, "now", "", "Override the evaluation timestamp (RFC3339)")
	auditCmd.Flags().IntVar(&auditConcurrency, "concurrency", 0, "Max profiles scanned in parallel (0 = unbounded)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	store, err := policy.Load(auditPolicyPath)
	if err != nil {
		return err
	}

	rules, err := loadRules(cmd, store, auditRulesDir)
	if err != nil {
		return err
	}

	opts := []audit.Option{
		audit.WithConcurrency(pickConcurrency(auditConcurrency)),
	}
	if rules != nil {
		opts = append(opts, audit.WithRules(rules))
	}
	if auditNow != "" {
		now, err := time.Parse(time.RFC3339, auditNow)
		if err != nil {
			return fmt.Errorf("%w: invalid --now value %q: %v", policy.ErrConfig, auditNow, err)
		}
		opts = append(opts, audit.WithNow(func() time.Time { return now.UTC() }))
	}

	pipeline := audit.New(store, newRunner(auditWorkspace), auditPolicyPath, opts...)

	result, err := pipeline.Run(cmd.Context(), auditProfiles)
	if err != nil {
		return err
	}

	summaryPath := auditSummaryOutput
	if summaryPath == "" {
		summaryPath = store.Output.SummaryPath
	}
	logPath := auditLogOutput
	if logPath == "" {
		logPath = store.Output.LogPath
	}

	if err := report.WriteSummary(summaryPath, result); err != nil {
		return err
	}
	if err := report.WriteLog(logPath, result); err != nil {
		return err
	}

	if err := recordHistory(result); err != nil {
		return err
	}

	return printVerdict(cmd, result, summaryPath, logPath)
}

func pickConcurrency(flag int) int {
	if flag > 0 {
		return flag
	}
	return cfg.Concurrency
}

func recordHistory(result report.Report) error {
	path := auditHistoryPath
	if path == "" {
		path = cfg.HistoryPath
	}
	if path == "" {
		return nil
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.Record(result)
	return err
}

func printVerdict(cmd *cobra.Command, result report.Report, summaryPath, logPath string) error {
	gate := result.Gate
	if gate.Passed {
		cmd.Printf("dependency policy gate passed: findings=%d forbidden=%d unresolved_high_risk=%d expired_transitions=%d\n",
			result.FindingCount, gate.ForbiddenCount, gate.UnresolvedHighRiskCount, gate.ExpiredTransitionCount)
		return nil
	}

	cmd.Printf("dependency policy gate failed: forbidden=%d unresolved_high_risk=%d expired_transitions=%d\n",
		gate.ForbiddenCount, gate.UnresolvedHighRiskCount, gate.ExpiredTransitionCount)
	for _, f := range result.Findings {
		cmd.Printf("  %s\n", f.Describe())
	}
	cmd.Printf("Summary: %s\n", summaryPath)
	cmd.Printf("Log: %s\n", logPath)
	return errGateFailed
}
