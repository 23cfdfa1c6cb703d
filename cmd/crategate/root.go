package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crategate/crategate/config"
	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/telemetry"
	"github.com/crategate/crategate/tree"
)

// Exit codes. Gate failure is a reported outcome, not a tool malfunction, so
// it gets its own code distinct from configuration and parse errors.
const (
	exitOK          = 0
	exitGateFailed  = 1
	exitConfigError = 2
)

// errGateFailed marks a normal gate failure outcome.
var errGateFailed = errors.New("dependency policy gate failed")

var (
	version = "0.1.0"

	cfgFile  string
	logLevel string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "crategate",
		Short: "Dependency-policy audit gate for Rust workspaces",
		Long: `Crategate - Dependency Policy Audit Gate

Crategate reconstructs the transitive dependency graph of every configured
build profile, classifies each dependency against a forbidden/conditional
policy, checks time-boxed transition exceptions, and renders one pass/fail
verdict with a deterministic audit trail.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}
)

// Execute runs the root command and maps errors to exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errGateFailed) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(exitGateFailed)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to tool config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.SetVersionTemplate(`Crategate {{.Version}} - Dependency Policy Audit Gate
`)
}

// setup loads the optional tool config and applies the log level.
func setup() error {
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	telemetry.SetLevel(level)
	return nil
}

// loadRules compiles the optional Rego rule directory.
func loadRules(cmd *cobra.Command, store *policy.Store, dir string) (*policy.RuleEngine, error) {
	if dir == "" {
		dir = cfg.RulesDir
	}
	if dir == "" {
		return nil, nil
	}

	rules := policy.NewRuleEngine(store)
	if err := rules.LoadDir(cmd.Context(), dir); err != nil {
		return nil, err
	}
	return rules, nil
}

// newRunner builds the production cargo runner rooted at the configured
// workspace.
func newRunner(workspace string) tree.Runner {
	if workspace == "" {
		workspace = cfg.Workspace
	}
	return tree.NewCargoRunner(workspace)
}
