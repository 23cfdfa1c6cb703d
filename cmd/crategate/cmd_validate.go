package main

import (
	"github.com/spf13/cobra"

	"github.com/crategate/crategate/policy"
)

var (
	validatePolicyPath string
	validateRulesDir   string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the policy document without scanning",
	Long: `Load and validate the policy document and any Rego rules, then exit.
Useful as a fast pre-merge check on policy edits.`,
	Example: `  crategate validate
  crategate validate --policy policy.json --rules rules/`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validatePolicyPath, "policy", ".github/crate_dependency_policy.json", "Path to policy JSON")
	validateCmd.Flags().StringVar(&validateRulesDir, "rules", "", "Directory of Rego deny rules")
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, err := policy.Load(validatePolicyPath)
	if err != nil {
		return err
	}

	rules, err := loadRules(cmd, store, validateRulesDir)
	if err != nil {
		return err
	}

	ruleCount := 0
	if rules != nil {
		ruleCount = rules.Len()
	}

	cmd.Printf("policy ok: profiles=%d forbidden=%d conditional=%d transitions=%d rules=%d threshold=%d\n",
		len(store.Profiles), len(store.Forbidden), len(store.Conditional),
		len(store.Transitions), ruleCount, store.HighThreshold)
	return nil
}
