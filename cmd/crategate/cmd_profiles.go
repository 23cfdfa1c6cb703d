package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/tree"
)

var profilesPolicyPath string

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List configured build profiles and their scan commands",
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)

	profilesCmd.Flags().StringVar(&profilesPolicyPath, "policy", ".github/crate_dependency_policy.json", "Path to policy JSON")
}

func runProfiles(cmd *cobra.Command, args []string) error {
	store, err := policy.Load(profilesPolicyPath)
	if err != nil {
		return err
	}

	for _, profile := range store.Profiles {
		cmd.Printf("%s\n", profile.ID)
		cmd.Printf("  target:  %s\n", profile.Target)
		if len(profile.Features) > 0 {
			cmd.Printf("  features: %s\n", strings.Join(profile.Features, ","))
		}
		cmd.Printf("  command: %s\n", strings.Join(tree.Args(profile), " "))
	}
	return nil
}
