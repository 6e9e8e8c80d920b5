package cli

import (
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the configured tree from the source org to the target org",
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(c)
		},
	}
}

func NewAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Report the records the tree references outside of itself",
		RunE: func(c *cobra.Command, args []string) error {
			return runAnalyze(c)
		},
	}
}

func NewPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Export the tree as record files and an import plan",
		RunE: func(c *cobra.Command, args []string) error {
			return runPlan(c)
		},
	}
}
