package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treemigrate",
		Short: "treemigrate - hierarchical record migration between orgs",
		Long: `treemigrate copies a tree of related records from a source org into a target org.
Every id reference is rewritten to the target, lookup dependencies are migrated first
and a failed run deletes everything it created.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("source-org", "s", "", "Alias of the source org")
	flags.StringP("target-org", "t", "", "Alias of the target org")
	flags.StringP("export-config", "e", "", "Path to the export config (JSON or YAML)")
	flags.BoolP("debug", "d", false, "Enable debug logging")
	flags.String("output-dir", "_output", "Directory for record dumps and plans")
	flags.String("log-file", "", "Also write logs to this file")
	flags.String("api-version", "62.0", "REST API version")

	rootCmd.AddCommand(NewMigrateCmd(), NewAnalyzeCmd(), NewPlanCmd())

	return rootCmd
}
