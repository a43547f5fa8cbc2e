package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var compareCmd = &cobra.Command{
	Use:   "compare <old-ref> <new-ref>",
	Short: "Classify tasks in both directions",
	Long: `Classify the tasks of two refs in both directions: missing, new and common.

Examples:
  vdiff compare v1.4.0 v1.5.0
  vdiff compare v1.4.0 v1.5.0 --human --limit`,
	Args: cobra.ExactArgs(2),
	Run:  runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&limitOutput, "limit", false, "Truncate long lists for downstream consumers")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	report, err := engine.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		exitWithEngineError(err)
	}
	if limitOutput {
		report = report.Truncate(compare.DefaultLimits)
	}

	if humanOutput {
		writeCompareHuman(os.Stdout, report)
		return
	}
	outputJSON(report)
}
