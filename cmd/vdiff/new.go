package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var newCmd = &cobra.Command{
	Use:   "new <old-ref> <new-ref>",
	Short: "List tasks introduced by the new ref",
	Long: `List tasks present in the new ref and absent from the old one.

Tasks are reported in two groups:
  completely new  no commit of the task exists in the old ref
  partially new   the task exists in the old ref, but the new ref adds commits

Examples:
  vdiff new v1.4.0 v1.5.0
  vdiff new v1.4.0 main --human`,
	Args: cobra.ExactArgs(2),
	Run:  runNew,
}

func init() {
	newCmd.Flags().BoolVar(&limitOutput, "limit", false, "Truncate long lists for downstream consumers")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	report, err := engine.AnalyzeNewFeatures(cmd.Context(), args[0], args[1])
	if err != nil {
		exitWithEngineError(err)
	}
	if limitOutput {
		report = report.Truncate(compare.DefaultLimits)
	}

	if humanOutput {
		writeNewFeaturesHuman(os.Stdout, report)
		return
	}
	outputJSON(report)
}
