package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var missingCmd = &cobra.Command{
	Use:   "missing <old-ref> <new-ref>",
	Short: "Detect tasks present in the old ref and missing from the new one",
	Long: `Detect tasks present in the old ref and missing from the new one.

Tasks are reported in two groups:
  completely missing  no commit of the task exists in the new ref
  partially missing   the task exists in the new ref, but some of its
                      commits from the old ref do not

A result marked "partial" means some commit pages could not be fetched;
treat its counts as a lower bound.

Examples:
  vdiff missing v1.4.0 v1.5.0
  vdiff missing release-2024.10 main --human
  vdiff missing v1.4.0 v1.5.0 --limit`,
	Args: cobra.ExactArgs(2),
	Run:  runMissing,
}

func init() {
	missingCmd.Flags().BoolVar(&limitOutput, "limit", false, "Truncate long lists for downstream consumers")
	rootCmd.AddCommand(missingCmd)
}

func runMissing(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	report, err := engine.DetectMissingTasks(cmd.Context(), args[0], args[1])
	if err != nil {
		exitWithEngineError(err)
	}
	if limitOutput {
		report = report.Truncate(compare.DefaultLimits)
	}

	if humanOutput {
		writeMissingHuman(os.Stdout, report)
		return
	}
	outputJSON(report)
}
