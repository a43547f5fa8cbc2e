package main

import (
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <ref>",
	Short: "Summarise how a ref's commits reference tasks",
	Long: `Fetch a ref and summarise how its commits reference tasks: commits with and
without task identifiers, distinct tasks, tasks per commit and a sample.

Useful for checking the task patterns before a comparison.

Examples:
  vdiff stats v1.5.0
  vdiff stats main --human`,
	Args: cobra.ExactArgs(1),
	Run:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	stats, err := engine.RefStatistics(cmd.Context(), args[0])
	if err != nil {
		exitWithEngineError(err)
	}

	if humanOutput {
		writeStatsHuman(os.Stdout, stats)
		return
	}
	outputJSON(stats)
}
