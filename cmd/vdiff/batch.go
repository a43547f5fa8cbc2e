package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var batchCmd = &cobra.Command{
	Use:   "batch <old..new>...",
	Short: "Compare several version pairs in one run",
	Long: `Compare each old..new pair in turn, as compare does. A pair that fails is
reported next to the successful ones and does not stop the batch.

Exits with the code of the first failed pair, or 0 if every pair compared.

Examples:
  vdiff batch v1.3.0..v1.4.0 v1.4.0..v1.5.0
  vdiff batch v1.4.0..v1.5.0 v1.4.0..main --human --limit`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&limitOutput, "limit", false, "Truncate long lists for downstream consumers")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	pairs := make([]compare.Pair, 0, len(args))
	for _, arg := range args {
		p, err := compare.ParsePair(arg)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		pairs = append(pairs, p)
	}

	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	report := engine.BatchCompare(cmd.Context(), pairs...)
	if limitOutput {
		report = report.Truncate(compare.DefaultLimits)
	}

	if humanOutput {
		writeBatchHuman(os.Stdout, report)
	} else {
		outputJSON(report)
	}

	if len(report.Failures) > 0 {
		writeMetrics()
		os.Exit(exitCodeFor(report.Failures[0].Err))
	}
}
