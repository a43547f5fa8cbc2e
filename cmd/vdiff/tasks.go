package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var tasksSearch string

var tasksCmd = &cobra.Command{
	Use:   "tasks <ref> [task-id...]",
	Short: "Show where tasks appear in a ref",
	Long: `Look tasks up in one ref. For each task the oldest and newest commit naming
it are reported, or status not_found.

Give task identifiers as arguments, or --search with a regular expression
matched against every task identifier in the ref.

Examples:
  vdiff tasks v1.5.0 PROJ-101 PROJ-102
  vdiff tasks main --search '^PROJ-1[0-9]{2}$' --human`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksSearch, "search", "s", "", "Report every task whose identifier matches this regular expression")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) {
	ref, ids := args[0], args[1:]
	if tasksSearch == "" && len(ids) == 0 {
		exitWithError(ExitError, "give task identifiers or --search")
	}
	if tasksSearch != "" && len(ids) > 0 {
		exitWithError(ExitError, "task identifiers and --search are mutually exclusive")
	}

	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	var (
		report *compare.TaskReport
		err    error
	)
	if tasksSearch != "" {
		report, err = engine.SearchTasks(cmd.Context(), ref, tasksSearch)
	} else {
		report, err = engine.TaskDetails(cmd.Context(), ref, ids...)
	}
	if errors.Is(err, compare.ErrBadSearchPattern) {
		exitWithError(ExitError, "%v", err)
	}
	if err != nil {
		exitWithEngineError(err)
	}

	if humanOutput {
		writeTaskReportHuman(os.Stdout, report)
		return
	}
	outputJSON(report)
}
