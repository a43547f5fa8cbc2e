package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest <version>",
	Short: "List tags newer than a version",
	Long: `List the tags a version could be upgraded to, nearest first.

A semantic version (1.4.0 or v1.4.0) is compared with every tag that parses
as one; pre-release tags are skipped unless the version is a pre-release.
Any other version must be a tag name, and tags committed after it are listed.

Examples:
  vdiff suggest v1.4.0
  vdiff suggest release-2024-03 -n 3 --human`,
	Args: cobra.ExactArgs(1),
	Run:  runSuggest,
}

// SuggestResponse is the JSON output of the suggest command.
type SuggestResponse struct {
	Current     string               `json:"current"`
	Suggestions []compare.Suggestion `json:"suggestions"`
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", compare.DefaultSuggestions, "Show at most this many tags (0 for all)")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	suggestions, err := engine.SuggestUpgrades(cmd.Context(), args[0], suggestLimit)
	if err != nil {
		exitWithEngineError(err)
	}

	if humanOutput {
		writeSuggestionsHuman(os.Stdout, args[0], suggestions)
		return
	}
	outputJSON(SuggestResponse{Current: args[0], Suggestions: suggestions})
}
