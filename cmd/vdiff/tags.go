package main

import (
	"os"

	"github.com/spf13/cobra"
)

var tagsLimit int

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the project's tags, newest first",
	Long: `List the project's tags ordered by commit date, newest first.

Examples:
  vdiff tags
  vdiff tags --limit 10 --human`,
	Args: cobra.NoArgs,
	Run:  runTags,
}

func init() {
	tagsCmd.Flags().IntVarP(&tagsLimit, "limit", "n", 0, "Show at most this many tags (0 for all)")
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	tags, err := engine.ListTags(cmd.Context())
	if err != nil {
		exitWithEngineError(err)
	}
	if tagsLimit > 0 && len(tags) > tagsLimit {
		tags = tags[:tagsLimit]
	}

	if humanOutput {
		writeTagsHuman(os.Stdout, tags)
		return
	}
	outputJSON(tags)
}
