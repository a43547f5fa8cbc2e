package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/versiondiff/internal/compare"
)

var validateCmd = &cobra.Command{
	Use:   "validate <ref>...",
	Short: "Check that refs exist and count their commit pages",
	Long: `Check that each ref exists and count its commit pages.

Exits with code 3 if any ref does not exist.

Examples:
  vdiff validate v1.4.0 v1.5.0
  vdiff validate main --human`,
	Args: cobra.MinimumNArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidateResponse is the JSON output of the validate command.
type ValidateResponse struct {
	Valid bool                    `json:"valid"`
	Refs  []compare.RefValidation `json:"refs"`
}

func runValidate(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	engine := mustBuildEngine(cfg)

	results := engine.ValidateRefs(cmd.Context(), args...)
	valid := true
	for _, v := range results {
		valid = valid && v.Exists
	}

	if humanOutput {
		writeValidationHuman(os.Stdout, results)
	} else {
		outputJSON(ValidateResponse{Valid: valid, Refs: results})
	}
	if !valid {
		writeMetrics()
		os.Exit(ExitRefNotFound)
	}
}
