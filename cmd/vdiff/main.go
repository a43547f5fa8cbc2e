// Package main provides the vdiff CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	logJSON     bool
	metricsFile string
	projectName string
	repoPath    string
	limitOutput bool
)

// metricsRegistry collects fetch metrics for --metrics-file.
var metricsRegistry = prometheus.NewRegistry()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	writeMetrics()
	if err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vdiff",
	Short: "Find work items that differ between two versions of a GitLab project",
	Long: `vdiff compares two refs (tags or branches) of a GitLab project by the task
identifiers (e.g. PROJ-123) declared in their commit messages.

It answers two questions before an upgrade:
  - which tasks from the old version are missing in the new one (regressions)
  - which tasks are new in the new version (features)

Commits are matched by task identifier plus normalised subject line, so
cherry-picks and rebases are not reported as missing.

All commands output JSON by default for agent consumption.
Use --human for human-readable output.

Environment Variables:
  GITLAB_URL         GitLab base URL
  GITLAB_TOKEN       Private access token
  GITLAB_PROJECT_ID  Numeric ID or full path of the project
  VDIFF_LOCAL_REPO   Read history from this clone instead of GitLab`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(verbose, logJSON))
	},
}

func init() {
	// Load .env file if present (for GITLAB_TOKEN and friends)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log to stderr as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "Use a named project preset from the config file")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "Read history from a local clone instead of GitLab")
	rootCmd.Version = Version
}

// newLogger builds the stderr logger; stdout is reserved for results.
func newLogger(debug, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// writeMetrics writes the metrics registry in the textfile-collector format.
func writeMetrics() {
	if metricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(metricsFile, metricsRegistry); err != nil {
		slog.Warn("writing metrics file failed", "path", metricsFile, "error", err)
	}
}
