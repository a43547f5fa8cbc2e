package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// healthTimeout bounds the single probe request.
const healthTimeout = 10 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check configuration and connectivity to the commit source",
	Long: `Check that the configuration is valid and that one page of commits can be
read from the project's default ref (HEAD unless default_ref is set).

Examples:
  vdiff health
  vdiff health --project backend --human`,
	Args: cobra.NoArgs,
	Run:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// HealthResponse is the JSON output of the health command.
type HealthResponse struct {
	Status    string  `json:"status"`
	Config    string  `json:"config"`
	Source    string  `json:"source"`
	URL       string  `json:"url,omitempty"`
	ProjectID string  `json:"project_id,omitempty"`
	LocalRepo string  `json:"local_repo,omitempty"`
	Ref       string  `json:"ref,omitempty"`
	Latency   float64 `json:"latency_seconds,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func runHealth(cmd *cobra.Command, args []string) {
	resp, code := checkHealth(cmd.Context())
	if humanOutput {
		fmt.Printf("status:  %s\n", resp.Status)
		fmt.Printf("config:  %s\n", resp.Config)
		fmt.Printf("source:  %s\n", resp.Source)
		if resp.Ref != "" {
			fmt.Printf("ref:     %s (%s)\n", resp.Ref, seconds(resp.Latency))
		}
		if resp.Error != "" {
			fmt.Printf("error:   %s\n", resp.Error)
		}
	} else {
		outputJSON(resp)
	}
	if code != ExitSuccess {
		writeMetrics()
		os.Exit(code)
	}
}

// checkHealth validates the config and reads one commit from the default ref.
func checkHealth(ctx context.Context) (HealthResponse, int) {
	resp := HealthResponse{Status: "unhealthy", Config: "ok", Source: "unchecked"}

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		resp.Config = "invalid"
		resp.Error = err.Error()
		return resp, ExitConfigError
	}
	resp.URL, resp.ProjectID, resp.Ref = cfg.URL, cfg.ProjectID, cfg.DefaultRef
	if cfg.UsesLocalRepo() {
		resp.URL, resp.ProjectID = "", ""
		resp.LocalRepo = cfg.LocalRepo
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	source, _, err := newSource(cfg)
	if err == nil {
		_, err = source.ListCommits(ctx, cfg.DefaultRef, 1, 1)
	}
	resp.Latency = time.Since(start).Seconds()
	if err != nil {
		resp.Source = "unreachable"
		resp.Error = err.Error()
		code := exitCodeFor(err)
		if code == ExitError {
			code = ExitFetchError
		}
		if errors.Is(err, context.DeadlineExceeded) {
			resp.Error = fmt.Sprintf("no response within %s", healthTimeout)
		}
		return resp, code
	}

	resp.Source = "ok"
	resp.Status = "healthy"
	return resp, ExitSuccess
}
