package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/versiondiff/internal/config"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Show the effective configuration.

Settings come from ~/.config/vdiff/config.yml (or $XDG_CONFIG_HOME/vdiff),
then the selected --project preset, then environment variables:

  GITLAB_URL, GITLAB_TOKEN, GITLAB_PROJECT_ID, VDIFF_DEFAULT_REF,
  VDIFF_PER_PAGE, VDIFF_WORKERS, VDIFF_TIMEOUT, VDIFF_RETRIES,
  VDIFF_MAX_PAGES, VDIFF_RATE_LIMIT, VDIFF_TASK_PATTERNS (comma-separated)

A .env file in the working directory is loaded first.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with tokens masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if humanOutput {
			fmt.Println(config.GlobalConfigPath())
			return
		}
		outputJSON(map[string]string{"path": config.GlobalConfigPath()})
	},
}

// ConfigResponse is the JSON output of config show.
type ConfigResponse struct {
	Path         string   `json:"path"`
	Project      string   `json:"project,omitempty"`
	URL          string   `json:"gitlab_url"`
	Token        string   `json:"gitlab_token"`
	ProjectID    string   `json:"project_id"`
	DefaultRef   string   `json:"default_ref"`
	PerPage      int      `json:"per_page"`
	Workers      int      `json:"workers"`
	Timeout      string   `json:"timeout"`
	Retries      int      `json:"retries"`
	MaxPages     int      `json:"max_pages"`
	RateLimit    float64  `json:"rate_limit"`
	TaskPatterns []string `json:"task_patterns"`
	Projects     []string `json:"projects,omitempty"`
	Problems     []string `json:"problems,omitempty"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	red := cfg.Redacted()

	if humanOutput {
		out, err := yaml.Marshal(red)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", config.GlobalConfigPath(), out)
		if err := cfg.Validate(); err != nil {
			fmt.Println("\n# problems:")
			for _, p := range problems(err) {
				fmt.Printf("#   %s\n", p)
			}
		}
		return nil
	}

	resp := ConfigResponse{
		Path:         config.GlobalConfigPath(),
		Project:      projectName,
		URL:          red.URL,
		Token:        red.Token,
		ProjectID:    red.ProjectID,
		DefaultRef:   red.DefaultRef,
		PerPage:      red.PerPage,
		Workers:      red.Workers,
		Timeout:      red.Timeout.String(),
		MaxPages:     red.MaxPages,
		RateLimit:    red.RateLimit,
		TaskPatterns: red.TaskPatterns,
	}
	if red.Retries != nil {
		resp.Retries = *red.Retries
	}
	for name := range red.Projects {
		resp.Projects = append(resp.Projects, name)
	}
	sort.Strings(resp.Projects)
	if err := cfg.Validate(); err != nil {
		resp.Problems = problems(err)
	}
	return outputJSON(resp)
}

// problems flattens a validation error into one message per problem.
func problems(err error) []string {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	out := make([]string, len(merr.Errors))
	for i, e := range merr.Errors {
		out[i] = e.Error()
	}
	return out
}
