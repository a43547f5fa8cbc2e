package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// Environment variables that override the config file.
const (
	EnvURL          = "GITLAB_URL"
	EnvToken        = "GITLAB_TOKEN"
	EnvProjectID    = "GITLAB_PROJECT_ID"
	EnvDefaultRef   = "VDIFF_DEFAULT_REF"
	EnvPerPage      = "VDIFF_PER_PAGE"
	EnvWorkers      = "VDIFF_WORKERS"
	EnvTimeout      = "VDIFF_TIMEOUT"
	EnvRetries      = "VDIFF_RETRIES"
	EnvMaxPages     = "VDIFF_MAX_PAGES"
	EnvRateLimit    = "VDIFF_RATE_LIMIT"
	EnvTaskPatterns = "VDIFF_TASK_PATTERNS"
	EnvLocalRepo    = "VDIFF_LOCAL_REPO"
)

// DefaultRef is the ref probed by the health check.
const DefaultRef = "HEAD"

// ErrNotConfigured is returned by Validate when connection settings are missing.
var ErrNotConfigured = errors.New("GitLab connection not configured")

// ErrUnknownProject is returned by Load for a project name with no preset.
var ErrUnknownProject = errors.New("unknown project")

// Project is a named preset selecting one repository.
type Project struct {
	URL          string   `yaml:"gitlab_url,omitempty"`
	Token        string   `yaml:"gitlab_token,omitempty"`
	ProjectID    string   `yaml:"project_id"`
	DefaultRef   string   `yaml:"default_ref,omitempty"`
	TaskPatterns []string `yaml:"task_patterns,omitempty"`
	LocalRepo    string   `yaml:"local_repo,omitempty"`
}

// Config represents ~/.config/vdiff/config.yml after overrides.
type Config struct {
	URL          string        `yaml:"gitlab_url,omitempty"`
	Token        string        `yaml:"gitlab_token,omitempty"`
	ProjectID    string        `yaml:"project_id,omitempty"`
	DefaultRef   string        `yaml:"default_ref,omitempty"`
	PerPage      int           `yaml:"per_page,omitempty"`
	Workers      int           `yaml:"workers,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Retries      *int          `yaml:"retries,omitempty"` // nil means the default
	MaxPages     int           `yaml:"max_pages,omitempty"`
	RateLimit    float64       `yaml:"rate_limit,omitempty"` // requests per second
	TaskPatterns []string      `yaml:"task_patterns,omitempty"`
	LocalRepo    string        `yaml:"local_repo,omitempty"` // read history from a clone instead of GitLab

	Projects map[string]Project `yaml:"projects,omitempty"`
}

// Load returns the global config with the named project preset applied (if
// project is non-empty), then environment overrides, then defaults.
func Load(project string) (*Config, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}

	cfg := *global
	cfg.TaskPatterns = append([]string(nil), global.TaskPatterns...)
	if project != "" {
		p, ok := global.Projects[project]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProject, project)
		}
		cfg.applyProject(p)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyProject(p Project) {
	c.ProjectID = p.ProjectID
	if p.URL != "" {
		c.URL = p.URL
	}
	if p.Token != "" {
		c.Token = p.Token
	}
	if p.DefaultRef != "" {
		c.DefaultRef = p.DefaultRef
	}
	if len(p.TaskPatterns) > 0 {
		c.TaskPatterns = append([]string(nil), p.TaskPatterns...)
	}
	if p.LocalRepo != "" {
		c.LocalRepo = p.LocalRepo
	}
}

func (c *Config) applyEnv() error {
	c.URL = GetConfigValue(EnvURL, c.URL)
	c.Token = GetConfigValue(EnvToken, c.Token)
	c.ProjectID = GetConfigValue(EnvProjectID, c.ProjectID)
	c.DefaultRef = GetConfigValue(EnvDefaultRef, c.DefaultRef)
	c.LocalRepo = GetConfigValue(EnvLocalRepo, c.LocalRepo)

	var merr *multierror.Error
	intVar := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	intVar(EnvPerPage, &c.PerPage)
	intVar(EnvWorkers, &c.Workers)
	intVar(EnvMaxPages, &c.MaxPages)

	if v := os.Getenv(EnvRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", EnvRetries, err))
		} else {
			c.Retries = &n
		}
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", EnvTimeout, err))
		} else {
			c.Timeout = d
		}
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", EnvRateLimit, err))
		} else {
			c.RateLimit = f
		}
	}
	if v := os.Getenv(EnvTaskPatterns); v != "" {
		c.TaskPatterns = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.TaskPatterns = append(c.TaskPatterns, p)
			}
		}
	}
	return merr.ErrorOrNil()
}

// UnmarshalYAML reads the file form of Config. timeout may be a Go duration
// ("45s") or a bare number of seconds, as in VDIFF_TIMEOUT.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, v := value.Content[i], value.Content[i+1]
			if key.Value != "timeout" || v.Kind != yaml.ScalarNode {
				continue
			}
			if tag := v.ShortTag(); tag != "!!int" && tag != "!!float" {
				continue
			}
			d, err := parseTimeout(v.Value)
			if err != nil {
				return fmt.Errorf("line %d: timeout: %w", v.Line, err)
			}
			v.SetString(d.String())
		}
	}
	return value.Decode((*plain)(c))
}

// parseTimeout accepts a Go duration ("45s") or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func (c *Config) applyDefaults() {
	c.URL = strings.TrimRight(c.URL, "/")
	if c.DefaultRef == "" {
		c.DefaultRef = DefaultRef
	}
	if c.PerPage == 0 {
		c.PerPage = fetch.DefaultPerPage
	}
	if c.Workers == 0 {
		c.Workers = fetch.DefaultPoolSize
	}
	if c.Timeout == 0 {
		c.Timeout = fetch.DefaultTimeout
	}
	if c.Retries == nil {
		n := fetch.DefaultRetries
		c.Retries = &n
	}
	if c.MaxPages == 0 {
		c.MaxPages = fetch.DefaultMaxPages
	}
	if c.RateLimit == 0 {
		c.RateLimit = gitlab.DefaultRateLimit
	}
	if len(c.TaskPatterns) == 0 {
		c.TaskPatterns = []string{taskindex.DefaultPattern}
	}
}

// UsesLocalRepo reports whether history is read from a local clone.
func (c *Config) UsesLocalRepo() bool {
	return c.LocalRepo != ""
}

// Validate reports every missing or out-of-range setting. GitLab connection
// settings are not required when a local clone is configured.
func (c *Config) Validate() error {
	var merr *multierror.Error
	if !c.UsesLocalRepo() && (c.URL == "" || c.Token == "" || c.ProjectID == "") {
		var missing []string
		if c.URL == "" {
			missing = append(missing, "gitlab_url")
		}
		if c.Token == "" {
			missing = append(missing, "gitlab_token")
		}
		if c.ProjectID == "" {
			missing = append(missing, "project_id")
		}
		merr = multierror.Append(merr, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", ")))
	}
	if c.PerPage < 1 || c.PerPage > gitlab.MaxPerPage {
		merr = multierror.Append(merr, fmt.Errorf("per_page must be between 1 and %d, got %d", gitlab.MaxPerPage, c.PerPage))
	}
	if c.Workers < 1 {
		merr = multierror.Append(merr, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Timeout <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Retries != nil && *c.Retries < 0 {
		merr = multierror.Append(merr, fmt.Errorf("retries must not be negative, got %d", *c.Retries))
	}
	if c.MaxPages < 1 {
		merr = multierror.Append(merr, fmt.Errorf("max_pages must be positive, got %d", c.MaxPages))
	}
	if c.RateLimit < 0 {
		merr = multierror.Append(merr, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	if _, err := taskindex.NewBuilder(c.TaskPatterns...); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// FetchOptions converts the config into fetch options.
func (c *Config) FetchOptions() fetch.Options {
	opts := fetch.Options{
		PerPage:  c.PerPage,
		MaxPages: c.MaxPages,
		Timeout:  c.Timeout,
	}
	if c.Retries != nil {
		opts.Retries = *c.Retries
	}
	return opts
}

// Redacted returns a copy safe to print: tokens are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Token = mask(c.Token)
	if len(c.Projects) > 0 {
		out.Projects = make(map[string]Project, len(c.Projects))
		for name, p := range c.Projects {
			p.Token = mask(p.Token)
			out.Projects[name] = p
		}
	}
	return &out
}

func mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
