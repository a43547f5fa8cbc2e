package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/matsen/versiondiff/internal/compare"
	"github.com/matsen/versiondiff/internal/config"
	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/git"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// fetchMetrics is registered once per process.
var fetchMetrics = fetch.NewMetrics(metricsRegistry)

// loadConfig loads configuration and applies --repo.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectName)
	if err != nil {
		return nil, err
	}
	if repoPath != "" {
		cfg.LocalRepo = repoPath
	}
	return cfg, nil
}

// mustLoadConfig loads and validates configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNotConfigured) {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "invalid config: %v", err)
	}
	return cfg
}

// newClient builds the GitLab client for cfg.
func newClient(cfg *config.Config) *gitlab.Client {
	return gitlab.NewClient(cfg.URL, cfg.ProjectID,
		gitlab.WithToken(cfg.Token),
		gitlab.WithRateLimit(cfg.RateLimit, cfg.Workers),
	)
}

// historySource serves commit pages and tags.
type historySource interface {
	fetch.CommitSource
	compare.TagLister
}

// newSource returns the local clone when one is configured, the GitLab
// client otherwise. The second value names the source in logs and tag
// cache keys.
func newSource(cfg *config.Config) (historySource, string, error) {
	if cfg.UsesLocalRepo() {
		repo, err := git.Open(cfg.LocalRepo)
		if err != nil {
			return nil, "", err
		}
		return repo, repo.Root(), nil
	}
	client := newClient(cfg)
	return client, client.ProjectID(), nil
}

// mustBuildEngine wires source, pool, fetcher and index builder. The pool is
// sized once here and shared by every fetch the command runs.
func mustBuildEngine(cfg *config.Config) *compare.Engine {
	source, name, err := newSource(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	logger := slog.Default().With("source", name)

	pool := fetch.NewPool(cfg.Workers)
	fetcher := fetch.NewFetcher(source, pool, cfg.FetchOptions(),
		fetch.WithLogger(logger),
		fetch.WithMetrics(fetchMetrics),
	)

	builder, err := taskindex.NewBuilder(cfg.TaskPatterns...)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	return compare.NewEngine(fetcher, builder,
		compare.WithLogger(logger),
		compare.WithTags(source, name),
	)
}
