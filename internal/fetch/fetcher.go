// Package fetch retrieves the complete commit history of a ref from a
// paginated commit-listing endpoint.
//
// A fetch first probes the number of pages with a sequential binary search,
// then requests every page through a shared bounded Pool. Pages that keep
// failing after retries are recorded on the Result instead of aborting the
// whole fetch.
package fetch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/reqcache"
)

// Defaults for Options.
const (
	DefaultPerPage        = 100
	DefaultMaxPages       = 1000
	DefaultTimeout        = 30 * time.Second
	DefaultRetries        = 2
	DefaultInitialBackoff = 500 * time.Millisecond
)

// CommitSource lists one page of the commits reachable from a ref.
// An empty page means there is no more data.
type CommitSource interface {
	ListCommits(ctx context.Context, ref string, page, perPage int) ([]commit.Record, error)
}

var _ CommitSource = (*gitlab.Client)(nil)

// Options controls paging, timeouts and retries.
type Options struct {
	PerPage        int           // commits per page
	MaxPages       int           // upper bound for the page-count probe
	Timeout        time.Duration // per-call timeout
	Retries        int           // extra attempts after the first for transient errors; zero disables retries
	InitialBackoff time.Duration // first retry delay; doubles per attempt
}

// withDefaults fills zero values with the package defaults.
func (o Options) withDefaults() Options {
	if o.PerPage <= 0 {
		o.PerPage = DefaultPerPage
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	return o
}

// Fetcher retrieves ref histories. It is safe for concurrent use.
type Fetcher struct {
	source  CommitSource
	pool    *Pool
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a Fetcher that schedules page requests on pool.
func NewFetcher(source CommitSource, pool *Pool, opts Options, fopts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source: source,
		pool:   pool,
		opts:   opts.withDefaults(),
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/matsen/versiondiff/internal/fetch"),
	}
	for _, opt := range fopts {
		opt(f)
	}
	if f.pool == nil {
		f.pool = NewPool(DefaultPoolSize)
	}
	return f
}

// Options returns the effective options.
func (f *Fetcher) Options() Options {
	return f.opts
}

// CommitsKey is the request-cache key for a ref's full history.
func CommitsKey(ref string) string {
	return reqcache.Key("commits", ref)
}

// FetchAll retrieves every commit reachable from ref. When cache is non-nil,
// repeated and concurrent calls for the same ref within one comparison share
// a single fetch. Only complete results are cached.
func (f *Fetcher) FetchAll(ctx context.Context, ref string, cache *reqcache.Cache) *Result {
	if cache == nil {
		return f.fetchAll(ctx, ref)
	}

	res, err := reqcache.Do(cache, CommitsKey(ref), func() (*Result, bool, error) {
		r := f.fetchAll(ctx, ref)
		return r, r.Outcome == OutcomeOK || r.Outcome == OutcomeEmpty, nil
	})
	if err != nil {
		return &Result{Ref: ref, Outcome: OutcomeFailed, Err: err}
	}
	return res
}

func (f *Fetcher) fetchAll(ctx context.Context, ref string) *Result {
	ctx, span := f.tracer.Start(ctx, "fetch.FetchAll", trace.WithAttributes(attribute.String("ref", ref)))
	defer span.End()

	start := time.Now()
	res := &Result{Ref: ref}
	defer func() {
		res.Elapsed = time.Since(start)
		span.SetAttributes(
			attribute.String("outcome", res.Outcome.String()),
			attribute.Int("pages", res.Pages),
			attribute.Int("commits", len(res.Commits)),
			attribute.Int("failed_pages", len(res.FailedPages)),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	pc, first, err := f.probe(ctx, ref)
	if err != nil {
		res.Err = err
		res.Outcome = fatalOutcome(err)
		f.logger.Error("probing ref failed", "ref", ref, "outcome", res.Outcome, "error", err)
		return res
	}

	res.Pages = pc.Pages
	if pc.Pages == 0 {
		res.Outcome = OutcomeEmpty
		f.logger.Info("ref has no commits", "ref", ref)
		return res
	}

	commits, failed := f.fetchPages(ctx, ref, pc.Pages, first)
	if !pc.Exact && len(failed) == 0 {
		more, lastPage, pe := f.fetchIncremental(ctx, ref, pc.Pages+1)
		commits = append(commits, more...)
		res.Pages = lastPage
		if pe != nil {
			failed = append(failed, *pe)
		}
	}

	res.Commits = commits
	res.FailedPages = failed
	switch {
	case len(failed) == 0:
		res.Outcome = OutcomeOK
	case len(commits) == 0:
		res.Outcome = OutcomeFailed
		res.Err = res.PageErrors()
	default:
		res.Outcome = OutcomePartial
	}

	if distinct := commit.CountDistinct(commits); distinct != len(commits) {
		// New commits landed while paging, shifting older ones onto the next page.
		f.logger.Warn("history moved during fetch",
			"ref", ref,
			"commits", len(commits),
			"distinct", distinct)
	}

	elapsed := time.Since(start)
	f.metrics.fetched(len(commits), elapsed)
	f.logger.Info("fetched ref history",
		"ref", ref,
		"outcome", res.Outcome,
		"commits", len(commits),
		"pages", res.Pages,
		"failed_pages", len(failed),
		"workers", f.pool.Size(),
		"elapsed", elapsed)
	return res
}

// fetchIncremental requests pages sequentially from start until one comes back
// empty or short. It returns the last non-empty page number.
func (f *Fetcher) fetchIncremental(ctx context.Context, ref string, start int) ([]commit.Record, int, *PageError) {
	var all []commit.Record
	page := start
	for {
		records, attempts, err := f.fetchPage(ctx, ref, page)
		if err != nil {
			f.metrics.page("failed")
			return all, page - 1, &PageError{Page: page, Attempts: attempts, Err: err}
		}
		if len(records) == 0 {
			f.metrics.page("empty")
			return all, page - 1, nil
		}
		f.metrics.page("ok")
		all = append(all, records...)
		if len(records) < f.opts.PerPage {
			return all, page, nil
		}
		page++
	}
}

type pageResult struct {
	page     int
	records  []commit.Record
	attempts int
	err      error
}

// fetchPages requests pages 2..n through the pool (page 1 came from the
// probe) and merges them in page order.
func (f *Fetcher) fetchPages(ctx context.Context, ref string, n int, first []commit.Record) ([]commit.Record, []PageError) {
	results := make(chan pageResult, n)
	var wg sync.WaitGroup

	for page := 2; page <= n; page++ {
		wg.Add(1)
		err := f.pool.Submit(ctx, func() {
			defer wg.Done()
			records, attempts, err := f.fetchPage(ctx, ref, page)
			results <- pageResult{page: page, records: records, attempts: attempts, err: err}
		})
		if err != nil {
			wg.Done()
			results <- pageResult{page: page, err: err}
		}
	}

	wg.Wait()
	close(results)

	// Pages are merged in page order so the history stays newest first
	// whatever order the requests completed in.
	byPage := make([][]commit.Record, n+1)
	byPage[1] = first
	f.metrics.page("ok")

	var failed []PageError
	for r := range results {
		if r.err != nil {
			f.metrics.page("failed")
			f.logger.Warn("commit page failed",
				"ref", ref,
				"page", r.page,
				"attempts", r.attempts,
				"error", r.err)
			failed = append(failed, PageError{Page: r.page, Attempts: r.attempts, Err: r.err})
			continue
		}
		f.metrics.page("ok")
		byPage[r.page] = r.records
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Page < failed[j].Page })

	commits := make([]commit.Record, 0, n*f.opts.PerPage)
	for _, records := range byPage {
		commits = append(commits, records...)
	}
	return commits, failed
}

// fatalOutcome maps a probe error onto the tagged outcome.
func fatalOutcome(err error) Outcome {
	switch {
	case gitlab.IsNotFound(err):
		return OutcomeNotFound
	case gitlab.IsAuthError(err):
		return OutcomeUnauthorized
	default:
		return OutcomeFailed
	}
}
