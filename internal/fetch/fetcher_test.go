package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/reqcache"
)

// stubSource serves a fixed number of commits per ref.
type stubSource struct {
	mu       sync.Mutex
	total    map[string]int
	err      map[string]error // returned for every page of a ref
	failPage map[int]error    // returned for a page, forever
	flaky    map[int]int      // remaining transient failures per page
	calls    map[int]int      // requests per page
}

func newStub(ref string, n int) *stubSource {
	return &stubSource{
		total:    map[string]int{ref: n},
		err:      map[string]error{},
		failPage: map[int]error{},
		flaky:    map[int]int{},
		calls:    map[int]int{},
	}
}

func (s *stubSource) ListCommits(ctx context.Context, ref string, page, perPage int) ([]commit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[page]++
	if err, ok := s.err[ref]; ok {
		return nil, err
	}
	if err, ok := s.failPage[page]; ok {
		return nil, err
	}
	if s.flaky[page] > 0 {
		s.flaky[page]--
		return nil, &gitlab.APIError{StatusCode: 503, Endpoint: "commits", Message: "unavailable"}
	}

	n, ok := s.total[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gitlab.ErrRefNotFound, ref)
	}
	start := (page - 1) * perPage
	end := min(start+perPage, n)
	var out []commit.Record
	for i := start; i < end; i++ {
		id := fmt.Sprintf("%040x", i+1)
		out = append(out, commit.Record{ID: id, ShortID: id[:8], Message: fmt.Sprintf("PROJ-%d change", i)})
	}
	return out, nil
}

func (s *stubSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.calls {
		total += c
	}
	return total
}

func testOptions() Options {
	return Options{PerPage: 100, Timeout: time.Second, Retries: 2, InitialBackoff: time.Millisecond}
}

func newTestFetcher(src CommitSource, opts Options, fopts ...FetcherOption) *Fetcher {
	fopts = append([]FetcherOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, fopts...)
	return NewFetcher(src, NewPool(4), opts, fopts...)
}

func TestProbe_PageCount(t *testing.T) {
	tests := []struct {
		commits int
		want    int
	}{
		{commits: 0, want: 0},
		{commits: 1, want: 1},
		{commits: 99, want: 1},
		{commits: 100, want: 1},
		{commits: 101, want: 2},
		{commits: 200, want: 2},
		{commits: 250, want: 3},
		{commits: 12345, want: 124},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.commits), func(t *testing.T) {
			f := newTestFetcher(newStub("v1", tt.commits), testOptions())
			pc, err := f.Probe(context.Background(), "v1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, pc.Pages)
			assert.True(t, pc.Exact)
		})
	}
}

func TestPageCount_FailedPageDoesNotStopSearch(t *testing.T) {
	src := newStub("main", 1050)
	src.failPage[501] = &gitlab.APIError{StatusCode: 500, Endpoint: "commits"}
	f := newTestFetcher(src, testOptions())

	pc, err := f.Probe(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, PageCount{Pages: 11, Exact: true}, pc)
	assert.Equal(t, 3, src.calls[501], "the failed page is retried, then set aside")
	assert.Equal(t, 1, src.calls[502], "its neighbour bounds the search instead")

	res := f.FetchAll(context.Background(), "main", nil)
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, 11, res.Pages)
	require.Len(t, res.Commits, 1050)
	for i, c := range res.Commits {
		if !assert.Equal(t, fmt.Sprintf("%040x", i+1), c.ID, "commits stay in page order") {
			break
		}
	}
}

func TestPickPage(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int
		failed map[int]bool
		want   int
		ok     bool
	}{
		{name: "midpoint", lo: 2, hi: 10, want: 6, ok: true},
		{name: "higher neighbour", lo: 2, hi: 10, failed: map[int]bool{6: true}, want: 7, ok: true},
		{name: "lower neighbour", lo: 2, hi: 10, failed: map[int]bool{6: true, 7: true}, want: 5, ok: true},
		{name: "edge of range", lo: 4, hi: 5, failed: map[int]bool{4: true}, want: 5, ok: true},
		{name: "exhausted", lo: 2, hi: 3, failed: map[int]bool{2: true, 3: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickPage(tt.lo, tt.hi, tt.failed)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestProbe_NotFoundIsNotZero(t *testing.T) {
	f := newTestFetcher(newStub("v1", 10), testOptions())
	_, err := f.Probe(context.Background(), "v9")
	require.Error(t, err)
	assert.True(t, gitlab.IsNotFound(err))
}

func TestFetchAll_Complete(t *testing.T) {
	for _, n := range []int{0, 57, 200, 1234} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newTestFetcher(newStub("main", n), testOptions())
			res := f.FetchAll(context.Background(), "main", nil)

			if n == 0 {
				assert.Equal(t, OutcomeEmpty, res.Outcome)
			} else {
				assert.Equal(t, OutcomeOK, res.Outcome)
			}
			assert.False(t, res.Partial())
			assert.False(t, res.Fatal())
			assert.Len(t, res.Commits, n)
			assert.Equal(t, n, commit.CountDistinct(res.Commits))
			assert.Empty(t, res.FailedPages)
		})
	}
}

func TestFetchAll_FatalOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{name: "not found", err: gitlab.ErrRefNotFound, want: OutcomeNotFound},
		{name: "unauthorized", err: gitlab.ErrUnauthorized, want: OutcomeUnauthorized},
		{name: "server error", err: &gitlab.APIError{StatusCode: 500, Endpoint: "commits"}, want: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newStub("v1", 300)
			src.err["v1"] = tt.err
			f := newTestFetcher(src, testOptions())

			res := f.FetchAll(context.Background(), "v1", nil)
			assert.Equal(t, tt.want, res.Outcome)
			assert.True(t, res.Fatal())
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Empty(t, res.Commits)
		})
	}
}

func TestFetchAll_AuthErrorsAreNotRetried(t *testing.T) {
	src := newStub("v1", 300)
	src.err["v1"] = gitlab.ErrUnauthorized
	f := newTestFetcher(src, testOptions())

	f.FetchAll(context.Background(), "v1", nil)
	assert.Equal(t, 1, src.totalCalls())
}

func TestFetchAll_RetriesTransientErrors(t *testing.T) {
	src := newStub("main", 300)
	src.flaky[3] = 2
	reg := prometheus.NewRegistry()
	f := newTestFetcher(src, testOptions(), WithMetrics(NewMetrics(reg)))

	res := f.FetchAll(context.Background(), "main", nil)
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Len(t, res.Commits, 300)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.retries))
	assert.Equal(t, 300.0, testutil.ToFloat64(f.metrics.commits))
}

func TestFetchAll_PartialFailure(t *testing.T) {
	// 500 commits: the probe visits pages 501, 251, 126, 63, 32, 16, 8, 4, 6
	// and 5, so page 3 is only requested by the parallel fetch.
	src := newStub("main", 500)
	src.failPage[3] = &gitlab.APIError{StatusCode: 502, Endpoint: "commits"}
	f := newTestFetcher(src, testOptions())

	res := f.FetchAll(context.Background(), "main", nil)
	require.Equal(t, OutcomePartial, res.Outcome)
	assert.True(t, res.Partial())
	assert.False(t, res.Fatal())
	assert.Len(t, res.Commits, 400)
	assert.Equal(t, []int{3}, res.FailedPageNumbers())
	assert.Equal(t, 3, res.FailedPages[0].Attempts)
	assert.Error(t, res.PageErrors())
}

func TestFetchAll_IncrementalPastProbeBound(t *testing.T) {
	opts := testOptions()
	opts.MaxPages = 3
	f := newTestFetcher(newStub("main", 550), opts)

	pc, err := f.Probe(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, PageCount{Pages: 3, Exact: false}, pc)

	res := f.FetchAll(context.Background(), "main", nil)
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Len(t, res.Commits, 550)
	assert.Equal(t, 6, res.Pages)
}

func TestFetchAll_CacheSharesFetchesWithinComparison(t *testing.T) {
	src := newStub("main", 250)
	f := newTestFetcher(src, testOptions())
	cache := reqcache.New()

	first := f.FetchAll(context.Background(), "main", cache)
	calls := src.totalCalls()
	second := f.FetchAll(context.Background(), "main", cache)

	assert.Same(t, first, second)
	assert.Equal(t, calls, src.totalCalls())
	assert.Equal(t, 1, cache.Stats().Hits)
}

func TestFetchAll_PartialResultsAreNotCached(t *testing.T) {
	src := newStub("main", 500)
	src.failPage[3] = &gitlab.APIError{StatusCode: 502, Endpoint: "commits"}
	f := newTestFetcher(src, testOptions())
	cache := reqcache.New()

	f.FetchAll(context.Background(), "main", cache)
	assert.Equal(t, 0, cache.Len())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	text, err := OutcomePartial.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "partial", string(text))
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
