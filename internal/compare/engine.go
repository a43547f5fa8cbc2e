// Package compare runs version comparisons: it fetches two refs in parallel,
// indexes their tasks and classifies the difference.
//
// Each operation owns a request cache for its lifetime. Fatal ref failures
// abort before classification; partially fetched refs are classified but the
// report is flagged.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/versiondiff/internal/diff"
	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/reqcache"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// TagLister lists the tags of the compared project.
type TagLister interface {
	ListTags(ctx context.Context) ([]gitlab.Tag, error)
}

// Engine runs comparisons. It holds no per-comparison state and is safe for
// concurrent use.
type Engine struct {
	fetcher *fetch.Fetcher
	builder *taskindex.Builder
	tags    TagLister
	project string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTags enables tag listing for project.
func WithTags(tl TagLister, project string) Option {
	return func(e *Engine) {
		e.tags = tl
		e.project = project
	}
}

// NewEngine creates an Engine.
func NewEngine(f *fetch.Fetcher, b *taskindex.Builder, opts ...Option) *Engine {
	e := &Engine{
		fetcher: f,
		builder: b,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/matsen/versiondiff/internal/compare"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectMissingTasks reports work present in oldRef and absent from newRef.
func (e *Engine) DetectMissingTasks(ctx context.Context, oldRef, newRef string) (*MissingReport, error) {
	r, err := e.run(ctx, "detect_missing_tasks", oldRef, newRef)
	if err != nil {
		return nil, err
	}
	return r.Missing(), nil
}

// AnalyzeNewFeatures reports work present in newRef and absent from oldRef.
func (e *Engine) AnalyzeNewFeatures(ctx context.Context, oldRef, newRef string) (*NewFeaturesReport, error) {
	r, err := e.run(ctx, "analyze_new_features", oldRef, newRef)
	if err != nil {
		return nil, err
	}
	return r.NewFeatures(), nil
}

// Compare reports both directions.
func (e *Engine) Compare(ctx context.Context, oldRef, newRef string) (*Report, error) {
	return e.run(ctx, "compare", oldRef, newRef)
}

func (e *Engine) run(ctx context.Context, op, oldRef, newRef string) (_ *Report, err error) {
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID, "op", op)

	ctx, span := e.tracer.Start(ctx, "compare."+op, trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("old_ref", oldRef),
		attribute.String("new_ref", newRef),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	cache := reqcache.New()
	defer func() {
		stats := cache.Clear()
		log.Debug("request cache cleared",
			"size", stats.Size,
			"hits", stats.Hits,
			"misses", stats.Misses,
			"calls_saved", stats.CallsSaved)
	}()

	log.Info("comparing refs", "old_ref", oldRef, "new_ref", newRef)

	// The two refs are fetched side by side. Neither fetch cancels the other,
	// so both failures can be reported.
	var oldRes, newRes *fetch.Result
	var g errgroup.Group
	g.SetLimit(2)
	g.Go(func() error {
		oldRes = e.fetcher.FetchAll(ctx, oldRef, cache)
		return nil
	})
	g.Go(func() error {
		newRes = e.fetcher.FetchAll(ctx, newRef, cache)
		return nil
	})
	_ = g.Wait()
	fetchTime := time.Since(start)

	if err := fatalError(oldRes, newRes); err != nil {
		log.Error("comparison aborted", "error", err)
		return nil, err
	}

	analysisStart := time.Now()
	oldIx, newIx, result, err := e.analyze(oldRes, newRes)
	if err != nil {
		log.Error("analysis failed", "error", err)
		return nil, err
	}
	analysis := time.Since(analysisStart)

	r := &Report{
		Summary: Summary{
			RunID:  runID,
			OldRef: oldRef,
			NewRef: newRef,
			Old:    refSummary(oldRes, oldIx),
			New:    refSummary(newRes, newIx),
			Counts: result.Counts(),
		},
		Diff: result,
	}
	for _, res := range []*fetch.Result{oldRes, newRes} {
		if res.Partial() {
			r.Partial = true
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"ref %q is incomplete (pages %v failed); its tasks may be undercounted",
				res.Ref, res.FailedPageNumbers()))
		}
	}
	switch {
	case r.Partial:
		r.Status = StatusPartial
	case result.Empty():
		r.Status = StatusNoTasks
	default:
		r.Status = StatusSuccess
	}

	r.Cache = cache.Stats()
	r.Timings = newTimings(fetchTime, analysis, time.Since(start))

	span.SetAttributes(
		attribute.String("status", string(r.Status)),
		attribute.Int("missing", r.Counts.Missing),
		attribute.Int("new", r.Counts.New),
	)
	log.Info("comparison finished",
		"status", r.Status,
		"missing", r.Counts.Missing,
		"new", r.Counts.New,
		"common", r.Counts.Common,
		"elapsed", time.Since(start))
	return r, nil
}

// analyze indexes both refs and classifies them. A panic here is converted
// into ErrAnalysis rather than taking down the caller.
func (e *Engine) analyze(oldRes, newRes *fetch.Result) (oldIx, newIx *taskindex.Index, result *diff.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("panic during analysis", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrAnalysis, p)
		}
	}()

	oldIx = e.builder.Build(oldRes.Commits)
	newIx = e.builder.Build(newRes.Commits)
	return oldIx, newIx, diff.Classify(oldIx, newIx), nil
}

// fatalError returns nil when both refs are usable. With one failure it
// returns that *RefError; with two, both wrapped in a multierror.
func fatalError(oldRes, newRes *fetch.Result) error {
	var merr *multierror.Error
	if oldRes.Fatal() {
		merr = multierror.Append(merr, refError(SideOld, oldRes))
	}
	if newRes.Fatal() {
		merr = multierror.Append(merr, refError(SideNew, newRes))
	}
	if merr == nil {
		return nil
	}
	if len(merr.Errors) == 1 {
		return merr.Errors[0]
	}
	return merr
}

func refSummary(res *fetch.Result, ix *taskindex.Index) RefSummary {
	return RefSummary{
		Ref:         res.Ref,
		Outcome:     res.Outcome,
		Commits:     len(res.Commits),
		Pages:       res.Pages,
		Tasks:       len(ix.TaskSet()),
		FailedPages: res.FailedPageNumbers(),
		FetchTime:   res.Elapsed.Seconds(),
	}
}
