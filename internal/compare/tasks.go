package compare

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/matsen/versiondiff/internal/diff"
	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/reqcache"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// ErrBadSearchPattern is returned by SearchTasks for a pattern that does not compile.
var ErrBadSearchPattern = errors.New("invalid task search pattern")

// TaskStatus says whether a task was found in a ref.
type TaskStatus string

const (
	TaskFound    TaskStatus = "found"
	TaskNotFound TaskStatus = "not_found"
)

// TaskDetail describes the commits that name one task in a ref.
type TaskDetail struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
	// First is the oldest commit naming the task, Latest the newest.
	First   *diff.Change  `json:"first_commit,omitempty"`
	Latest  *diff.Change  `json:"latest_commit,omitempty"`
	Changes []diff.Change `json:"changes,omitempty"` // newest first
}

// TaskReport is the result of looking tasks up in one ref.
type TaskReport struct {
	Ref         string        `json:"ref"`
	Outcome     fetch.Outcome `json:"outcome"`
	Partial     bool          `json:"partial"`
	FailedPages []int         `json:"failed_pages,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	Commits     int           `json:"commits"`
	Found       int           `json:"found"`
	NotFound    []string      `json:"not_found"`
	Tasks       []TaskDetail  `json:"tasks"`
	FetchTime   float64       `json:"fetch_seconds"`
}

// TaskDetails reports, for each requested task, the commits naming it in ref.
// Tasks absent from ref are reported with status not_found; duplicates in
// taskIDs are reported once.
func (e *Engine) TaskDetails(ctx context.Context, ref string, taskIDs ...string) (*TaskReport, error) {
	return e.lookup(ctx, ref, func(ix *taskindex.Index) []string {
		seen := make(map[string]bool, len(taskIDs))
		var out []string
		for _, id := range taskIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	})
}

// SearchTasks reports every task in ref whose identifier matches pattern.
func (e *Engine) SearchTasks(ctx context.Context, ref, pattern string) (*TaskReport, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadSearchPattern, pattern, err)
	}

	r, err := e.lookup(ctx, ref, func(ix *taskindex.Index) []string {
		var out []string
		for _, task := range ix.Tasks() {
			if re.MatchString(task) {
				out = append(out, task)
			}
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	r.Pattern = pattern
	return r, nil
}

// lookup fetches and indexes ref, then describes the tasks chosen by selectTasks.
func (e *Engine) lookup(ctx context.Context, ref string, selectTasks func(*taskindex.Index) []string) (*TaskReport, error) {
	start := time.Now()
	cache := reqcache.New()
	defer cache.Clear()

	res := e.fetcher.FetchAll(ctx, ref, cache)
	if res.Fatal() {
		return nil, refError("", res)
	}

	ix := e.builder.Build(res.Commits)
	r := &TaskReport{
		Ref:         ref,
		Outcome:     res.Outcome,
		Partial:     res.Partial(),
		FailedPages: res.FailedPageNumbers(),
		Commits:     len(res.Commits),
		NotFound:    []string{},
		Tasks:       []TaskDetail{},
		FetchTime:   res.Elapsed.Seconds(),
	}

	for _, task := range selectTasks(ix) {
		d := describeTask(ix, task)
		if d.Status == TaskFound {
			r.Found++
		} else {
			r.NotFound = append(r.NotFound, task)
		}
		r.Tasks = append(r.Tasks, d)
	}

	if r.Partial && len(r.NotFound) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"ref %q is incomplete (pages %v failed); tasks reported not_found may be on those pages",
			ref, r.FailedPages))
	}

	e.logger.Info("looked up tasks",
		"ref", ref,
		"found", r.Found,
		"not_found", len(r.NotFound),
		"elapsed", time.Since(start))
	return r, nil
}

func describeTask(ix *taskindex.Index, task string) TaskDetail {
	if !ix.HasTask(task) {
		return TaskDetail{TaskID: task, Status: TaskNotFound}
	}

	d := TaskDetail{TaskID: task, Status: TaskFound}
	for _, key := range ix.KeysFor(task) {
		if c, ok := ix.Commit(key); ok {
			d.Changes = append(d.Changes, diff.NewChange(key, c))
		}
	}
	// Keys are in history order, newest first.
	if n := len(d.Changes); n > 0 {
		latest, first := d.Changes[0], d.Changes[n-1]
		d.Latest, d.First = &latest, &first
	}
	return d
}
