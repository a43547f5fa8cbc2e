package compare

import (
	"time"

	"github.com/matsen/versiondiff/internal/diff"
	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/reqcache"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// Status is the overall result of a comparison that ran to completion.
type Status string

const (
	// StatusSuccess means both refs were fully fetched and classified.
	StatusSuccess Status = "success"
	// StatusPartial means at least one ref is missing pages; task sets may
	// be undercounted.
	StatusPartial Status = "partial"
	// StatusNoTasks means neither ref references any task.
	StatusNoTasks Status = "no_tasks"
)

// RefSummary describes how one ref was fetched and indexed.
type RefSummary struct {
	Ref         string        `json:"ref"`
	Outcome     fetch.Outcome `json:"outcome"`
	Commits     int           `json:"commits"`
	Pages       int           `json:"pages"`
	Tasks       int           `json:"tasks"`
	FailedPages []int         `json:"failed_pages,omitempty"`
	FetchTime   float64       `json:"fetch_seconds"`
}

// Timings are wall-clock durations in seconds.
type Timings struct {
	Fetch    float64 `json:"fetch_seconds"`
	Analysis float64 `json:"analysis_seconds"`
	Total    float64 `json:"total_seconds"`
}

func newTimings(fetchTime, analysis, total time.Duration) Timings {
	return Timings{
		Fetch:    fetchTime.Seconds(),
		Analysis: analysis.Seconds(),
		Total:    total.Seconds(),
	}
}

// Truncation records a list that was shortened for output.
type Truncation struct {
	Field    string `json:"field"`
	Original int    `json:"original_count"`
	Kept     int    `json:"kept_count"`
}

// Summary is shared by every comparison report.
type Summary struct {
	RunID     string         `json:"run_id"`
	OldRef    string         `json:"old_ref"`
	NewRef    string         `json:"new_ref"`
	Status    Status         `json:"status"`
	Partial   bool           `json:"partial"`
	Warnings  []string       `json:"warnings,omitempty"`
	Old       RefSummary     `json:"old"`
	New       RefSummary     `json:"new"`
	Counts    diff.Counts    `json:"counts"`
	Timings   Timings        `json:"timings"`
	Cache     reqcache.Stats `json:"cache"`
	Truncated []Truncation   `json:"truncated,omitempty"`
}

// Report is a full comparison in both directions.
type Report struct {
	Summary
	Diff *diff.Result `json:"diff"`
}

// MissingReport lists work present in the old ref and absent from the new one.
type MissingReport struct {
	Summary
	MissingTaskIDs    []string                 `json:"missing_task_ids"`
	CompletelyMissing []string                 `json:"completely_missing"`
	PartiallyMissing  map[string][]diff.Change `json:"partially_missing"`
}

// NewFeaturesReport lists work present in the new ref and absent from the old one.
type NewFeaturesReport struct {
	Summary
	NewTaskIDs    []string                 `json:"new_task_ids"`
	CompletelyNew []string                 `json:"completely_new"`
	PartiallyNew  map[string][]diff.Change `json:"partially_new"`
}

// Missing projects r onto the missing direction.
func (r *Report) Missing() *MissingReport {
	return &MissingReport{
		Summary:           r.Summary,
		MissingTaskIDs:    r.Diff.MissingTaskIDs,
		CompletelyMissing: r.Diff.CompletelyMissing,
		PartiallyMissing:  r.Diff.PartiallyMissing,
	}
}

// NewFeatures projects r onto the new direction.
func (r *Report) NewFeatures() *NewFeaturesReport {
	return &NewFeaturesReport{
		Summary:       r.Summary,
		NewTaskIDs:    r.Diff.NewTaskIDs,
		CompletelyNew: r.Diff.CompletelyNew,
		PartiallyNew:  r.Diff.PartiallyNew,
	}
}

// RefValidation is the result of checking whether a ref can be compared.
type RefValidation struct {
	Ref     string `json:"ref"`
	Exists  bool   `json:"exists"`
	IsTag   bool   `json:"is_tag"`
	Pages   int    `json:"pages"`
	PerPage int    `json:"per_page"`
	Exact   bool   `json:"exact"`
	Error   string `json:"error,omitempty"`
}

// RefStats describes the task density of one ref.
type RefStats struct {
	Ref         string        `json:"ref"`
	Outcome     fetch.Outcome `json:"outcome"`
	Partial     bool          `json:"partial"`
	FailedPages []int         `json:"failed_pages,omitempty"`
	FetchTime   float64       `json:"fetch_seconds"`
	taskindex.Summary
}
