package compare

import (
	"sort"

	"github.com/matsen/versiondiff/internal/diff"
)

// Limits bounds report sizes for consumers with small input budgets.
// A zero field leaves that list alone.
type Limits struct {
	TaskIDs        int // missing_task_ids / new_task_ids
	Complete       int // completely_missing / completely_new
	Partial        int // tasks in partially_missing / partially_new
	ChangesPerTask int // changes listed under each partial task
}

// DefaultLimits are sized for prompt-length budgets.
var DefaultLimits = Limits{
	TaskIDs:        50,
	Complete:       30,
	Partial:        20,
	ChangesPerTask: 5,
}

// Truncate returns a copy of r with every list cut to l. The receiver is not
// modified; each shortened list is recorded in Truncated.
func (r *MissingReport) Truncate(l Limits) *MissingReport {
	out := *r
	out.Truncated = append([]Truncation(nil), r.Truncated...)
	out.MissingTaskIDs = truncList(&out.Summary, "missing_task_ids", r.MissingTaskIDs, l.TaskIDs)
	out.CompletelyMissing = truncList(&out.Summary, "completely_missing", r.CompletelyMissing, l.Complete)
	out.PartiallyMissing = truncChanges(&out.Summary, "partially_missing", r.PartiallyMissing, l)
	return &out
}

// Truncate returns a copy of r with every list cut to l.
func (r *NewFeaturesReport) Truncate(l Limits) *NewFeaturesReport {
	out := *r
	out.Truncated = append([]Truncation(nil), r.Truncated...)
	out.NewTaskIDs = truncList(&out.Summary, "new_task_ids", r.NewTaskIDs, l.TaskIDs)
	out.CompletelyNew = truncList(&out.Summary, "completely_new", r.CompletelyNew, l.Complete)
	out.PartiallyNew = truncChanges(&out.Summary, "partially_new", r.PartiallyNew, l)
	return &out
}

// Truncate returns a copy of r with both directions cut to l. The common
// task list is bounded like the other task lists.
func (r *Report) Truncate(l Limits) *Report {
	out := *r
	out.Truncated = append([]Truncation(nil), r.Truncated...)
	d := *r.Diff
	s := &out.Summary
	d.MissingTaskIDs = truncList(s, "diff.missing_task_ids", d.MissingTaskIDs, l.TaskIDs)
	d.NewTaskIDs = truncList(s, "diff.new_task_ids", d.NewTaskIDs, l.TaskIDs)
	d.CommonTaskIDs = truncList(s, "diff.common_task_ids", d.CommonTaskIDs, l.TaskIDs)
	d.CompletelyMissing = truncList(s, "diff.completely_missing", d.CompletelyMissing, l.Complete)
	d.CompletelyNew = truncList(s, "diff.completely_new", d.CompletelyNew, l.Complete)
	d.PartiallyMissing = truncChanges(s, "diff.partially_missing", d.PartiallyMissing, l)
	d.PartiallyNew = truncChanges(s, "diff.partially_new", d.PartiallyNew, l)
	out.Diff = &d
	return &out
}

func truncList(s *Summary, field string, items []string, limit int) []string {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	s.Truncated = append(s.Truncated, Truncation{Field: field, Original: len(items), Kept: limit})
	return items[:limit:limit]
}

// truncChanges keeps the first l.Partial tasks in sorted order and at most
// l.ChangesPerTask changes under each.
func truncChanges(s *Summary, field string, m map[string][]diff.Change, l Limits) map[string][]diff.Change {
	tasks := make([]string, 0, len(m))
	for task := range m {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	if l.Partial > 0 && len(tasks) > l.Partial {
		s.Truncated = append(s.Truncated, Truncation{Field: field, Original: len(tasks), Kept: l.Partial})
		tasks = tasks[:l.Partial]
	}

	out := make(map[string][]diff.Change, len(tasks))
	for _, task := range tasks {
		changes := m[task]
		if l.ChangesPerTask > 0 && len(changes) > l.ChangesPerTask {
			s.Truncated = append(s.Truncated, Truncation{Field: field + "." + task, Original: len(changes), Kept: l.ChangesPerTask})
			changes = changes[:l.ChangesPerTask:l.ChangesPerTask]
		}
		out[task] = changes
	}
	return out
}
