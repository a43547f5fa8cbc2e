// Package diff classifies the task sets of two refs.
package diff

import (
	"sort"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/taskindex"
)

// Change is one unit of work present under one ref and absent under the other.
type Change struct {
	TaskID        string `json:"task_id"`
	Line          string `json:"line"`
	ID            string `json:"id"`
	ShortID       string `json:"short_id"`
	AuthorName    string `json:"author_name,omitempty"`
	CommittedDate string `json:"committed_date,omitempty"`
}

// NewChange describes the commit behind key.
func NewChange(key taskindex.Key, c commit.Record) Change {
	return Change{
		TaskID:        key.TaskID,
		Line:          key.Line,
		ID:            c.ID,
		ShortID:       c.ShortID,
		AuthorName:    c.AuthorName,
		CommittedDate: c.CommittedDate,
	}
}

// Result is the classification of two task indexes. Task lists are sorted.
//
// CompletelyMissing holds tasks with no key left under the new ref, which is
// exactly MissingTaskIDs. PartiallyMissing holds tasks still present under the
// new ref that lost at least one key, so its keys are a subset of
// CommonTaskIDs. The two never overlap.
//
// Consequently CompletelyMissing ∪ keys(PartiallyMissing) is not
// MissingTaskIDs whenever a task is partially missing; callers wanting every
// task with lost work must take that union themselves. The same holds in the
// opposite direction for the new side.
type Result struct {
	OldTasks       int      `json:"old_task_count"`
	NewTasks       int      `json:"new_task_count"`
	MissingTaskIDs []string `json:"missing_task_ids"`
	NewTaskIDs     []string `json:"new_task_ids"`
	CommonTaskIDs  []string `json:"common_task_ids"`

	CompletelyMissing []string            `json:"completely_missing"`
	PartiallyMissing  map[string][]Change `json:"partially_missing"`
	CompletelyNew     []string            `json:"completely_new"`
	PartiallyNew      map[string][]Change `json:"partially_new"`
}

// Counts summarises a Result.
type Counts struct {
	OldTasks          int `json:"old_tasks"`
	NewTasks          int `json:"new_tasks"`
	Missing           int `json:"missing"`
	New               int `json:"new"`
	Common            int `json:"common"`
	CompletelyMissing int `json:"completely_missing"`
	PartiallyMissing  int `json:"partially_missing"`
	CompletelyNew     int `json:"completely_new"`
	PartiallyNew      int `json:"partially_new"`
}

// Counts returns the sizes of every category.
func (r *Result) Counts() Counts {
	return Counts{
		OldTasks:          r.OldTasks,
		NewTasks:          r.NewTasks,
		Missing:           len(r.MissingTaskIDs),
		New:               len(r.NewTaskIDs),
		Common:            len(r.CommonTaskIDs),
		CompletelyMissing: len(r.CompletelyMissing),
		PartiallyMissing:  len(r.PartiallyMissing),
		CompletelyNew:     len(r.CompletelyNew),
		PartiallyNew:      len(r.PartiallyNew),
	}
}

// Empty reports whether neither ref referenced any task.
func (r *Result) Empty() bool {
	return r.OldTasks == 0 && r.NewTasks == 0
}

// Classify compares the old and new indexes.
func Classify(oldIx, newIx *taskindex.Index) *Result {
	oldSet, newSet := oldIx.TaskSet(), newIx.TaskSet()

	r := &Result{
		OldTasks:       len(oldSet),
		NewTasks:       len(newSet),
		MissingTaskIDs: difference(oldSet, newSet),
		NewTaskIDs:     difference(newSet, oldSet),
		CommonTaskIDs:  intersection(oldSet, newSet),
	}
	r.CompletelyMissing, r.PartiallyMissing = split(oldIx, newIx, newSet)
	r.CompletelyNew, r.PartiallyNew = split(newIx, oldIx, oldSet)
	return r
}

// split groups the keys of from that are absent in to by task. A task that
// to does not know at all is complete; otherwise it is partial.
func split(from, to *taskindex.Index, toSet map[string]struct{}) ([]string, map[string][]Change) {
	complete := []string{}
	partial := make(map[string][]Change)

	for _, task := range from.Tasks() {
		var absent []Change
		for _, key := range from.KeysFor(task) {
			if to.Has(key) {
				continue
			}
			c, _ := from.Commit(key)
			absent = append(absent, NewChange(key, c))
		}
		if len(absent) == 0 {
			continue
		}
		if _, ok := toSet[task]; !ok {
			complete = append(complete, task)
			continue
		}
		partial[task] = absent
	}
	return complete, partial
}

func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func intersection(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
