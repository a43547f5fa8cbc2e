package diff

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/taskindex"
)

func index(t *testing.T, messages ...string) *taskindex.Index {
	t.Helper()
	b, err := taskindex.NewBuilder()
	require.NoError(t, err)

	commits := make([]commit.Record, len(messages))
	for i, m := range messages {
		id := fmt.Sprintf("%040x", i+1)
		commits[i] = commit.Record{ID: id, ShortID: id[:8], Message: m}
	}
	return b.Build(commits)
}

func TestClassify_CompletelyMissing(t *testing.T) {
	oldIx := index(t, "PROJ-1 add X", "PROJ-2 add Y")
	newIx := index(t, "PROJ-2 add Y")

	r := Classify(oldIx, newIx)
	assert.Equal(t, []string{"PROJ-1"}, r.MissingTaskIDs)
	assert.Equal(t, []string{"PROJ-1"}, r.CompletelyMissing)
	assert.Empty(t, r.PartiallyMissing)
	assert.Equal(t, []string{"PROJ-2"}, r.CommonTaskIDs)
	assert.Empty(t, r.NewTaskIDs)
	assert.Empty(t, r.CompletelyNew)
	assert.Empty(t, r.PartiallyNew)
}

func TestClassify_PartiallyMissing(t *testing.T) {
	oldIx := index(t, "PROJ-3 step one", "PROJ-3 step two")
	newIx := index(t, "PROJ-3 step one")

	r := Classify(oldIx, newIx)
	assert.Empty(t, r.CompletelyMissing)
	assert.NotContains(t, r.CompletelyMissing, "PROJ-3")
	require.Contains(t, r.PartiallyMissing, "PROJ-3")

	absent := r.PartiallyMissing["PROJ-3"]
	require.Len(t, absent, 1)
	assert.Equal(t, "PROJ-3 step two", absent[0].Line)
	assert.Equal(t, "PROJ-3", absent[0].TaskID)
	assert.NotEmpty(t, absent[0].ShortID)

	// Partially missing tasks sit in the common set, outside MissingTaskIDs.
	assert.Empty(t, r.MissingTaskIDs)
	assert.Equal(t, []string{"PROJ-3"}, r.CommonTaskIDs)
}

func TestClassify_NewDirection(t *testing.T) {
	oldIx := index(t, "PROJ-1 base")
	newIx := index(t, "PROJ-1 base", "PROJ-1 follow-up", "PROJ-9 brand new")

	r := Classify(oldIx, newIx)
	assert.Equal(t, []string{"PROJ-9"}, r.NewTaskIDs)
	assert.Equal(t, []string{"PROJ-9"}, r.CompletelyNew)
	require.Contains(t, r.PartiallyNew, "PROJ-1")
	assert.Equal(t, "PROJ-1 follow-up", r.PartiallyNew["PROJ-1"][0].Line)
	assert.Empty(t, r.MissingTaskIDs)
}

func TestClassify_CherryPickIsNotMissing(t *testing.T) {
	oldIx := index(t, "PROJ-4 fix crash")
	newIx := index(t, "PROJ-4 fix crash\n\n(cherry picked from commit deadbeef)")

	r := Classify(oldIx, newIx)
	assert.Empty(t, r.MissingTaskIDs)
	assert.Empty(t, r.PartiallyMissing)
	assert.Empty(t, r.PartiallyNew)
}

func TestClassify_BothEmpty(t *testing.T) {
	r := Classify(index(t, "chore"), index(t))
	assert.True(t, r.Empty())
	assert.Equal(t, Counts{}, r.Counts())
}

func TestCounts(t *testing.T) {
	r := Classify(
		index(t, "PROJ-1 a", "PROJ-2 a", "PROJ-2 b"),
		index(t, "PROJ-2 a", "PROJ-3 a"),
	)
	assert.Equal(t, Counts{
		OldTasks:          2,
		NewTasks:          2,
		Missing:           1,
		New:               1,
		Common:            1,
		CompletelyMissing: 1,
		PartiallyMissing:  1,
		CompletelyNew:     1,
		PartiallyNew:      0,
	}, r.Counts())
}

// TestClassify_SetAlgebra checks the category invariants on random indexes.
func TestClassify_SetAlgebra(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomIndex := func() *taskindex.Index {
		var msgs []string
		n := rng.Intn(30)
		for i := 0; i < n; i++ {
			msgs = append(msgs, fmt.Sprintf("PROJ-%d step %d", rng.Intn(10), rng.Intn(4)))
		}
		return index(t, msgs...)
	}

	for i := 0; i < 200; i++ {
		oldIx, newIx := randomIndex(), randomIndex()
		r := Classify(oldIx, newIx)

		missing := toSet(r.MissingTaskIDs)
		added := toSet(r.NewTaskIDs)
		common := toSet(r.CommonTaskIDs)

		for task := range missing {
			assert.NotContains(t, added, task)
		}

		union := toSet(r.CommonTaskIDs)
		for task := range missing {
			union[task] = struct{}{}
		}
		assert.Equal(t, oldIx.TaskSet(), union)

		assert.Equal(t, missing, toSet(r.CompletelyMissing))
		assert.Equal(t, added, toSet(r.CompletelyNew))
		for task := range r.PartiallyMissing {
			assert.Contains(t, common, task)
			assert.NotContains(t, missing, task)
		}
		for task := range r.PartiallyNew {
			assert.Contains(t, common, task)
			assert.NotContains(t, added, task)
		}
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
