package compare

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/gitlab"
)

func TestTaskDetails(t *testing.T) {
	repo := newFakeRepo(map[string][]string{
		// Newest first, as the host lists them.
		"v2": {"PROJ-1 polish", "OPS-4 deploy", "PROJ-1 add X", "chore"},
	})
	e := newTestEngine(t, repo, fetch.Options{})

	r, err := e.TaskDetails(context.Background(), "v2", "PROJ-1", "PROJ-9", "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", r.Ref)
	assert.Equal(t, 4, r.Commits)
	assert.Equal(t, 1, r.Found)
	assert.Equal(t, []string{"PROJ-9"}, r.NotFound)
	require.Len(t, r.Tasks, 2, "duplicate requests are reported once")

	found := r.Tasks[0]
	assert.Equal(t, TaskFound, found.Status)
	require.Len(t, found.Changes, 2)
	assert.Equal(t, "PROJ-1 polish", found.Latest.Line)
	assert.Equal(t, "PROJ-1 add X", found.First.Line)
	assert.Equal(t, "v2-00000000000000000000000000000000000002", found.First.ID)

	missing := r.Tasks[1]
	assert.Equal(t, TaskDetail{TaskID: "PROJ-9", Status: TaskNotFound}, missing)
	assert.Empty(t, r.Warnings)
}

func TestTaskDetails_PartialRefWarns(t *testing.T) {
	repo := newFakeRepo(map[string][]string{
		"v1": {"PROJ-1 a", "PROJ-2 b"},
	})
	repo.badPages["v1"] = map[int]bool{2: true}
	e := newTestEngine(t, repo, fetch.Options{PerPage: 1, MaxPages: 4, Retries: 0})

	r, err := e.TaskDetails(context.Background(), "v1", "PROJ-1", "PROJ-2")
	require.NoError(t, err)
	assert.True(t, r.Partial)
	assert.Equal(t, []int{2}, r.FailedPages)
	assert.Equal(t, []string{"PROJ-2"}, r.NotFound)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "not_found")
}

func TestTaskDetails_MissingRef(t *testing.T) {
	e := newTestEngine(t, newFakeRepo(nil), fetch.Options{})

	_, err := e.TaskDetails(context.Background(), "nope", "PROJ-1")
	var refErr *RefError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, fetch.OutcomeNotFound, refErr.Outcome)
	assert.True(t, gitlab.IsNotFound(err))
}

func TestSearchTasks(t *testing.T) {
	repo := newFakeRepo(map[string][]string{
		"main": {"PROJ-12 a", "OPS-3 b", "PROJ-120 c", "PROJ-7 d"},
	})
	e := newTestEngine(t, repo, fetch.Options{})

	r, err := e.SearchTasks(context.Background(), "main", `^PROJ-12`)
	require.NoError(t, err)
	assert.Equal(t, `^PROJ-12`, r.Pattern)
	assert.Equal(t, 2, r.Found)
	assert.Empty(t, r.NotFound)
	require.Len(t, r.Tasks, 2)
	assert.Equal(t, "PROJ-12", r.Tasks[0].TaskID)
	assert.Equal(t, "PROJ-120", r.Tasks[1].TaskID)

	none, err := e.SearchTasks(context.Background(), "main", `^NOPE-`)
	require.NoError(t, err)
	assert.Empty(t, none.Tasks)
	assert.NotNil(t, none.Tasks)

	_, err = e.SearchTasks(context.Background(), "main", `(`)
	assert.ErrorIs(t, err, ErrBadSearchPattern)
}
