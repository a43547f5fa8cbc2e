package taskindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/commit"
)

func mustBuilder(t *testing.T, patterns ...string) *Builder {
	t.Helper()
	b, err := NewBuilder(patterns...)
	require.NoError(t, err)
	return b
}

func rec(id, msg string) commit.Record {
	return commit.Record{ID: id, ShortID: id[:1], Message: msg}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "PROJ-1 add X", want: "PROJ-1 add X"},
		{name: "surrounding whitespace", in: "  PROJ-1 add X \t", want: "PROJ-1 add X"},
		{name: "cherry-pick suffix", in: "PROJ-1 add X (cherry picked from commit 0a1b2c3d)", want: "PROJ-1 add X"},
		{name: "hyphenated suffix", in: "PROJ-1 add X [cherry-picked from 0a1b2c3d4e]", want: "PROJ-1 add X"},
		{name: "stacked suffixes", in: "PROJ-1 add X (cherry picked from commit abcd) (cherry picked from commit ef01)", want: "PROJ-1 add X"},
		{name: "not a suffix", in: "PROJ-1 (cherry picked from commit abcd) tweak", want: "PROJ-1 (cherry picked from commit abcd) tweak"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLine(tt.in))
		})
	}
}

func TestExtract(t *testing.T) {
	b := mustBuilder(t)
	assert.Equal(t, []string{"PROJ-1", "OPS-22"}, b.Extract("PROJ-1 fix, see OPS-22 and PROJ-1 again"))
	assert.Empty(t, b.Extract("no task here, lower-case proj-1 neither"))

	multi := mustBuilder(t, `GALAXY-\d+`, `#\d+`)
	assert.Equal(t, []string{"GALAXY-7", "#12"}, multi.Extract("GALAXY-7 closes #12"))
}

func TestExtract_IgnoresStandardNames(t *testing.T) {
	msg := "PROJ-1 switch hashing to SHA-256 and UTF-8 paths (ISO-8601 dates, RFC-3339)"
	assert.Equal(t, []string{"PROJ-1"}, mustBuilder(t).Extract(msg))

	ix := mustBuilder(t).Build([]commit.Record{rec("a", msg)})
	assert.Equal(t, []string{"PROJ-1"}, ix.Tasks())
	assert.True(t, ix.HasTask("PROJ-1"))
	assert.False(t, ix.HasTask("SHA-256"))

	// An explicit pattern is taken at its word.
	explicit := mustBuilder(t, `[A-Z]+-\d+`)
	assert.Equal(t, []string{"PROJ-1", "SHA-256", "UTF-8", "ISO-8601", "RFC-3339"}, explicit.Extract(msg))
}

func TestNewBuilder_BadPattern(t *testing.T) {
	_, err := NewBuilder("(")
	assert.Error(t, err)
}

func TestBuild_MultipleTasksPerCommit(t *testing.T) {
	b := mustBuilder(t)
	ix := b.Build([]commit.Record{
		rec("aaa", "PROJ-1 PROJ-2 shared change\n\nalso touches OPS-3"),
	})

	assert.Equal(t, []string{"OPS-3", "PROJ-1", "PROJ-2"}, ix.Tasks())
	assert.Equal(t, 3, ix.Len())
	for _, task := range ix.Tasks() {
		keys := ix.KeysFor(task)
		require.Len(t, keys, 1)
		assert.Equal(t, "PROJ-1 PROJ-2 shared change", keys[0].Line)
	}
}

func TestBuild_FirstOccurrenceWins(t *testing.T) {
	b := mustBuilder(t)
	ix := b.Build([]commit.Record{
		rec("aaa", "PROJ-1 add X"),
		rec("bbb", "PROJ-1 add X (cherry picked from commit aaa000)"),
	})

	require.Equal(t, 1, ix.Len())
	got, ok := ix.Commit(Key{TaskID: "PROJ-1", Line: "PROJ-1 add X"})
	require.True(t, ok)
	assert.Equal(t, "aaa", got.ID)
}

func TestBuild_SkipsCommitsWithoutTasks(t *testing.T) {
	b := mustBuilder(t)
	ix := b.Build([]commit.Record{
		rec("aaa", "Merge branch 'main'"),
		rec("bbb", ""),
	})
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.TaskSet())
}

func TestBuild_Idempotent(t *testing.T) {
	b := mustBuilder(t)
	commits := []commit.Record{
		rec("aaa", "PROJ-1 add X"),
		rec("bbb", "PROJ-2 add Y\n\nPROJ-3 follow-up"),
		rec("ccc", "PROJ-1 tests for X"),
	}

	first := b.Build(commits)
	second := b.Build(commits)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Tasks(), second.Tasks())
}

func TestBuild_CherryPickDuplicateKeepsTaskSet(t *testing.T) {
	b := mustBuilder(t)
	commits := []commit.Record{
		rec("aaa", "PROJ-1 add X"),
		rec("bbb", "PROJ-2 add Y"),
	}
	withDup := append(append([]commit.Record{}, commits...),
		commit.Record{ID: "zzz", ShortID: "z", AuthorName: "someone else", CommittedDate: "2025-01-01T00:00:00Z", Message: "PROJ-1 add X\n\n(cherry picked from commit aaa)"},
	)

	plain := b.Build(commits)
	dup := b.Build(withDup)
	assert.Equal(t, plain.TaskSet(), dup.TaskSet())
	assert.True(t, plain.Equal(dup))
}

func TestSummarize(t *testing.T) {
	b := mustBuilder(t)
	s, ix := b.Summarize([]commit.Record{
		rec("aaa", "PROJ-1 add X"),
		rec("bbb", "PROJ-1 more X"),
		rec("ccc", "chore: bump deps"),
		rec("ddd", "PROJ-2 add Y"),
	})

	assert.Equal(t, 4, s.Commits)
	assert.Equal(t, 3, s.CommitsWithTasks)
	assert.Equal(t, 1, s.CommitsWithoutTask)
	assert.Equal(t, 2, s.Tasks)
	assert.Equal(t, 3, s.Keys)
	assert.InDelta(t, 0.5, s.TaskDensity, 1e-9)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2"}, s.SampleTasks)
	assert.Equal(t, 3, ix.Len())
}
