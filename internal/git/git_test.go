package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/reqcache"
)

// newRepo creates a repository with n commits whose subjects are "TASK-<i> change <i>".
func newRepo(t *testing.T, n int) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Dev", "GIT_AUTHOR_EMAIL=dev@example.com",
			"GIT_COMMITTER_NAME=Dev", "GIT_COMMITTER_EMAIL=dev@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	}
	run("init", "-q", "-b", "main")
	for i := 1; i <= n; i++ {
		run("commit", "-q", "--allow-empty", "-m", fmt.Sprintf("TASK-%d change %d\n\nbody line", i, i))
		if i == 2 {
			run("tag", "v0.1")
		}
		if i == 3 {
			run("tag", "-a", "v0.2", "-m", "second release")
		}
	}

	repo, err := Open(dir)
	require.NoError(t, err)
	return repo
}

func TestOpen_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestListCommits_Pages(t *testing.T) {
	repo := newRepo(t, 5)
	ctx := context.Background()

	first, err := repo.ListCommits(ctx, "main", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "TASK-5 change 5\n\nbody line", first[0].Message)
	assert.Equal(t, "TASK-4 change 4", first[1].FirstLine())
	assert.Equal(t, "Dev", first[0].AuthorName)
	assert.Len(t, first[0].ID, 40)
	assert.True(t, strings.HasPrefix(first[0].ID, first[0].ShortID))
	assert.NotEmpty(t, first[0].CommittedDate)

	last, err := repo.ListCommits(ctx, "main", 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "TASK-1 change 1", last[0].FirstLine())

	past, err := repo.ListCommits(ctx, "main", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, past)

	tagged, err := repo.ListCommits(ctx, "v0.1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, tagged, 2)
}

func TestListCommits_UnknownRef(t *testing.T) {
	repo := newRepo(t, 1)
	_, err := repo.ListCommits(context.Background(), "no-such-branch", 1, 10)
	assert.ErrorIs(t, err, gitlab.ErrRefNotFound)
	assert.True(t, gitlab.IsNotFound(err))
}

func TestListTags(t *testing.T) {
	repo := newRepo(t, 3)
	tags, err := repo.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)

	byName := map[string]gitlab.Tag{}
	for _, tag := range tags {
		byName[tag.Name] = tag
	}

	head, err := repo.ResolveRef(context.Background(), "main")
	require.NoError(t, err)

	annotated := byName["v0.2"]
	assert.Equal(t, head, annotated.Commit.ID)
	assert.NotEqual(t, head, annotated.Target, "annotated tags point at a tag object")
	assert.Equal(t, "second release", annotated.Message)
	assert.NotEmpty(t, annotated.Commit.CommittedDate)

	light := byName["v0.1"]
	assert.Equal(t, light.Target, light.Commit.ID)
	assert.Empty(t, light.Message)
}

func TestFetchAll_LocalRepo(t *testing.T) {
	repo := newRepo(t, 7)
	f := fetch.NewFetcher(repo, fetch.NewPool(2), fetch.Options{PerPage: 3})

	res := f.FetchAll(context.Background(), "main", reqcache.New())
	require.Equal(t, fetch.OutcomeOK, res.Outcome, "err: %v", res.Err)
	assert.False(t, res.Partial())
	assert.Len(t, res.Commits, 7)
	assert.Equal(t, 7, commit.CountDistinct(res.Commits))

	missing := f.FetchAll(context.Background(), "gone", reqcache.New())
	assert.Equal(t, fetch.OutcomeNotFound, missing.Outcome)
}

func TestParseLog_SkipsMalformed(t *testing.T) {
	data := []byte("a\x1fb\x1fc\x1fd\x1fsubject\n\x1e\nbroken\x1e")
	records := parseLog(data)
	require.Len(t, records, 1)
	assert.Equal(t, "subject", records[0].Message)
}
