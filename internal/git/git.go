// Package git reads commit history and tags from a local clone, so refs can
// be compared without a GitLab server.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/gitlab"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// Field and record separators for git's --format output. Commit messages
// cannot contain them.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// FindRepoRoot finds the root of the git repository containing the given path.
// Returns ErrNotGitRepo if not in a git repository.
func FindRepoRoot(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, path)
	}
	return strings.TrimSpace(string(output)), nil
}

// Repo is a local clone.
type Repo struct {
	root string
}

// Open returns the repository containing path.
func Open(path string) (*Repo, error) {
	root, err := FindRepoRoot(path)
	if err != nil {
		return nil, err
	}
	return &Repo{root: root}, nil
}

// Root returns the repository's top-level directory.
func (r *Repo) Root() string {
	return r.root
}

// ResolveRef verifies that ref names a commit and returns its full SHA.
// Supports SHA, HEAD, HEAD~N, branch names, tags, etc.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s", gitlab.ErrRefNotFound, ref)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListCommits returns one page of the commits reachable from ref, newest
// first, the same way the GitLab commits endpoint pages them.
func (r *Repo) ListCommits(ctx context.Context, ref string, page, perPage int) ([]commit.Record, error) {
	sha, err := r.ResolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	out, err := r.git(ctx, "log",
		"--skip="+strconv.Itoa((page-1)*perPage),
		"--max-count="+strconv.Itoa(perPage),
		"--format=%H"+fieldSep+"%h"+fieldSep+"%an"+fieldSep+"%cI"+fieldSep+"%B"+recordSep,
		sha)
	if err != nil {
		return nil, fmt.Errorf("git log %s page %d: %w", ref, page, err)
	}
	return parseLog(out), nil
}

// parseLog splits git log output produced with the format in ListCommits.
func parseLog(data []byte) []commit.Record {
	var records []commit.Record
	for _, rec := range bytes.Split(data, []byte(recordSep)) {
		rec = bytes.TrimLeft(rec, "\n")
		if len(rec) == 0 {
			continue
		}
		fields := strings.SplitN(string(rec), fieldSep, 5)
		if len(fields) < 5 {
			continue
		}
		records = append(records, commit.Record{
			ID:            fields[0],
			ShortID:       fields[1],
			AuthorName:    fields[2],
			CommittedDate: fields[3],
			Message:       strings.TrimRight(fields[4], "\n"),
		})
	}
	return records
}

// ListTags returns the repository's tags with the commits they point to.
func (r *Repo) ListTags(ctx context.Context) ([]gitlab.Tag, error) {
	out, err := r.git(ctx, "for-each-ref", "refs/tags",
		"--format=%(refname:short)"+fieldSep+"%(objectname)"+fieldSep+"%(*objectname)"+fieldSep+"%(contents:subject)")
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var tags []gitlab.Tag
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.SplitN(line, fieldSep, 4)
		if len(fields) < 4 {
			continue
		}
		var t gitlab.Tag
		t.Name, t.Target, t.Message = fields[0], fields[1], fields[3]
		// Annotated tags point at a tag object; %(*objectname) is its commit.
		t.Commit.ID = fields[1]
		if fields[2] != "" {
			t.Commit.ID = fields[2]
		} else {
			t.Message = ""
		}
		tags = append(tags, t)
	}

	for i := range tags {
		date, err := r.git(ctx, "log", "-1", "--format=%cI", tags[i].Commit.ID)
		if err != nil {
			return nil, fmt.Errorf("dating tag %s: %w", tags[i].Name, err)
		}
		tags[i].Commit.CommittedDate = strings.TrimSpace(string(date))
	}
	return tags, nil
}

func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.root}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
