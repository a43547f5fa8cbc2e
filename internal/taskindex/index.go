// Package taskindex maps commits onto the task identifiers their messages
// declare.
//
// Each (task, commit) pair is keyed by the task identifier and the normalised
// first line of the message. Cherry-picks and rebases change the hash but not
// the key, so they collapse onto the same unit of work.
package taskindex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/matsen/versiondiff/internal/commit"
)

// DefaultPattern matches identifiers such as PROJ-12345. Matches whose prefix
// names a standard or algorithm (SHA-256, UTF-8, ISO-8601) are dropped; set
// an explicit pattern such as `PROJ-\d+` to match one project key only.
const DefaultPattern = `\b[A-Z][A-Z0-9_]+-\d+\b`

// standardPrefixes are ignored in DefaultPattern matches.
var standardPrefixes = map[string]bool{
	"AES": true, "AGPL": true, "BSD": true, "CP": true, "CRC": true,
	"CVE": true, "CWE": true, "ECMA": true, "ES": true, "GMT": true,
	"GPL": true, "HTTP": true, "IEC": true, "IEEE": true, "ISO": true,
	"LGPL": true, "MD": true, "PEP": true, "RFC": true, "RSA": true,
	"SHA": true, "SSL": true, "TLS": true, "UCS": true, "UTC": true,
	"UTF": true,
}

// isStandardName reports whether id, e.g. "SHA-256", names a standard.
func isStandardName(id string) bool {
	i := strings.LastIndexByte(id, '-')
	return i > 0 && standardPrefixes[id[:i]]
}

// Key identifies one unit of work within a task.
type Key struct {
	TaskID string `json:"task_id"`
	Line   string `json:"line"`
}

// Index maps identity keys to task identifiers for one ref.
type Index struct {
	entries map[Key]commit.Record // first commit seen for each key
	byTask  map[string][]Key
}

func newIndex() *Index {
	return &Index{
		entries: make(map[Key]commit.Record),
		byTask:  make(map[string][]Key),
	}
}

// Len returns the number of identity keys.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Has reports whether key is present.
func (ix *Index) Has(key Key) bool {
	_, ok := ix.entries[key]
	return ok
}

// HasTask reports whether any key belongs to task.
func (ix *Index) HasTask(task string) bool {
	return len(ix.byTask[task]) > 0
}

// Commit returns the commit that first produced key.
func (ix *Index) Commit(key Key) (commit.Record, bool) {
	r, ok := ix.entries[key]
	return r, ok
}

// KeysFor returns the keys of task in insertion order.
func (ix *Index) KeysFor(task string) []Key {
	return ix.byTask[task]
}

// TaskSet returns the set of task identifiers in the index.
func (ix *Index) TaskSet() map[string]struct{} {
	set := make(map[string]struct{}, len(ix.byTask))
	for task := range ix.byTask {
		set[task] = struct{}{}
	}
	return set
}

// Tasks returns the task identifiers sorted.
func (ix *Index) Tasks() []string {
	tasks := make([]string, 0, len(ix.byTask))
	for task := range ix.byTask {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// Equal reports whether two indexes hold the same keys.
func (ix *Index) Equal(other *Index) bool {
	if ix.Len() != other.Len() {
		return false
	}
	for key := range ix.entries {
		if !other.Has(key) {
			return false
		}
	}
	return true
}

// insert adds key unless it is already present; the first occurrence wins.
func (ix *Index) insert(key Key, r commit.Record) {
	if _, ok := ix.entries[key]; ok {
		return
	}
	ix.entries[key] = r
	ix.byTask[key.TaskID] = append(ix.byTask[key.TaskID], key)
}

// Builder extracts task identifiers with one or more patterns.
type Builder struct {
	patterns []*regexp.Regexp
	generic  []bool // patterns[i] is DefaultPattern
}

// NewBuilder compiles the given patterns. With no patterns, DefaultPattern is used.
func NewBuilder(patterns ...string) (*Builder, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}

	b := &Builder{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling task pattern %q: %w", p, err)
		}
		b.patterns = append(b.patterns, re)
		b.generic = append(b.generic, p == DefaultPattern)
	}
	return b, nil
}

// Extract returns the distinct task identifiers in message, in order of
// first appearance per pattern.
func (b *Builder) Extract(message string) []string {
	var ids []string
	seen := make(map[string]bool)
	for i, re := range b.patterns {
		for _, id := range re.FindAllString(message, -1) {
			if b.generic[i] && isStandardName(id) {
				continue
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Build indexes commits. Identifiers are searched in the whole message, but
// the key uses only the normalised first line. A commit naming several tasks
// is indexed once per task; commits naming none contribute nothing.
func (b *Builder) Build(commits []commit.Record) *Index {
	ix := newIndex()
	for _, c := range commits {
		ids := b.Extract(c.Message)
		if len(ids) == 0 {
			continue
		}
		line := NormalizeLine(c.FirstLine())
		for _, id := range ids {
			ix.insert(Key{TaskID: id, Line: line}, c)
		}
	}
	return ix
}
