// Package commit defines the commit record shared by the fetch pipeline.
package commit

import "strings"

// Record is a single commit as returned by the source-control host.
// Records are treated as immutable once fetched.
type Record struct {
	ID            string `json:"id"`
	ShortID       string `json:"short_id"`
	Message       string `json:"message"`
	AuthorName    string `json:"author_name"`
	CommittedDate string `json:"committed_date"` // ISO-8601
}

// FirstLine returns the first non-blank line of the commit message.
func (r Record) FirstLine() string {
	for _, line := range strings.Split(r.Message, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

// CountDistinct returns the number of distinct commit IDs in records.
func CountDistinct(records []Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.ID] = struct{}{}
	}
	return len(seen)
}
