package fetch

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/matsen/versiondiff/internal/commit"
)

// Outcome tags how a ref fetch ended. Callers switch on it instead of
// inspecting the commit slice, so "zero commits" and "ref missing" can never
// share a branch.
type Outcome int

const (
	// OutcomeOK means every page was retrieved.
	OutcomeOK Outcome = iota
	// OutcomeEmpty means the ref exists and has no commits.
	OutcomeEmpty
	// OutcomePartial means some pages failed after retries; Commits holds the rest.
	OutcomePartial
	// OutcomeNotFound means the host reported the ref does not exist.
	OutcomeNotFound
	// OutcomeUnauthorized means the access token was rejected.
	OutcomeUnauthorized
	// OutcomeFailed means nothing usable was retrieved.
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeOK:           "ok",
	OutcomeEmpty:        "empty",
	OutcomePartial:      "partial",
	OutcomeNotFound:     "not_found",
	OutcomeUnauthorized: "unauthorized",
	OutcomeFailed:       "failed",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// PageError records a page that could not be retrieved.
type PageError struct {
	Page     int
	Attempts int
	Err      error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d (after %d attempts): %v", e.Page, e.Attempts, e.Err)
}

func (e PageError) Unwrap() error {
	return e.Err
}

// Result is the full history of one ref.
type Result struct {
	Ref         string
	Outcome     Outcome
	Commits     []commit.Record
	Pages       int // pages known to hold commits
	FailedPages []PageError
	Err         error // set for NotFound, Unauthorized and Failed
	Elapsed     time.Duration
}

// Fatal reports whether the ref could not be used for a comparison.
func (r *Result) Fatal() bool {
	switch r.Outcome {
	case OutcomeNotFound, OutcomeUnauthorized, OutcomeFailed:
		return true
	}
	return false
}

// Partial reports whether some pages are missing from Commits.
func (r *Result) Partial() bool {
	return r.Outcome == OutcomePartial
}

// FailedPageNumbers returns the failed page numbers in ascending order.
func (r *Result) FailedPageNumbers() []int {
	pages := make([]int, len(r.FailedPages))
	for i, pe := range r.FailedPages {
		pages[i] = pe.Page
	}
	sort.Ints(pages)
	return pages
}

// PageErrors summarises every failed page in a single error, or nil.
func (r *Result) PageErrors() error {
	var merr *multierror.Error
	for _, pe := range r.FailedPages {
		merr = multierror.Append(merr, pe)
	}
	return merr.ErrorOrNil()
}
