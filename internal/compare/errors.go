package compare

import (
	"errors"
	"fmt"

	"github.com/matsen/versiondiff/internal/fetch"
)

// ErrAnalysis indicates indexing or classification failed unexpectedly.
var ErrAnalysis = errors.New("analysis failed")

// Side names which ref of a comparison an error refers to. It is empty for
// single-ref operations.
type Side string

const (
	SideOld Side = "old"
	SideNew Side = "new"
)

// RefError reports a ref that could not be used for a comparison.
type RefError struct {
	Ref     string
	Side    Side
	Outcome fetch.Outcome
	Err     error
}

// Reason describes the failure in terms a user can act on.
func (e *RefError) Reason() string {
	switch e.Outcome {
	case fetch.OutcomeNotFound:
		return "ref does not exist"
	case fetch.OutcomeUnauthorized:
		return "access denied"
	default:
		return "server unreachable or failing"
	}
}

func (e *RefError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("ref %q: %s: %v", e.Ref, e.Reason(), e.Err)
	}
	return fmt.Sprintf("%s ref %q: %s: %v", e.Side, e.Ref, e.Reason(), e.Err)
}

func (e *RefError) Unwrap() error {
	return e.Err
}

func refError(side Side, res *fetch.Result) *RefError {
	err := res.Err
	if err == nil {
		err = fmt.Errorf("fetch ended with outcome %s", res.Outcome)
	}
	return &RefError{Ref: res.Ref, Side: side, Outcome: res.Outcome, Err: err}
}
