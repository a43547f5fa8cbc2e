package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/matsen/versiondiff/internal/compare"
	"github.com/matsen/versiondiff/internal/gitlab"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	writeMetrics()
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string     `json:"error"`
	Refs  []RefFault `json:"refs,omitempty"`
}

// RefFault names a ref that could not be used and why.
type RefFault struct {
	Ref     string `json:"ref"`
	Side    string `json:"side,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

// refFaults collects every *compare.RefError in err.
func refFaults(err error) []RefFault {
	var errs []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	} else {
		errs = []error{err}
	}

	var faults []RefFault
	for _, e := range errs {
		var refErr *compare.RefError
		if errors.As(e, &refErr) {
			faults = append(faults, RefFault{
				Ref:     refErr.Ref,
				Side:    string(refErr.Side),
				Outcome: refErr.Outcome.String(),
				Reason:  refErr.Reason(),
			})
		}
	}
	return faults
}

// exitCodeFor maps an engine error onto an exit code. Not-found wins over
// auth errors, which win over other fetch failures.
func exitCodeFor(err error) int {
	switch {
	case gitlab.IsNotFound(err), errors.Is(err, compare.ErrUnknownVersion):
		return ExitRefNotFound
	case gitlab.IsAuthError(err):
		return ExitAuthError
	case len(refFaults(err)) > 0:
		return ExitFetchError
	default:
		return ExitError
	}
}

// exitWithEngineError reports an engine error with the failing refs and exits.
func exitWithEngineError(err error) {
	code := exitCodeFor(err)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for _, f := range refFaults(err) {
			fmt.Fprintf(os.Stderr, "  %s ref %s: %s\n", f.Side, f.Ref, f.Reason)
		}
	} else {
		outputJSON(ErrorResponse{Error: err.Error(), Refs: refFaults(err)})
	}
	writeMetrics()
	os.Exit(code)
}
