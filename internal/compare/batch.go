package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadPair is returned by ParsePair for input not of the form old..new.
var ErrBadPair = errors.New("version pair must look like old..new")

// Pair is one comparison in a batch.
type Pair struct {
	Old string `json:"old_ref"`
	New string `json:"new_ref"`
}

// ParsePair parses "old..new".
func ParsePair(s string) (Pair, error) {
	oldRef, newRef, ok := strings.Cut(s, "..")
	if !ok || oldRef == "" || newRef == "" || strings.Contains(newRef, "..") {
		return Pair{}, fmt.Errorf("%w: %q", ErrBadPair, s)
	}
	return Pair{Old: oldRef, New: newRef}, nil
}

// BatchFailure records a comparison in a batch that did not complete.
type BatchFailure struct {
	Pair
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchReport collects the comparisons of a batch. Failures do not stop the
// batch.
type BatchReport struct {
	Successful int            `json:"successful_comparisons"`
	Failed     int            `json:"failed_comparisons"`
	Results    []*Report      `json:"results"`
	Failures   []BatchFailure `json:"failures"`
	Total      float64        `json:"total_seconds"`
}

// BatchCompare runs Compare for each pair in turn. Each comparison owns its
// own request cache. Once ctx is done, the remaining pairs are recorded as
// failures without being fetched.
func (e *Engine) BatchCompare(ctx context.Context, pairs ...Pair) *BatchReport {
	start := time.Now()
	b := &BatchReport{
		Results:  []*Report{},
		Failures: []BatchFailure{},
	}

	for i, p := range pairs {
		var (
			r   *Report
			err error
		)
		if err = ctx.Err(); err == nil {
			e.logger.Info("batch comparison", "index", i+1, "of", len(pairs), "old_ref", p.Old, "new_ref", p.New)
			r, err = e.Compare(ctx, p.Old, p.New)
		}
		if err != nil {
			b.Failures = append(b.Failures, BatchFailure{Pair: p, Error: err.Error(), Err: err})
			continue
		}
		b.Results = append(b.Results, r)
	}

	b.Successful = len(b.Results)
	b.Failed = len(b.Failures)
	b.Total = time.Since(start).Seconds()
	e.logger.Info("batch finished", "successful", b.Successful, "failed", b.Failed)
	return b
}

// Truncate returns a copy of b with every report truncated to l.
func (b *BatchReport) Truncate(l Limits) *BatchReport {
	out := *b
	out.Results = make([]*Report, len(b.Results))
	for i, r := range b.Results {
		out.Results[i] = r.Truncate(l)
	}
	return &out
}
