package fetch

import (
	"context"
	"errors"

	"github.com/matsen/versiondiff/internal/commit"
)

// ErrPageBound is logged when the probe reaches MaxPages without finding the
// end of the history; the fetcher then continues page by page.
var ErrPageBound = errors.New("history extends past the probe's page bound")

// PageCount is the outcome of probing a ref for its number of commit pages.
type PageCount struct {
	// Pages is the highest page known to hold commits.
	Pages int
	// Exact is false when the probe could not confirm that page Pages+1 is
	// empty (every page left to search failed, or the bound was reached).
	Exact bool
}

// Probe determines how many pages of commits ref has without trusting any
// total-count header from the server. The search is sequential: each request
// depends on the previous one.
//
// A not-found or unauthorized ref is reported as an error, never as zero pages.
func (f *Fetcher) Probe(ctx context.Context, ref string) (PageCount, error) {
	pc, _, err := f.probe(ctx, ref)
	return pc, err
}

// probe also returns the first page so FetchAll does not request it twice.
func (f *Fetcher) probe(ctx context.Context, ref string) (PageCount, []commit.Record, error) {
	f.metrics.probed()
	first, _, err := f.fetchPage(ctx, ref, 1)
	if err != nil {
		return PageCount{}, nil, err
	}

	switch {
	case len(first) == 0:
		return PageCount{Pages: 0, Exact: true}, nil, nil
	case len(first) < f.opts.PerPage:
		return PageCount{Pages: 1, Exact: true}, first, nil
	}

	// Page 1 is full. Binary search for the last non-empty page in
	// [2, MaxPages]; lastValid always holds a page known to be non-empty.
	// A page that fails is set aside and a neighbour in the same range is
	// probed instead; failures never move the bounds.
	lo, hi := 2, f.opts.MaxPages
	lastValid := 1
	failed := make(map[int]bool)
	for lo <= hi {
		mid, ok := pickPage(lo, hi, failed)
		if !ok {
			// Every remaining candidate failed; continue incrementally.
			f.logger.Warn("page count probe incomplete",
				"ref", ref,
				"known_pages", lastValid,
				"failed_pages", len(failed))
			return PageCount{Pages: lastValid, Exact: false}, first, nil
		}

		f.metrics.probed()
		records, _, err := f.fetchPage(ctx, ref, mid)
		if err != nil {
			if ctx.Err() != nil {
				return PageCount{}, nil, ctx.Err()
			}
			f.logger.Warn("probe page failed, trying a neighbour",
				"ref", ref,
				"page", mid,
				"error", err)
			failed[mid] = true
			continue
		}

		switch {
		case len(records) == 0:
			hi = mid - 1
		case len(records) < f.opts.PerPage:
			// A short page can only be the last one.
			return PageCount{Pages: mid, Exact: true}, first, nil
		default:
			lastValid = mid
			lo = mid + 1
		}
	}

	if lastValid >= f.opts.MaxPages {
		f.logger.Warn("page count probe incomplete",
			"ref", ref,
			"known_pages", lastValid,
			"error", ErrPageBound)
		return PageCount{Pages: lastValid, Exact: false}, first, nil
	}
	return PageCount{Pages: lastValid, Exact: true}, first, nil
}

// pickPage returns the page in [lo, hi] closest to the midpoint that has not
// failed, preferring the higher neighbour.
func pickPage(lo, hi int, failed map[int]bool) (int, bool) {
	mid := lo + (hi-lo)/2
	for d := 0; mid-d >= lo || mid+d <= hi; d++ {
		if p := mid + d; p <= hi && !failed[p] {
			return p, true
		}
		if p := mid - d; p >= lo && !failed[p] {
			return p, true
		}
	}
	return 0, false
}
