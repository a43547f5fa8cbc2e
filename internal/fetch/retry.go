package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/matsen/versiondiff/internal/commit"
	"github.com/matsen/versiondiff/internal/gitlab"
)

// newBackOff returns the retry schedule for a single page: exponential
// backoff capped at Retries extra attempts and bound to ctx.
func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.opts.InitialBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	exp.MaxInterval = 10 * f.opts.InitialBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(f.opts.Retries)), ctx)
}

// fetchPage retrieves one page with a per-call timeout, retrying transient
// errors. Not-found and auth errors are returned on the first attempt.
func (f *Fetcher) fetchPage(ctx context.Context, ref string, page int) ([]commit.Record, int, error) {
	var records []commit.Record
	attempts := 0

	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		recs, err := f.source.ListCommits(callCtx, ref, page, f.opts.PerPage)
		if err != nil {
			if ctx.Err() != nil || !gitlab.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		records = recs
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.metrics.retry()
		f.logger.Warn("retrying commit page",
			"ref", ref,
			"page", page,
			"attempt", attempts,
			"wait", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(op, f.newBackOff(ctx), notify); err != nil {
		return nil, attempts, err
	}
	return records, attempts, nil
}
