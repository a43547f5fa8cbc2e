package compare

import (
	"context"
	"errors"
	"sort"

	"github.com/matsen/versiondiff/internal/gitlab"
	"github.com/matsen/versiondiff/internal/reqcache"
)

// ErrNoTagLister is returned by ListTags when the engine has no tag source.
var ErrNoTagLister = errors.New("tag listing is not configured")

// ListTags returns the project's tags, newest commit first.
func (e *Engine) ListTags(ctx context.Context) ([]gitlab.Tag, error) {
	return e.listTags(ctx, reqcache.New())
}

func (e *Engine) listTags(ctx context.Context, cache *reqcache.Cache) ([]gitlab.Tag, error) {
	if e.tags == nil {
		return nil, ErrNoTagLister
	}
	return reqcache.Do(cache, reqcache.Key("tags", e.project), func() ([]gitlab.Tag, bool, error) {
		tags, err := e.tags.ListTags(ctx)
		if err != nil {
			return nil, false, err
		}
		// ISO-8601 dates in the same zone sort lexically.
		sort.SliceStable(tags, func(i, j int) bool {
			return tags[i].Commit.CommittedDate > tags[j].Commit.CommittedDate
		})
		return tags, true, nil
	})
}

// ValidateRefs checks that each ref exists and counts its commit pages.
// Tag membership is reported when a tag source is configured; a failure to
// list tags is logged and does not fail validation.
func (e *Engine) ValidateRefs(ctx context.Context, refs ...string) []RefValidation {
	cache := reqcache.New()
	defer cache.Clear()

	tagNames := make(map[string]bool)
	if e.tags != nil {
		tags, err := e.listTags(ctx, cache)
		if err != nil {
			e.logger.Warn("listing tags failed", "error", err)
		}
		for _, t := range tags {
			tagNames[t.Name] = true
		}
	}

	perPage := e.fetcher.Options().PerPage
	out := make([]RefValidation, 0, len(refs))
	for _, ref := range refs {
		v := RefValidation{Ref: ref, IsTag: tagNames[ref], PerPage: perPage}
		pc, err := e.fetcher.Probe(ctx, ref)
		if err != nil {
			v.Error = err.Error()
		} else {
			v.Exists = true
			v.Pages = pc.Pages
			v.Exact = pc.Exact
		}
		e.logger.Debug("validated ref", "ref", ref, "exists", v.Exists, "pages", v.Pages)
		out = append(out, v)
	}
	return out
}

// RefStatistics fetches ref and summarises how its commits reference tasks.
func (e *Engine) RefStatistics(ctx context.Context, ref string) (*RefStats, error) {
	cache := reqcache.New()
	defer cache.Clear()

	res := e.fetcher.FetchAll(ctx, ref, cache)
	if res.Fatal() {
		return nil, refError("", res)
	}

	summary, _ := e.builder.Summarize(res.Commits)
	return &RefStats{
		Ref:         ref,
		Outcome:     res.Outcome,
		Partial:     res.Partial(),
		FailedPages: res.FailedPageNumbers(),
		FetchTime:   res.Elapsed.Seconds(),
		Summary:     summary,
	}, nil
}
