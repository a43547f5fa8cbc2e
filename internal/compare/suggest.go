package compare

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver"

	"github.com/matsen/versiondiff/internal/gitlab"
)

// ErrUnknownVersion is returned by SuggestUpgrades when the current version is
// neither a semantic version nor the name of a tag.
var ErrUnknownVersion = errors.New("version is neither a semantic version nor a known tag")

// DefaultSuggestions is the number of upgrade candidates returned by default.
const DefaultSuggestions = 5

// Suggestion is a tag the current version could be upgraded to.
type Suggestion struct {
	Tag           string `json:"tag"`
	Version       string `json:"version,omitempty"` // normalised semantic version
	CommittedDate string `json:"committed_date,omitempty"`
}

// SuggestUpgrades returns up to max tags newer than current, nearest first.
//
// When current parses as a semantic version ("1.4.0", "v1.4.0"), tags are
// ordered by version; tags that do not parse are skipped, as are
// pre-releases unless current is one. Otherwise current must name a tag and
// later tags are ordered by commit date. max <= 0 returns every candidate.
func (e *Engine) SuggestUpgrades(ctx context.Context, current string, max int) ([]Suggestion, error) {
	tags, err := e.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	if cur, err := semver.NewVersion(current); err == nil {
		out = newerBySemver(tags, cur)
	} else {
		out, err = newerByDate(tags, current)
		if err != nil {
			return nil, err
		}
	}

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	e.logger.Debug("upgrade suggestions", "current", current, "candidates", len(out))
	return out, nil
}

func newerBySemver(tags []gitlab.Tag, cur *semver.Version) []Suggestion {
	type candidate struct {
		tag gitlab.Tag
		v   *semver.Version
	}
	var cands []candidate
	for _, t := range tags {
		v, err := semver.NewVersion(t.Name)
		if err != nil || !v.GreaterThan(cur) {
			continue
		}
		if v.Prerelease() != "" && cur.Prerelease() == "" {
			continue
		}
		cands = append(cands, candidate{tag: t, v: v})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].v.LessThan(cands[j].v) })

	out := make([]Suggestion, 0, len(cands))
	for _, c := range cands {
		out = append(out, Suggestion{Tag: c.tag.Name, Version: c.v.String(), CommittedDate: c.tag.Commit.CommittedDate})
	}
	return out
}

// newerByDate expects tags newest first, as ListTags returns them.
func newerByDate(tags []gitlab.Tag, current string) ([]Suggestion, error) {
	idx := -1
	for i, t := range tags {
		if t.Name == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, current)
	}

	date := tags[idx].Commit.CommittedDate
	out := []Suggestion{}
	for i := idx - 1; i >= 0; i-- {
		if tags[i].Commit.CommittedDate <= date {
			continue
		}
		out = append(out, Suggestion{Tag: tags[i].Name, CommittedDate: tags[i].Commit.CommittedDate})
	}
	return out, nil
}
