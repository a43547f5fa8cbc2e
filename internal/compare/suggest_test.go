package compare

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/versiondiff/internal/fetch"
	"github.com/matsen/versiondiff/internal/gitlab"
)

func tag(name, date string) gitlab.Tag {
	var t gitlab.Tag
	t.Name, t.Commit.CommittedDate = name, date
	return t
}

func suggestionTags(s []Suggestion) []string {
	out := make([]string, len(s))
	for i, sg := range s {
		out[i] = sg.Tag
	}
	return out
}

func TestSuggestUpgrades_BySemver(t *testing.T) {
	tags := fakeTags{
		tag("v1.9.0", "2024-01-01T00:00:00Z"),
		tag("v1.10.0", "2024-02-01T00:00:00Z"),
		tag("v2.0.0-rc.1", "2024-03-01T00:00:00Z"),
		tag("v1.4.0", "2023-06-01T00:00:00Z"),
		tag("nightly", "2024-04-01T00:00:00Z"),
		tag("v2.0.0", "2024-05-01T00:00:00Z"),
	}
	e := newTestEngine(t, newFakeRepo(nil), fetch.Options{}, WithTags(tags, "42"))

	got, err := e.SuggestUpgrades(context.Background(), "v1.4.0", 0)
	require.NoError(t, err)
	// Numeric ordering puts 1.10 after 1.9; the pre-release and the
	// non-version tag are skipped.
	assert.Equal(t, []string{"v1.9.0", "v1.10.0", "v2.0.0"}, suggestionTags(got))
	assert.Equal(t, "1.9.0", got[0].Version)

	limited, err := e.SuggestUpgrades(context.Background(), "1.9.0", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.10.0"}, suggestionTags(limited))

	pre, err := e.SuggestUpgrades(context.Background(), "v2.0.0-beta", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2.0.0-rc.1", "v2.0.0"}, suggestionTags(pre))

	latest, err := e.SuggestUpgrades(context.Background(), "v2.0.0", 0)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestSuggestUpgrades_ByTagDate(t *testing.T) {
	tags := fakeTags{
		tag("release-a", "2024-01-01T00:00:00Z"),
		tag("release-c", "2024-03-01T00:00:00Z"),
		tag("release-b", "2024-02-01T00:00:00Z"),
	}
	e := newTestEngine(t, newFakeRepo(nil), fetch.Options{}, WithTags(tags, "42"))

	got, err := e.SuggestUpgrades(context.Background(), "release-a", DefaultSuggestions)
	require.NoError(t, err)
	assert.Equal(t, []string{"release-b", "release-c"}, suggestionTags(got))

	_, err = e.SuggestUpgrades(context.Background(), "release-z", 0)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	_, err = newTestEngine(t, newFakeRepo(nil), fetch.Options{}).SuggestUpgrades(context.Background(), "v1.0.0", 0)
	assert.ErrorIs(t, err, ErrNoTagLister)
}
