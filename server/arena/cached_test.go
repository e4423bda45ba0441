package arena

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnippets struct {
	prompts  map[string]string
	snippets map[string][]Snippet
	err      error
	calls    int
}

func (f *fakeSnippets) ListCachedPrompts(context.Context, int) ([]CachedSummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []CachedSummary
	for id, p := range f.prompts {
		out = append(out, CachedSummary{ID: id, Prompt: p, SnippetCount: len(f.snippets[id])})
	}
	return out, nil
}

func (f *fakeSnippets) CachedPrompt(_ context.Context, id string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	p, ok := f.prompts[id]
	if !ok {
		return "", ErrNotFound
	}
	return p, nil
}

func (f *fakeSnippets) EnabledSnippets(_ context.Context, id string, limit int) ([]Snippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.snippets[id]
	if len(s) > limit {
		s = s[:limit]
	}
	return s, nil
}

type fakeLegacy struct {
	rows map[string]LegacyComparison
	err  error
}

func (f *fakeLegacy) ListLegacyComparisons(context.Context, int) ([]LegacyComparison, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []LegacyComparison
	for _, c := range f.rows {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeLegacy) LegacyComparison(_ context.Context, id string) (LegacyComparison, error) {
	if f.err != nil {
		return LegacyComparison{}, f.err
	}
	c, ok := f.rows[id]
	if !ok {
		return LegacyComparison{}, ErrNotFound
	}
	return c, nil
}

func threeSnippets() *fakeSnippets {
	return &fakeSnippets{
		prompts: map[string]string{"orbit": "orbiting dots"},
		snippets: map[string][]Snippet{"orbit": {
			{ID: "1", Model: "a/one", Code: "A", Enabled: true},
			{ID: "2", Model: "b/two", Code: "B", Enabled: true},
			{ID: "3", Model: "c/three", Code: "C", Enabled: true},
		}},
	}
}

func legacyWith(id string) *fakeLegacy {
	return &fakeLegacy{rows: map[string]LegacyComparison{id: {
		ID: id, Prompt: "legacy prompt",
		LeftModel: "l/model", LeftCode: "LC",
		RightModel: "r/model", RightCode: "RC",
		Enabled: true,
	}}}
}

func TestResolveSnippetsShuffled(t *testing.T) {
	rnd := &fixedRand{perm: []int{2, 0, 1}}
	r := NewResolver(rnd, threeSnippets(), legacyWith("other"), SeedComparisons)

	pair, err := r.Resolve(context.Background(), "orbit")
	require.NoError(t, err)
	assert.Equal(t, TierSnippets, pair.Tier)
	assert.Equal(t, "orbiting dots", pair.Prompt)
	assert.Equal(t, Side{Model: "c/three", Code: "C"}, pair.Left)
	assert.Equal(t, Side{Model: "a/one", Code: "A"}, pair.Right)
}

func TestResolveSnippetsVaryAcrossCalls(t *testing.T) {
	r := NewResolver(NewRand(99), threeSnippets(), nil, nil)
	seen := map[[2]string]bool{}
	for i := 0; i < 200; i++ {
		pair, err := r.Resolve(context.Background(), "orbit")
		require.NoError(t, err)
		require.NotEqual(t, pair.Left.Model, pair.Right.Model)
		seen[[2]string{pair.Left.Model, pair.Right.Model}] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestResolveTooFewSnippetsFallsToLegacy(t *testing.T) {
	snip := &fakeSnippets{
		prompts:  map[string]string{"x": "p"},
		snippets: map[string][]Snippet{"x": {{Model: "a/one", Code: "A"}}},
	}
	r := NewResolver(NewRand(1), snip, legacyWith("x"), nil)

	pair, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, TierLegacy, pair.Tier)
	assert.Equal(t, Side{Model: "l/model", Code: "LC"}, pair.Left)
	assert.Equal(t, Side{Model: "r/model", Code: "RC"}, pair.Right)
}

func TestResolveLegacyOnly(t *testing.T) {
	r := NewResolver(NewRand(1), threeSnippets(), legacyWith("old"), SeedComparisons)
	pair, err := r.Resolve(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, TierLegacy, pair.Tier)
	assert.Equal(t, "legacy prompt", pair.Prompt)
	assert.Equal(t, "l/model", pair.Left.Model)
	assert.Equal(t, "r/model", pair.Right.Model)
}

func TestResolveUnreachableStoresCascadeToSeed(t *testing.T) {
	down := errors.New("connection refused")
	r := NewResolver(NewRand(1), &fakeSnippets{err: down}, &fakeLegacy{err: down}, SeedComparisons)

	pair, err := r.Resolve(context.Background(), "hello-aqua")
	require.NoError(t, err)
	assert.Equal(t, TierSeed, pair.Tier)
	assert.Equal(t, "anthropic/claude-3-5-sonnet", pair.Left.Model)
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(NewRand(1), threeSnippets(), legacyWith("old"), SeedComparisons)
	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewResolver(NewRand(1), nil, nil, nil).Resolve(context.Background(), "hello-aqua")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPrefersSnippets(t *testing.T) {
	r := NewResolver(NewRand(1), threeSnippets(), legacyWith("old"), SeedComparisons)
	rows := r.List(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, CachedSummary{ID: "orbit", Prompt: "orbiting dots", SnippetCount: 3}, rows[0])
}

func TestListFallsBack(t *testing.T) {
	down := errors.New("relation does not exist")

	r := NewResolver(NewRand(1), &fakeSnippets{err: down}, legacyWith("old"), SeedComparisons)
	rows := r.List(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "old", rows[0].ID)
	assert.Equal(t, 2, rows[0].SnippetCount)

	r = NewResolver(NewRand(1), &fakeSnippets{err: down}, &fakeLegacy{err: down}, SeedComparisons)
	rows = r.List(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "hello-aqua", rows[0].ID)

	r = NewResolver(NewRand(1), &fakeSnippets{}, &fakeLegacy{}, SeedComparisons)
	rows = r.List(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "hello-aqua", rows[0].ID)

	assert.Empty(t, NewResolver(NewRand(1), nil, nil, nil).List(context.Background()))
}
