package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 { return &v }

func model(id string, in, out *float64) CatalogModel {
	return CatalogModel{ID: id, Pricing: PriceInfo{InputPerMTok: in, OutputPerMTok: out}}
}

func TestFilterCandidatesPriceCap(t *testing.T) {
	models := []CatalogModel{
		model("a/cheap", price(0.001), nil),
		model("b/pricey", price(0.003), nil),
		model("c/unknown", nil, nil),
	}
	ids, err := FilterCandidates(models, FilterOptions{MaxPerMTok: price(0.002)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/cheap", "c/unknown"}, ids)
}

func TestFilterCandidatesUsesConservativeEstimate(t *testing.T) {
	models := []CatalogModel{
		model("a/in-cheap-out-pricey", price(1), price(20)),
		model("b/cheap", price(1), price(2)),
		model("c/cheap", nil, price(3)),
	}
	ids, err := FilterCandidates(models, FilterOptions{MaxPerMTok: price(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/cheap", "c/cheap"}, ids)
}

func TestFilterCandidatesCapTooStrictFallsBack(t *testing.T) {
	models := []CatalogModel{
		model("a/one", price(10), nil),
		model("b/two", price(20), nil),
		model("c/three", price(1), nil),
	}
	ids, err := FilterCandidates(models, FilterOptions{MaxPerMTok: price(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, ids)
}

func TestFilterCandidatesRequiresProviderSeparator(t *testing.T) {
	models := []CatalogModel{
		model("noprefix", nil, nil),
		model("a/one", nil, nil),
		model("b/two", nil, nil),
	}
	ids, err := FilterCandidates(models, FilterOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two"}, ids)

	_, err = FilterCandidates(models[:2], FilterOptions{})
	assert.ErrorIs(t, err, ErrInsufficientCandidates)
}

func TestFilterCandidatesSmartMode(t *testing.T) {
	models := []CatalogModel{
		model("anthropic/Claude-3.5-Sonnet", nil, nil),
		model("meta/llama-3", nil, nil),
		model("google/gemini-1.5-pro", nil, nil),
		model("x-ai/grok-2", nil, nil),
	}
	ids, err := FilterCandidates(models, FilterOptions{Smart: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic/Claude-3.5-Sonnet", "google/gemini-1.5-pro", "x-ai/grok-2"}, ids)
}

func TestFilterCandidatesSmartModeIgnoredWhenTooNarrow(t *testing.T) {
	models := []CatalogModel{
		model("anthropic/claude", nil, nil),
		model("meta/llama-3", nil, nil),
		model("mistral/large", nil, nil),
	}
	ids, err := FilterCandidates(models, FilterOptions{Smart: true})
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestFilterCandidatesEmpty(t *testing.T) {
	_, err := FilterCandidates(nil, FilterOptions{Smart: true, MaxPerMTok: price(1)})
	assert.ErrorIs(t, err, ErrInsufficientCandidates)
}

func TestProvider(t *testing.T) {
	assert.Equal(t, "anthropic", Provider("anthropic/claude-3.5"))
	assert.Equal(t, "openai", Provider("openai/gpt-4o/extended"))
	assert.Equal(t, "unknown", Provider("bare"))
	assert.Equal(t, "unknown", Provider("/lead"))
}
