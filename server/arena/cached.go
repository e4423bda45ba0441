package arena

import (
	"context"
	"errors"
	"log"
)

const (
	maxSnippetsPerPrompt = 20
	listPromptsLimit     = 50
	listLegacyLimit      = 20
)

// Tier names the backing shape that served a cached comparison.
type Tier string

const (
	TierSnippets Tier = "snippets"
	TierLegacy   Tier = "legacy"
	TierSeed     Tier = "seed"
)

// Snippet is one pre-generated component for a cached prompt.
type Snippet struct {
	ID      string
	Model   string
	Code    string
	Enabled bool
}

// LegacyComparison is the fixed two-sided cached record.
type LegacyComparison struct {
	ID         string
	Prompt     string
	LeftModel  string
	LeftCode   string
	RightModel string
	RightCode  string
	Enabled    bool
}

// CachedSummary is a listing row.
type CachedSummary struct {
	ID           string `json:"id"`
	Prompt       string `json:"prompt"`
	SnippetCount int    `json:"snippetCount"`
}

// CachedPair is a resolved comparison ready to become a match.
type CachedPair struct {
	ID     string
	Prompt string
	Left   Side
	Right  Side
	Tier   Tier
}

// SnippetStore serves cached prompts that group any number of snippets.
// Lookups of unknown ids return ErrNotFound.
type SnippetStore interface {
	ListCachedPrompts(ctx context.Context, limit int) ([]CachedSummary, error)
	CachedPrompt(ctx context.Context, id string) (string, error)
	EnabledSnippets(ctx context.Context, id string, limit int) ([]Snippet, error)
}

// LegacyStore serves one fixed pair per id.
// Lookups of unknown ids return ErrNotFound.
type LegacyStore interface {
	ListLegacyComparisons(ctx context.Context, limit int) ([]LegacyComparison, error)
	LegacyComparison(ctx context.Context, id string) (LegacyComparison, error)
}

// SeedComparisons is served when no durable store can answer.
var SeedComparisons = []LegacyComparison{
	{
		ID:         "hello-aqua",
		Prompt:     "Energetic kinetic type introducing Graphicarena",
		LeftModel:  "anthropic/claude-3-5-sonnet",
		LeftCode:   PlaceholderCode,
		RightModel: "google/gemini-1.5-pro",
		RightCode:  PlaceholderCode,
		Enabled:    true,
	},
}

// seedStore is a LegacyStore over a fixed slice.
type seedStore []LegacyComparison

func (s seedStore) ListLegacyComparisons(_ context.Context, limit int) ([]LegacyComparison, error) {
	var out []LegacyComparison
	for _, c := range s {
		if !c.Enabled {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s seedStore) LegacyComparison(_ context.Context, id string) (LegacyComparison, error) {
	for _, c := range s {
		if c.ID == id {
			return c, nil
		}
	}
	return LegacyComparison{}, ErrNotFound
}

// tier is one backing shape; both funcs report a miss with an error.
type tier struct {
	name    Tier
	list    func(ctx context.Context) ([]CachedSummary, error)
	resolve func(ctx context.Context, id string) (CachedPair, error)
}

// Resolver tries each tier in fixed order: snippets, legacy, seed.
// A tier that errors or comes back empty hands over to the next one.
type Resolver struct {
	rnd   Rand
	tiers []tier
}

// NewResolver builds a resolver; nil stores are skipped.
func NewResolver(rnd Rand, snippets SnippetStore, legacy LegacyStore, seed []LegacyComparison) *Resolver {
	r := &Resolver{rnd: rnd}
	if snippets != nil {
		r.tiers = append(r.tiers, tier{
			name:    TierSnippets,
			list:    func(ctx context.Context) ([]CachedSummary, error) { return snippets.ListCachedPrompts(ctx, listPromptsLimit) },
			resolve: func(ctx context.Context, id string) (CachedPair, error) { return r.resolveSnippets(ctx, snippets, id) },
		})
	}
	if legacy != nil {
		r.tiers = append(r.tiers, legacyTier(TierLegacy, legacy))
	}
	if len(seed) > 0 {
		r.tiers = append(r.tiers, legacyTier(TierSeed, seedStore(seed)))
	}
	return r
}

func legacyTier(name Tier, store LegacyStore) tier {
	return tier{
		name: name,
		list: func(ctx context.Context) ([]CachedSummary, error) {
			rows, err := store.ListLegacyComparisons(ctx, listLegacyLimit)
			if err != nil {
				return nil, err
			}
			out := make([]CachedSummary, 0, len(rows))
			for _, c := range rows {
				out = append(out, CachedSummary{ID: c.ID, Prompt: c.Prompt, SnippetCount: 2})
			}
			return out, nil
		},
		resolve: func(ctx context.Context, id string) (CachedPair, error) {
			c, err := store.LegacyComparison(ctx, id)
			if err != nil {
				return CachedPair{}, err
			}
			return CachedPair{
				ID:     c.ID,
				Prompt: c.Prompt,
				Left:   Side{Model: c.LeftModel, Code: c.LeftCode},
				Right:  Side{Model: c.RightModel, Code: c.RightCode},
			}, nil
		},
	}
}

func (r *Resolver) resolveSnippets(ctx context.Context, store SnippetStore, id string) (CachedPair, error) {
	prompt, err := store.CachedPrompt(ctx, id)
	if err != nil {
		return CachedPair{}, err
	}
	snippets, err := store.EnabledSnippets(ctx, id, maxSnippetsPerPrompt)
	if err != nil {
		return CachedPair{}, err
	}
	if len(snippets) > maxSnippetsPerPrompt {
		snippets = snippets[:maxSnippetsPerPrompt]
	}
	if len(snippets) < 2 {
		return CachedPair{}, ErrNotFound
	}
	shuffled := append([]Snippet(nil), snippets...)
	r.rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	a, b := shuffled[0], shuffled[1]
	return CachedPair{
		ID:     id,
		Prompt: prompt,
		Left:   Side{Model: a.Model, Code: a.Code},
		Right:  Side{Model: b.Model, Code: b.Code},
	}, nil
}

// List returns the listing of the first tier with any rows.
func (r *Resolver) List(ctx context.Context) []CachedSummary {
	for _, t := range r.tiers {
		rows, err := t.list(ctx)
		if err != nil {
			log.Printf("cached list (%s) failed: %v", t.name, err)
			continue
		}
		if len(rows) > 0 {
			return rows
		}
	}
	return []CachedSummary{}
}

// Resolve returns a pair for id from the first tier that has one.
func (r *Resolver) Resolve(ctx context.Context, id string) (CachedPair, error) {
	for _, t := range r.tiers {
		pair, err := t.resolve(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("cached resolve %q (%s) failed: %v", id, t.name, err)
			}
			continue
		}
		pair.Tier = t.name
		return pair, nil
	}
	return CachedPair{}, ErrNotFound
}
