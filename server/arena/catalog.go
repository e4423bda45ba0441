package arena

import "strings"

// SmartKeywords is the allow-list applied in smart mode.
var SmartKeywords = []string{"claude", "sonnet", "gemini", "grok"}

// PriceInfo is per-model pricing normalized by the provider adapter.
// Costs are USD per million tokens; nil means the provider did not say.
type PriceInfo struct {
	InputPerMTok  *float64
	OutputPerMTok *float64
}

// Estimate returns the larger of the known costs, or false when neither is known.
func (p PriceInfo) Estimate() (float64, bool) {
	var (
		est   float64
		found bool
	)
	for _, v := range []*float64{p.InputPerMTok, p.OutputPerMTok} {
		if v == nil {
			continue
		}
		if !found || *v > est {
			est = *v
		}
		found = true
	}
	return est, found
}

// CatalogModel is one entry of the provider's model listing.
type CatalogModel struct {
	ID      string
	Name    string
	Pricing PriceInfo
}

// FilterOptions controls candidate selection for a single request.
type FilterOptions struct {
	// MaxPerMTok caps the conservative cost estimate; nil disables the cap.
	MaxPerMTok *float64
	Smart      bool
}

// FilterCandidates returns the eligible model ids in catalog order.
// Each narrowing step is dropped when it would leave fewer than two models.
func FilterCandidates(models []CatalogModel, opts FilterOptions) ([]string, error) {
	pool := models
	if opts.MaxPerMTok != nil {
		limit := *opts.MaxPerMTok
		capped := make([]CatalogModel, 0, len(models))
		for _, m := range models {
			if est, ok := m.Pricing.Estimate(); !ok || est <= limit {
				capped = append(capped, m)
			}
		}
		if len(capped) >= 2 {
			pool = capped
		}
	}

	ids := make([]string, 0, len(pool))
	for _, m := range pool {
		if strings.Contains(m.ID, "/") {
			ids = append(ids, m.ID)
		}
	}

	if opts.Smart {
		smart := make([]string, 0, len(ids))
		for _, id := range ids {
			if matchesKeyword(id, SmartKeywords) {
				smart = append(smart, id)
			}
		}
		if len(smart) >= 2 {
			ids = smart
		}
	}

	if len(ids) < 2 {
		return nil, ErrInsufficientCandidates
	}
	return ids, nil
}

func matchesKeyword(id string, keywords []string) bool {
	lower := strings.ToLower(id)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Provider returns the provider half of a "provider/name" model id.
func Provider(modelID string) string {
	provider, _, ok := strings.Cut(modelID, "/")
	if !ok || provider == "" {
		return "unknown"
	}
	return provider
}
