package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bulk-order-service/models"
)

// SimilarityWeights controls how much each sub-score contributes to the
// total. Weights that do not sum to 1 are normalized before use.
type SimilarityWeights struct {
	Category  float64
	Brand     float64
	Attribute float64
	Price     float64
	Name      float64
}

func (w SimilarityWeights) total() float64 {
	return w.Category + w.Brand + w.Attribute + w.Price + w.Name
}

// ConsumerWeights favors brand and price, matching consumer shopping
// behavior.
func ConsumerWeights() SimilarityWeights {
	return SimilarityWeights{Category: 0.20, Brand: 0.30, Attribute: 0.10, Price: 0.25, Name: 0.15}
}

// BusinessWeights favors category and attribute fidelity over brand and
// price, matching technical-specification driven purchasing.
func BusinessWeights() SimilarityWeights {
	return SimilarityWeights{Category: 0.30, Brand: 0.10, Attribute: 0.35, Price: 0.10, Name: 0.15}
}

// SimilarityConfig configures one engine. Both customer segments share the
// engine; only the weights differ.
type SimilarityConfig struct {
	Weights SimilarityWeights
	// CrossBrand enables partial credit for non-matching brands.
	CrossBrand bool
	// BrandPartialCredit is the brand sub-score for a non-matching brand
	// when CrossBrand is on.
	BrandPartialCredit float64
	// PriceTolerancePct is the relative price gap at which the price
	// sub-score decays to zero, e.g. 0.5 for 50%.
	PriceTolerancePct float64
}

// DefaultSimilarityConfig returns consumer-segment scoring.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Weights:            ConsumerWeights(),
		CrossBrand:         true,
		BrandPartialCredit: 0.3,
		PriceTolerancePct:  0.5,
	}
}

// SimilarityEngine scores substitute candidates against a target product.
// Pure with respect to its inputs: no I/O, no mutation.
type SimilarityEngine struct {
	cfg SimilarityConfig
}

func NewSimilarityEngine(cfg SimilarityConfig) *SimilarityEngine {
	if cfg.Weights.total() == 0 {
		cfg.Weights = ConsumerWeights()
	}
	if cfg.PriceTolerancePct <= 0 {
		cfg.PriceTolerancePct = 0.5
	}
	return &SimilarityEngine{cfg: cfg}
}

// subScores holds the independently normalized components of one comparison.
type subScores struct {
	category  float64
	brand     float64
	attribute float64
	price     float64
	name      float64
}

// FindAlternatives ranks in-stock candidates by similarity to the original,
// dropping the original's own SKU, anything below minSimilarity, and
// truncating to maxSuggestions.
func (e *SimilarityEngine) FindAlternatives(original models.ProductAttributes, candidates []models.ProductAttributes, maxSuggestions int, minSimilarity float64) []models.AlternativeSuggestion {
	suggestions := make([]models.AlternativeSuggestion, 0, len(candidates))

	for _, cand := range candidates {
		if cand.SKU == original.SKU || !cand.InStock {
			continue
		}

		scores := e.score(original, cand)
		total := e.weighted(scores)
		if total < minSimilarity {
			continue
		}

		suggestions = append(suggestions, models.AlternativeSuggestion{
			SKU:        cand.SKU,
			Name:       cand.Name,
			Similarity: total,
			Available:  cand.InStock,
			Price:      cand.Price,
			Reason:     e.buildReason(original, cand, scores),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})

	if maxSuggestions > 0 && len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// CalculateSimilarity exposes the raw score for one candidate pair.
func (e *SimilarityEngine) CalculateSimilarity(original, candidate models.ProductAttributes) float64 {
	return e.weighted(e.score(original, candidate))
}

func (e *SimilarityEngine) score(original, cand models.ProductAttributes) subScores {
	return subScores{
		category:  jaccard(toSet(original.Categories), toSet(cand.Categories)),
		brand:     e.brandScore(original.Brand, cand.Brand),
		attribute: attributeScore(original.Attributes, cand.Attributes),
		price:     e.priceScore(original.Price, cand.Price),
		name:      jaccard(nameTokens(original.Name), nameTokens(cand.Name)),
	}
}

func (e *SimilarityEngine) weighted(s subScores) float64 {
	w := e.cfg.Weights
	total := s.category*w.Category + s.brand*w.Brand + s.attribute*w.Attribute + s.price*w.Price + s.name*w.Name
	total /= w.total()
	// Clamp against float drift
	return math.Max(0, math.Min(1, total))
}

func (e *SimilarityEngine) brandScore(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	if e.cfg.CrossBrand {
		return e.cfg.BrandPartialCredit
	}
	return 0
}

// priceScore decays linearly from 1 at equal prices to 0 once the relative
// gap reaches the configured tolerance.
func (e *SimilarityEngine) priceScore(original, candidate float64) float64 {
	if original <= 0 {
		return 0
	}
	gap := math.Abs(candidate-original) / original
	if gap >= e.cfg.PriceTolerancePct {
		return 0
	}
	return 1 - gap/e.cfg.PriceTolerancePct
}

// attributeScore is the fraction of the original's attribute keys whose
// values match on the candidate. Array values match by set intersection
// ratio; numeric values match within a 10% band; everything else by
// case-insensitive string equality.
func attributeScore(original, candidate map[string]interface{}) float64 {
	if len(original) == 0 && len(candidate) == 0 {
		// nothing to differ on
		return 1
	}
	if len(original) == 0 || len(candidate) == 0 {
		return 0
	}

	var sum float64
	for key, ov := range original {
		cv, ok := candidate[key]
		if !ok {
			continue
		}
		sum += attributeValueMatch(ov, cv)
	}
	return sum / float64(len(original))
}

func attributeValueMatch(a, b interface{}) float64 {
	if av, aok := toFloat(a); aok {
		if bv, bok := toFloat(b); bok {
			if av == 0 {
				if bv == 0 {
					return 1
				}
				return 0
			}
			if math.Abs(bv-av)/math.Abs(av) <= 0.10 {
				return 1
			}
			return 0
		}
		return 0
	}

	if as, aok := toStringSlice(a); aok {
		bs, bok := toStringSlice(b)
		if !bok {
			return 0
		}
		return jaccard(toSet(as), toSet(bs))
	}

	if strings.EqualFold(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)) {
		return 1
	}
	return 0
}

// buildReason explains a suggestion from the sub-scores that crossed their
// notable thresholds. At least one reason is always present.
func (e *SimilarityEngine) buildReason(original, cand models.ProductAttributes, s subScores) string {
	var reasons []string

	if s.category >= 0.99 {
		reasons = append(reasons, "Same category")
	} else if s.category >= 0.5 {
		reasons = append(reasons, "Similar category")
	}
	if s.brand >= 0.99 {
		reasons = append(reasons, "Same brand")
	}
	if s.attribute >= 0.7 {
		reasons = append(reasons, "Matching specifications")
	}
	if s.price > 0 && original.Price > 0 {
		diff := (cand.Price - original.Price) / original.Price * 100
		switch {
		case diff <= -5:
			reasons = append(reasons, fmt.Sprintf("%d%% lower price", int(math.Round(-diff))))
		case diff < 5:
			reasons = append(reasons, "Similar price")
		}
	}
	if len(reasons) == 0 && s.name >= 0.5 {
		reasons = append(reasons, "Similar product name")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Close overall match")
	}
	return strings.Join(reasons, ", ")
}

// jaccard is |A∩B| / |A∪B| over two string sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// nameTokens lower-cases, strips punctuation and drops tokens of length <= 2.
func nameTokens(name string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, strings.ToLower(name))

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) > 2 {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out, true
	}
	return nil, false
}
