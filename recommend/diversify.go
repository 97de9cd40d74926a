package recommend

// Similarity between two candidates used by the diversity rerank.
const (
	sameCategorySimilarity = 1.0
	sameProviderSimilarity = 0.5
)

// mmr reorders items by maximal marginal relevance: at each position it picks the item
// maximising lambda*score - (1-lambda)*max similarity to the items already placed.
// lambda 1 keeps the relevance order.
func mmr(items []Candidate, lambda float64) []Candidate {
	if len(items) < 3 || lambda >= 1 {
		return items
	}

	out := make([]Candidate, 0, len(items))
	placed := make([]bool, len(items))

	for len(out) < len(items) {
		best, bestValue := -1, 0.0
		for i, c := range items {
			if placed[i] {
				continue
			}
			var maxSim float64
			for _, p := range out {
				maxSim = max(maxSim, similarity(c, p))
			}
			value := lambda*c.Recommendation.Score - (1-lambda)*maxSim
			if best < 0 || value > bestValue {
				best, bestValue = i, value
			}
		}
		placed[best] = true
		out = append(out, items[best])
	}
	return out
}

func similarity(a, b Candidate) float64 {
	switch {
	case a.Recommendation.Category != "" && a.Recommendation.Category == b.Recommendation.Category:
		return sameCategorySimilarity
	case a.Recommendation.Provider != "" && a.Recommendation.Provider == b.Recommendation.Provider:
		return sameProviderSimilarity
	default:
		return 0
	}
}
