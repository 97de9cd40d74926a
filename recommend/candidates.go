package recommend

import (
	"cmp"
	"slices"

	"github.com/rise-and-shine/recoengine/domain"
)

// Candidates is the working set between generation and the final list. It is a distinct
// type so that only CacheResult produces the pipeline's output.
type Candidates struct {
	Request domain.RecommendationRequest
	Items   []Candidate
}

// Candidate is one scored item under consideration.
type Candidate struct {
	Recommendation domain.Recommendation
	Pinned         bool
}

func (c Candidates) Len() int { return len(c.Items) }

// sortCandidates puts pinned items first, then orders by score descending and item id.
func sortCandidates(items []Candidate) {
	slices.SortStableFunc(items, func(a, b Candidate) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Recommendation.Score, a.Recommendation.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Recommendation.ItemID, b.Recommendation.ItemID)
	})
}
