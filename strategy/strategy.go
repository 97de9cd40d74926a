// Package strategy holds the interchangeable recommendation algorithms.
//
// Every algorithm satisfies Strategy. The math of each one is deliberately simple: the
// engine cares about the contract (bounded scores, unique ranked output, validation and
// performance reporting), not about model quality.
package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/rise-and-shine/recoengine/domain"
)

// Kind is the closed set of algorithm families.
type Kind string

const (
	KindCollaborative Kind = "collaborative_filtering"
	KindContentBased  Kind = "content_based"
	KindHybrid        Kind = "hybrid"
	KindPopularity    Kind = "popularity"
	KindBandit        Kind = "bandit"
	KindEmbedding     Kind = "embedding"
)

// Kinds lists every known kind.
func Kinds() []Kind {
	return []Kind{KindCollaborative, KindContentBased, KindHybrid, KindPopularity, KindBandit, KindEmbedding}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind accepts any casing ("Hybrid", "HYBRID").
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// ScoringContext carries per-request inputs into CalculateScore.
type ScoringContext struct {
	Request domain.RecommendationRequest
	Now     time.Time
	// Population is the candidate set the item is scored against, when known.
	Population []domain.ItemFeatures
}

// Strategy generates and scores recommendations.
type Strategy interface {
	Name() string
	Version() string
	Kind() Kind
	SupportsRealTime() bool
	RequiresTraining() bool

	// Validate checks the strategy's configuration.
	Validate() error

	// GenerateRecommendations returns at most req.Count items, with unique ids and ranks
	// starting at 1, none of them in req.ExcludedItemIDs.
	GenerateRecommendations(
		ctx context.Context,
		req domain.RecommendationRequest,
		player domain.PlayerFeatures,
		items []domain.ItemFeatures,
	) ([]domain.Recommendation, error)

	// CalculateScore returns a score in [0, 1].
	CalculateScore(
		ctx context.Context,
		player domain.PlayerFeatures,
		item domain.ItemFeatures,
		sc ScoringContext,
	) (float64, error)

	GetPerformanceMetrics(ctx context.Context, window domain.Window) (domain.PerformanceMetrics, error)
}

// ContextualMetrics is implemented by strategies that can restrict their metrics to one
// request context.
type ContextualMetrics interface {
	GetPerformanceMetricsIn(ctx context.Context, window domain.Window, reqContext string) (domain.PerformanceMetrics, error)
}
