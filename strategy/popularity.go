package strategy

import (
	"context"

	"github.com/rise-and-shine/recoengine/domain"
)

// Popularity ranks items by their platform-wide popularity, lightly blended with revenue.
type Popularity struct {
	*Base
}

func NewPopularity(deps Deps) (Strategy, error) {
	return &Popularity{
		Base: NewBase(string(KindPopularity), deps.Config.ModelVersion, KindPopularity, true, false, deps.Performance),
	}, nil
}

func (s *Popularity) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	return s.Generate(ctx, req, player, items, func(ctx context.Context, item domain.ItemFeatures) (float64, error) {
		return s.CalculateScore(ctx, player, item, ScoringContext{Request: req})
	})
}

func (s *Popularity) CalculateScore(
	_ context.Context,
	_ domain.PlayerFeatures,
	item domain.ItemFeatures,
	_ ScoringContext,
) (float64, error) {
	return popularityScore(item), nil
}

func popularityScore(item domain.ItemFeatures) float64 {
	return Clamp(0.8*item.PopularityScore + 0.2*item.RevenueScore)
}
