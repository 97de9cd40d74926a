package strategy

import (
	"context"

	"github.com/rise-and-shine/recoengine/domain"
)

// ContentBased scores items by affinity between the player's stated preferences and the
// item's attributes. It needs no interaction history, which makes it the cold-start choice.
type ContentBased struct {
	*Base
}

func NewContentBased(deps Deps) (Strategy, error) {
	return &ContentBased{
		Base: NewBase(string(KindContentBased), deps.Config.ModelVersion, KindContentBased, true, false, deps.Performance),
	}, nil
}

func (s *ContentBased) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	return s.Generate(ctx, req, player, items, func(ctx context.Context, item domain.ItemFeatures) (float64, error) {
		return s.CalculateScore(ctx, player, item, ScoringContext{Request: req})
	})
}

func (s *ContentBased) CalculateScore(
	_ context.Context,
	player domain.PlayerFeatures,
	item domain.ItemFeatures,
	_ ScoringContext,
) (float64, error) {
	return contentScore(player, item), nil
}

func contentScore(player domain.PlayerFeatures, item domain.ItemFeatures) float64 {
	var score float64
	if player.Prefers(item.Category) {
		score += 0.4
	}
	if player.Likes(item.Provider) {
		score += 0.25
	}
	if item.Volatility == preferredVolatility(player) {
		score += 0.15
	}
	score += 0.2 * item.PopularityScore
	return Clamp(score)
}

// preferredVolatility maps a play style onto the volatility it tends to enjoy.
func preferredVolatility(player domain.PlayerFeatures) domain.Volatility {
	switch player.PlayStyle {
	case "high_roller", "thrill_seeker":
		return domain.VolatilityHigh
	case "casual", "cautious":
		return domain.VolatilityLow
	default:
		return domain.VolatilityMedium
	}
}
