package strategy

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
)

// Collaborative scores items by co-play similarity to what the player played recently.
// Players without history get popularity scores.
type Collaborative struct {
	*Base

	blend float64
}

func NewCollaborative(deps Deps) (Strategy, error) {
	return &Collaborative{
		Base:  NewBase(string(KindCollaborative), deps.Config.ModelVersion, KindCollaborative, true, true, deps.Performance),
		blend: deps.Config.Collaborative.PopularityBlend,
	}, nil
}

func (s *Collaborative) Validate() error {
	if err := s.Base.Validate(); err != nil {
		return err
	}
	if s.blend < 0 || s.blend > 1 {
		return errx.New("popularity blend must be within [0, 1]",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"blend": s.blend}),
		)
	}
	return nil
}

func (s *Collaborative) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	return s.Generate(ctx, req, player, items, func(ctx context.Context, item domain.ItemFeatures) (float64, error) {
		return s.CalculateScore(ctx, player, item, ScoringContext{Request: req})
	})
}

func (s *Collaborative) CalculateScore(
	_ context.Context,
	player domain.PlayerFeatures,
	item domain.ItemFeatures,
	_ ScoringContext,
) (float64, error) {
	if len(player.RecentItemIDs) == 0 {
		return popularityScore(item), nil
	}

	var best float64
	for _, recent := range player.RecentItemIDs {
		best = max(best, item.Neighbors[recent])
	}
	return Clamp((1-s.blend)*best + s.blend*item.PopularityScore), nil
}
