package strategy

import (
	"context"
	"math"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/samber/lo"
)

// Bandit treats every item as an arm and ranks by UCB1: observed click-through plus a
// confidence bonus that shrinks as an item collects impressions. Unseen items score 1.
type Bandit struct {
	*Base

	exploration float64
}

func NewBandit(deps Deps) (Strategy, error) {
	return &Bandit{
		Base:        NewBase(string(KindBandit), deps.Config.ModelVersion, KindBandit, true, false, deps.Performance),
		exploration: deps.Config.Bandit.Exploration,
	}, nil
}

func (s *Bandit) Validate() error {
	if err := s.Base.Validate(); err != nil {
		return err
	}
	if s.exploration < 0 || math.IsNaN(s.exploration) {
		return errx.New("exploration must not be negative",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
		)
	}
	return nil
}

func (s *Bandit) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	sc := ScoringContext{Request: req, Population: items}
	return s.Generate(ctx, req, player, items, func(ctx context.Context, item domain.ItemFeatures) (float64, error) {
		return s.CalculateScore(ctx, player, item, sc)
	})
}

func (s *Bandit) CalculateScore(
	_ context.Context,
	_ domain.PlayerFeatures,
	item domain.ItemFeatures,
	sc ScoringContext,
) (float64, error) {
	if item.Impressions <= 0 {
		return 1, nil
	}

	total := item.Impressions
	if len(sc.Population) > 0 {
		total = lo.SumBy(sc.Population, func(i domain.ItemFeatures) int64 { return max(i.Impressions, 0) })
	}

	n := float64(item.Impressions)
	bonus := s.exploration * math.Sqrt(2*math.Log(float64(max(total, 1)))/n)
	return Clamp(item.ClickThroughRate() + bonus), nil
}
