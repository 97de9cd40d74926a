package strategy

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
	"golang.org/x/sync/errgroup"
)

type component struct {
	strategy Strategy
	weight   float64
}

// Hybrid blends collaborative, content-based and popularity scores with fixed weights.
// Components score the candidate set concurrently.
type Hybrid struct {
	*Base

	components []component
}

func NewHybrid(deps Deps) (Strategy, error) {
	collaborative, err := NewCollaborative(deps)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	content, err := NewContentBased(deps)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	popularity, err := NewPopularity(deps)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	w := deps.Config.Hybrid
	return &Hybrid{
		Base: NewBase(string(KindHybrid), deps.Config.ModelVersion, KindHybrid, true, true, deps.Performance),
		components: []component{
			{strategy: collaborative, weight: w.CollaborativeWeight},
			{strategy: content, weight: w.ContentWeight},
			{strategy: popularity, weight: w.PopularityWeight},
		},
	}, nil
}

func (s *Hybrid) Validate() error {
	if err := s.Base.Validate(); err != nil {
		return err
	}

	var total float64
	for _, c := range s.components {
		if c.weight < 0 {
			return errx.New("hybrid weights must not be negative",
				errx.WithCode(CodeInvalidConfig),
				errx.WithType(errx.T_Validation),
				errx.WithDetails(errx.D{"component": c.strategy.Name(), "weight": c.weight}),
			)
		}
		if err := c.strategy.Validate(); err != nil {
			return errx.Wrap(err)
		}
		total += c.weight
	}
	if total == 0 {
		return errx.New("hybrid weights sum to zero",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
		)
	}
	return nil
}

func (s *Hybrid) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	sc := ScoringContext{Request: req, Population: items}

	// One row of scores per component, filled concurrently.
	scores := make([][]float64, len(s.components))
	g, gctx := errgroup.WithContext(ctx)
	for ci, c := range s.components {
		scores[ci] = make([]float64, len(items))
		g.Go(func() error {
			for ii, item := range items {
				v, err := c.strategy.CalculateScore(gctx, player, item, sc)
				if err != nil {
					return errx.Wrap(err, errx.WithDetails(errx.D{"component": c.strategy.Name()}))
				}
				scores[ci][ii] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errx.Wrap(err)
	}

	index := make(map[string]int, len(items))
	for i, item := range items {
		if _, ok := index[item.ItemID]; !ok {
			index[item.ItemID] = i
		}
	}

	return s.Generate(ctx, req, player, items, func(_ context.Context, item domain.ItemFeatures) (float64, error) {
		return s.blend(scores, index[item.ItemID]), nil
	})
}

func (s *Hybrid) CalculateScore(
	ctx context.Context,
	player domain.PlayerFeatures,
	item domain.ItemFeatures,
	sc ScoringContext,
) (float64, error) {
	scores := make([][]float64, len(s.components))
	for ci, c := range s.components {
		v, err := c.strategy.CalculateScore(ctx, player, item, sc)
		if err != nil {
			return 0, errx.Wrap(err)
		}
		scores[ci] = []float64{v}
	}
	return s.blend(scores, 0), nil
}

func (s *Hybrid) blend(scores [][]float64, i int) float64 {
	var sum, weights float64
	for ci, c := range s.components {
		sum += c.weight * scores[ci][i]
		weights += c.weight
	}
	if weights == 0 {
		return 0
	}
	return Clamp(sum / weights)
}
