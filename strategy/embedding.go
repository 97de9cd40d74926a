package strategy

import (
	"context"
	"math"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/samber/lo"
)

// Embedding asks a remote model for scores and falls back to local cosine similarity
// between player and item embeddings when the model is unreachable, slow or tripped.
type Embedding struct {
	*Base

	model ModelClient
	log   logger.Logger
}

func NewEmbedding(deps Deps) (Strategy, error) {
	return &Embedding{
		Base:  NewBase(string(KindEmbedding), deps.Config.ModelVersion, KindEmbedding, false, true, deps.Performance),
		model: deps.Model,
		log:   deps.logger().Named("strategy.embedding"),
	}, nil
}

func (s *Embedding) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
) ([]domain.Recommendation, error) {
	remote := s.remoteScores(ctx, player, items)

	return s.Generate(ctx, req, player, items, func(_ context.Context, item domain.ItemFeatures) (float64, error) {
		if v, ok := remote[item.ItemID]; ok {
			return v, nil
		}
		return localScore(player, item), nil
	})
}

func (s *Embedding) CalculateScore(
	ctx context.Context,
	player domain.PlayerFeatures,
	item domain.ItemFeatures,
	_ ScoringContext,
) (float64, error) {
	remote := s.remoteScores(ctx, player, []domain.ItemFeatures{item})
	if v, ok := remote[item.ItemID]; ok {
		return Clamp(v), nil
	}
	return localScore(player, item), nil
}

// remoteScores returns nil when no model is configured or the call fails.
func (s *Embedding) remoteScores(ctx context.Context, player domain.PlayerFeatures, items []domain.ItemFeatures) map[string]float64 {
	if s.model == nil || len(player.Embedding) == 0 || len(items) == 0 {
		return nil
	}

	scores, err := s.model.Score(ctx, ModelRequest{
		PlayerID:  player.PlayerID,
		Embedding: player.Embedding,
		ItemIDs:   lo.Map(items, func(i domain.ItemFeatures, _ int) string { return i.ItemID }),
	})
	if err != nil {
		s.log.WithContext(ctx).Warnx(err)
		return nil
	}
	return scores
}

func localScore(player domain.PlayerFeatures, item domain.ItemFeatures) float64 {
	sim, ok := cosine(player.Embedding, item.Embedding)
	if !ok {
		return 0.5 * popularityScore(item)
	}
	return Clamp((sim + 1) / 2)
}

// cosine reports false when the vectors are empty, of different length, or zero.
func cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
