package strategy

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"github.com/rise-and-shine/recoengine/domain"
)

const CodeInvalidConfig = "STRATEGY_INVALID_CONFIG"

// ScoreFunc scores one item for the player. Scores outside [0, 1] are clamped.
type ScoreFunc func(ctx context.Context, item domain.ItemFeatures) (float64, error)

// Base carries what every strategy shares: identity, capability flags, performance
// reporting, response-time tracking and top-N assembly. Concrete strategies embed it.
type Base struct {
	name     string
	version  string
	kind     Kind
	realTime bool
	training bool
	perf     PerformanceSource

	calls     atomic.Int64
	totalNano atomic.Int64
}

func NewBase(name, version string, kind Kind, realTime, training bool, perf PerformanceSource) *Base {
	return &Base{
		name:     name,
		version:  version,
		kind:     kind,
		realTime: realTime,
		training: training,
		perf:     perf,
	}
}

func (b *Base) Name() string           { return b.name }
func (b *Base) Version() string        { return b.version }
func (b *Base) Kind() Kind             { return b.kind }
func (b *Base) SupportsRealTime() bool { return b.realTime }
func (b *Base) RequiresTraining() bool { return b.training }

// Validate checks the shared configuration. Strategies with their own settings extend it.
func (b *Base) Validate() error {
	if b.name == "" || b.version == "" || !b.kind.Valid() {
		return errx.New("strategy identity is incomplete",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"name": b.name, "version": b.version, "kind": string(b.kind)}),
		)
	}
	return nil
}

func (b *Base) GetPerformanceMetrics(ctx context.Context, window domain.Window) (domain.PerformanceMetrics, error) {
	return b.GetPerformanceMetricsIn(ctx, window, "")
}

// GetPerformanceMetricsIn reads metrics restricted to reqContext; empty means all contexts.
func (b *Base) GetPerformanceMetricsIn(
	ctx context.Context,
	window domain.Window,
	reqContext string,
) (domain.PerformanceMetrics, error) {
	if b.perf == nil {
		return domain.PerformanceMetrics{}, errx.New("no performance source",
			errx.WithCode(CodeMetricsUnavailable),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"strategy": b.name}),
		)
	}

	m, err := b.perf.Metrics(ctx, b.name, window, reqContext)
	if err != nil {
		return domain.PerformanceMetrics{}, errx.Wrap(err)
	}
	m.Strategy = b.name
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = b.AvgResponseTime()
	}
	return m, nil
}

// AvgResponseTime is the mean duration of GenerateRecommendations calls in this process.
func (b *Base) AvgResponseTime() time.Duration {
	n := b.calls.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(b.totalNano.Load() / n)
}

type scored struct {
	item  domain.ItemFeatures
	score float64
}

// Generate scores every eligible item with score and assembles the top req.Count:
// excluded and duplicate ids are dropped, scores are clamped to [0, 1], ties break on item
// id, and ranks start at 1.
func (b *Base) Generate(
	ctx context.Context,
	req domain.RecommendationRequest,
	player domain.PlayerFeatures,
	items []domain.ItemFeatures,
	score ScoreFunc,
) ([]domain.Recommendation, error) {
	start := time.Now()
	defer func() {
		b.calls.Add(1)
		b.totalNano.Add(int64(time.Since(start)))
	}()

	if req.Count <= 0 {
		return []domain.Recommendation{}, nil
	}

	seen := make(map[string]struct{}, len(items))
	candidates := make([]scored, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, errx.Wrap(err)
		}
		if _, dup := seen[item.ItemID]; dup || req.IsExcluded(item.ItemID) {
			continue
		}
		seen[item.ItemID] = struct{}{}

		s, err := score(ctx, item)
		if err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"strategy": b.name, "item_id": item.ItemID}))
		}
		candidates = append(candidates, scored{item: item, score: Clamp(s)})
	}

	return b.assemble(req, player, candidates), nil
}

// assemble orders scored items and converts the top req.Count into recommendations.
func (b *Base) assemble(req domain.RecommendationRequest, player domain.PlayerFeatures, candidates []scored) []domain.Recommendation {
	slices.SortStableFunc(candidates, func(x, y scored) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		return cmp.Compare(x.item.ItemID, y.item.ItemID)
	})

	n := min(req.Count, len(candidates))
	out := make([]domain.Recommendation, 0, n)
	for i := range n {
		c := candidates[i]
		out = append(out, domain.Recommendation{
			ID:           uuid.NewString(),
			PlayerID:     player.PlayerID,
			ItemID:       c.item.ItemID,
			Algorithm:    b.name,
			Score:        c.score,
			RankPosition: i + 1,
			Context:      req.Context,
			Category:     c.item.Category,
			Provider:     c.item.Provider,
			SessionID:    req.SessionID,
			DeviceType:   req.DeviceType,
			ModelVersion: b.version,
			Metadata:     map[string]any{"kind": string(b.kind)},
		})
	}
	return out
}

// Clamp bounds s to [0, 1]. NaN becomes 0.
func Clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}
