package selector

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/strategy"
	"golang.org/x/sync/errgroup"
)

// Ranking weights.
const (
	WeightConversion = 0.4
	WeightCTR        = 0.3
	WeightRevenue    = 0.2
	WeightDiversity  = 0.1
)

// GetStrategyRanking scores every registered strategy over window and ranks them, best
// first, with dense ranks from 1. A non-empty reqContext restricts metrics to that context.
// Strategies whose metrics cannot be read are left out.
func (s *Selector) GetStrategyRanking(ctx context.Context, window domain.Window, reqContext string) []domain.StrategyRanking {
	strategies := s.registry.All()

	var (
		mu      sync.Mutex
		metrics = make([]domain.PerformanceMetrics, 0, len(strategies))
	)

	var g errgroup.Group
	g.SetLimit(4)
	for _, st := range strategies {
		g.Go(func() error {
			m, err := metricsOf(ctx, st, window, reqContext)
			if err != nil {
				s.log.WithContext(ctx).With("strategy", st.Name()).Warnx(err)
				return nil
			}
			m.Strategy = st.Name()

			mu.Lock()
			metrics = append(metrics, m)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Rank(metrics)
}

func metricsOf(ctx context.Context, st strategy.Strategy, window domain.Window, reqContext string) (domain.PerformanceMetrics, error) {
	if reqContext != "" {
		if cm, ok := st.(strategy.ContextualMetrics); ok {
			return cm.GetPerformanceMetricsIn(ctx, window, reqContext)
		}
	}
	return st.GetPerformanceMetrics(ctx, window)
}

// Rank computes the weighted score of each entry and assigns dense ranks. Revenue per
// recommendation is normalised by the largest value among the entries.
func Rank(metrics []domain.PerformanceMetrics) []domain.StrategyRanking {
	var maxRevenue float64
	for _, m := range metrics {
		maxRevenue = max(maxRevenue, m.RevenuePerRecommendation)
	}

	out := make([]domain.StrategyRanking, 0, len(metrics))
	for _, m := range metrics {
		var revenue float64
		if maxRevenue > 0 {
			revenue = m.RevenuePerRecommendation / maxRevenue
		}
		score := WeightConversion*m.ConversionRate +
			WeightCTR*m.ClickThroughRate +
			WeightRevenue*revenue +
			WeightDiversity*m.Diversity
		out = append(out, domain.StrategyRanking{Strategy: m.Strategy, Score: score, Metrics: m})
	}

	slices.SortStableFunc(out, func(a, b domain.StrategyRanking) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Strategy, b.Strategy)
	})

	rank := 0
	for i := range out {
		if i == 0 || out[i].Score != out[i-1].Score {
			rank++
		}
		out[i].Rank = rank
	}
	return out
}
