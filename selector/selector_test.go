package selector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/experiment"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
)

type featureFunc func(ctx context.Context, playerID string) (domain.PlayerFeatures, error)

func (f featureFunc) GetPlayerFeatures(ctx context.Context, playerID string) (domain.PlayerFeatures, error) {
	return f(ctx, playerID)
}

func features(f domain.PlayerFeatures) featureFunc {
	return func(context.Context, string) (domain.PlayerFeatures, error) { return f, nil }
}

type fakeExperiments struct {
	assignments map[string]experiment.Assignment
	err         error
}

func (e fakeExperiments) ActiveFor(_ context.Context, playerID, _ string) (experiment.Assignment, bool, error) {
	if e.err != nil {
		return experiment.Assignment{}, false, e.err
	}
	a, ok := e.assignments[playerID]
	return a, ok, nil
}

func (e fakeExperiments) GetPlayerVariant(_ context.Context, playerID, name string) (domain.ExperimentVariant, bool, error) {
	a, ok := e.assignments[playerID]
	if !ok || a.Experiment != name {
		return domain.ExperimentVariant{}, false, e.err
	}
	return a.Variant, true, nil
}

func heuristics() selector.Config {
	return selector.Config{
		Heuristics: selector.HeuristicsConfig{
			ColdStartMaxSessions:    3,
			HighActivityMinGames:    100,
			HighActivityMinSessions: 20,
			BroadCategoryThreshold:  3,
		},
	}
}

func registry(t *testing.T, perf strategy.PerformanceSource) *strategy.Registry {
	t.Helper()
	r, err := strategy.DefaultRegistryBuilder().Build(strategy.Deps{
		Config: strategy.Config{
			ModelVersion:  "test",
			Collaborative: strategy.CollaborativeConfig{PopularityBlend: 0.2},
			Hybrid:        strategy.HybridConfig{CollaborativeWeight: 1, ContentWeight: 1, PopularityWeight: 1},
			Bandit:        strategy.BanditConfig{Exploration: 1},
		},
		Performance: perf,
	})
	require.NoError(t, err)
	return r
}

func newSelector(t *testing.T, fr selector.FeatureReader, ex selector.ExperimentLookup, m *metrics.Metrics) *selector.Selector {
	t.Helper()
	s, err := selector.New(registry(t, nil), fr, ex, heuristics(), logger.Nop(), m)
	require.NoError(t, err)
	return s
}

func TestHeuristics(t *testing.T) {
	tests := []struct {
		name       string
		context    string
		features   domain.PlayerFeatures
		wantName   string
		wantReason selector.Reason
	}{
		{
			name:       "new player is cold start",
			context:    domain.ContextLobby,
			features:   domain.PlayerFeatures{IsNewPlayer: true, TotalSessions: 50},
			wantName:   "content_based",
			wantReason: selector.ReasonColdStart,
		},
		{
			name:       "few sessions is cold start",
			context:    domain.ContextPromotion,
			features:   domain.PlayerFeatures{TotalSessions: 2},
			wantName:   "content_based",
			wantReason: selector.ReasonColdStart,
		},
		{
			name:       "high activity",
			context:    domain.ContextLobby,
			features:   domain.PlayerFeatures{TotalSessions: 25, TotalGamesPlayed: 150},
			wantName:   "collaborative_filtering",
			wantReason: selector.ReasonHighActivity,
		},
		{
			name:    "broad interests",
			context: domain.ContextGameEnd,
			features: domain.PlayerFeatures{
				TotalSessions:       10,
				PreferredCategories: []string{"slots", "live", "table", "crash"},
			},
			wantName:   "hybrid",
			wantReason: selector.ReasonBroadInterests,
		},
		{
			name:       "context default",
			context:    domain.ContextPromotion,
			features:   domain.PlayerFeatures{TotalSessions: 10},
			wantName:   "popularity",
			wantReason: selector.ReasonContextDefault,
		},
		{
			name:       "unknown context",
			context:    "tournament",
			features:   domain.PlayerFeatures{TotalSessions: 10},
			wantName:   "collaborative_filtering",
			wantReason: selector.ReasonDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSelector(t, features(tt.features), nil, nil)
			sel := s.SelectStrategy(t.Context(), domain.RecommendationRequest{PlayerID: "1", Count: 5, Context: tt.context})
			assert.Equal(t, tt.wantName, sel.Strategy.Name())
			assert.Equal(t, tt.wantReason, sel.Reason)
		})
	}
}

func TestOverrideIsUsedVerbatim(t *testing.T) {
	s := newSelector(t, features(domain.PlayerFeatures{IsNewPlayer: true}), nil, nil)

	sel := s.SelectStrategy(t.Context(), domain.RecommendationRequest{PlayerID: "1", Context: "lobby", AlgorithmOverride: "Bandit"})
	assert.Equal(t, "bandit", sel.Strategy.Name())
	assert.Equal(t, selector.ReasonOverride, sel.Reason)

	sel = s.SelectStrategy(t.Context(), domain.RecommendationRequest{PlayerID: "1", Context: "lobby", AlgorithmOverride: "quantum"})
	assert.Equal(t, "collaborative_filtering", sel.Strategy.Name())
	assert.Equal(t, selector.ReasonFallback, sel.Reason)
}

func TestExperimentAssignmentIsStable(t *testing.T) {
	ex := fakeExperiments{assignments: map[string]experiment.Assignment{
		"42": {Experiment: "AlgoTest", Variant: domain.ExperimentVariant{Name: "treatment", Algorithm: "Hybrid"}},
	}}
	s := newSelector(t, features(domain.PlayerFeatures{IsNewPlayer: true}), ex, nil)

	req := domain.RecommendationRequest{PlayerID: "42", Count: 10, Context: domain.ContextLobby}
	first := s.SelectStrategy(t.Context(), req)
	second := s.SelectStrategy(t.Context(), req)

	assert.Equal(t, "hybrid", first.Strategy.Name())
	assert.Equal(t, selector.ReasonExperiment, first.Reason)
	assert.Equal(t, "treatment", first.Variant)
	assert.Equal(t, first.Strategy.Name(), second.Strategy.Name())

	byName := s.SelectStrategyForExperiment(t.Context(), "42", "AlgoTest")
	assert.Equal(t, "hybrid", byName.Strategy.Name())

	notEnrolled := s.SelectStrategyForExperiment(t.Context(), "7", "AlgoTest")
	assert.Equal(t, "collaborative_filtering", notEnrolled.Strategy.Name())
	assert.Equal(t, selector.ReasonFallback, notEnrolled.Reason)
}

func TestSelectionDegradesSafely(t *testing.T) {
	m := metrics.New()

	tests := []struct {
		name     string
		features selector.FeatureReader
		exps     selector.ExperimentLookup
	}{
		{
			name: "feature store error",
			features: featureFunc(func(context.Context, string) (domain.PlayerFeatures, error) {
				return domain.PlayerFeatures{}, errors.New("connection refused")
			}),
		},
		{
			name: "feature store panic",
			features: featureFunc(func(context.Context, string) (domain.PlayerFeatures, error) {
				panic("nil map")
			}),
		},
		{
			name:     "experiment service error",
			features: features(domain.PlayerFeatures{IsNewPlayer: true}),
			exps:     fakeExperiments{err: errors.New("timeout")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSelector(t, tt.features, tt.exps, m)
			var sel selector.Selection
			require.NotPanics(t, func() {
				sel = s.SelectStrategy(t.Context(), domain.RecommendationRequest{PlayerID: "1", Count: 1, Context: "lobby"})
			})
			require.NotNil(t, sel.Strategy)
			assert.Equal(t, "collaborative_filtering", sel.Strategy.Name())
			assert.Equal(t, selector.ReasonFallback, sel.Reason)
		})
	}

	assert.InDelta(t, 3, testutil.ToFloat64(m.Selections.WithLabelValues("collaborative_filtering", "fallback")), 0)
}

func TestMissingFeaturesMeansColdStart(t *testing.T) {
	s := newSelector(t, featureFunc(func(context.Context, string) (domain.PlayerFeatures, error) {
		return domain.PlayerFeatures{}, errx.New("none", errx.WithCode(featurestore.CodeFeaturesNotFound))
	}), nil, nil)

	sel := s.SelectStrategy(t.Context(), domain.RecommendationRequest{PlayerID: "new", Count: 10, Context: "lobby"})
	assert.Equal(t, "content_based", sel.Strategy.Name())
	assert.Equal(t, selector.ReasonColdStart, sel.Reason)
}

func TestUnknownFallbackIsRejected(t *testing.T) {
	cfg := heuristics()
	cfg.Fallback = "nope"
	_, err := selector.New(registry(t, nil), features(domain.PlayerFeatures{}), nil, cfg, logger.Nop(), nil)
	require.Error(t, err)
}

func TestRank(t *testing.T) {
	ranked := selector.Rank([]domain.PerformanceMetrics{
		{Strategy: "a", ConversionRate: 0.5, ClickThroughRate: 0.5, RevenuePerRecommendation: 10, Diversity: 0.5},
		{Strategy: "b", ConversionRate: 0.5, ClickThroughRate: 0.5, RevenuePerRecommendation: 10, Diversity: 0.5},
		{Strategy: "c", ConversionRate: 0.1, ClickThroughRate: 0.2, RevenuePerRecommendation: 5, Diversity: 1},
		{Strategy: "d"},
	})

	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{ranked[0].Strategy, ranked[1].Strategy, ranked[2].Strategy, ranked[3].Strategy})
	assert.Equal(t, []int{1, 1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank, ranked[3].Rank})
	// 0.4*0.5 + 0.3*0.5 + 0.2*1 + 0.1*0.5
	assert.InDelta(t, 0.6, ranked[0].Score, 1e-9)
	// 0.4*0.1 + 0.3*0.2 + 0.2*0.5 + 0.1*1
	assert.InDelta(t, 0.3, ranked[2].Score, 1e-9)
	assert.Zero(t, ranked[3].Score)
}

type perfFunc func(strategy string) (domain.PerformanceMetrics, error)

func (f perfFunc) Metrics(_ context.Context, name string, _ domain.Window, _ string) (domain.PerformanceMetrics, error) {
	return f(name)
}

func TestRankingOmitsStrategiesWithoutMetrics(t *testing.T) {
	perf := perfFunc(func(name string) (domain.PerformanceMetrics, error) {
		switch name {
		case "bandit":
			return domain.PerformanceMetrics{}, errors.New("no data")
		case "popularity":
			return domain.PerformanceMetrics{ConversionRate: 0.9, ClickThroughRate: 0.9}, nil
		default:
			return domain.PerformanceMetrics{ConversionRate: 0.1}, nil
		}
	})

	s, err := selector.New(registry(t, perf), features(domain.PlayerFeatures{}), nil, heuristics(), logger.Nop(), nil)
	require.NoError(t, err)

	ranked := s.GetStrategyRanking(t.Context(), domain.LastWindow(time.Now(), time.Hour), "")
	require.Len(t, ranked, 5)
	assert.Equal(t, "popularity", ranked[0].Strategy)
	assert.Equal(t, 1, ranked[0].Rank)
	for _, r := range ranked {
		assert.NotEqual(t, "bandit", r.Strategy)
		assert.Equal(t, r.Strategy, r.Metrics.Strategy)
	}
}
