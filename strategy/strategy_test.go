package strategy_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/strategy"
)

func testConfig() strategy.Config {
	return strategy.Config{
		ModelVersion:  "test",
		Collaborative: strategy.CollaborativeConfig{PopularityBlend: 0.2},
		Hybrid:        strategy.HybridConfig{CollaborativeWeight: 0.4, ContentWeight: 0.4, PopularityWeight: 0.2},
		Bandit:        strategy.BanditConfig{Exploration: 0.5},
		Embedding: strategy.EmbeddingConfig{
			Timeout: 50 * time.Millisecond,
			Breaker: strategy.BreakerConfig{MaxRequests: 1, Interval: time.Minute, OpenTimeout: time.Minute, FailureThreshold: 2},
		},
	}
}

func catalog(n int) []domain.ItemFeatures {
	categories := []string{"slots", "live", "table", "crash"}
	providers := []string{"netent", "evolution", "pragmatic"}
	items := make([]domain.ItemFeatures, 0, n)
	for i := range n {
		items = append(items, domain.ItemFeatures{
			ItemID:          fmt.Sprintf("item-%02d", i),
			Category:        categories[i%len(categories)],
			Provider:        providers[i%len(providers)],
			Volatility:      domain.VolatilityMedium,
			PopularityScore: float64(i%10) / 10,
			RevenueScore:    float64(n-i) / float64(n),
			Impressions:     int64(i * 10),
			Clicks:          int64(i),
			Neighbors:       map[string]float64{"item-00": float64(i%5) / 4},
			Embedding:       []float64{float64(i), 1, float64(i % 3)},
		})
	}
	return items
}

func player() domain.PlayerFeatures {
	return domain.PlayerFeatures{
		PlayerID:            "42",
		TotalSessions:       40,
		TotalGamesPlayed:    300,
		PreferredCategories: []string{"slots", "live"},
		FavoriteProviders:   []string{"netent"},
		RecentItemIDs:       []string{"item-00"},
		Embedding:           []float64{1, 0.5, 0},
	}
}

func registry(t *testing.T, model strategy.ModelClient) *strategy.Registry {
	t.Helper()
	r, err := strategy.DefaultRegistryBuilder().Build(strategy.Deps{
		Config: testConfig(),
		Model:  model,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return r
}

func TestEveryStrategyHonoursTheContract(t *testing.T) {
	items := catalog(30)
	// duplicates must not produce duplicate recommendations
	items = append(items, items[3], items[4])
	excluded := []string{"item-01", "item-05", "item-09"}

	for _, s := range registry(t, nil).All() {
		for _, count := range []int{1, 10, 50} {
			t.Run(fmt.Sprintf("%s/%d", s.Name(), count), func(t *testing.T) {
				req := domain.RecommendationRequest{
					PlayerID:        "42",
					Count:           count,
					Context:         domain.ContextLobby,
					ExcludedItemIDs: excluded,
				}

				recs, err := s.GenerateRecommendations(t.Context(), req, player(), items)
				require.NoError(t, err)

				assert.LessOrEqual(t, len(recs), count)
				seen := map[string]bool{}
				for i, r := range recs {
					assert.False(t, seen[r.ItemID], "duplicate %s", r.ItemID)
					seen[r.ItemID] = true
					assert.NotContains(t, excluded, r.ItemID)
					assert.Equal(t, i+1, r.RankPosition)
					assert.GreaterOrEqual(t, r.Score, 0.0)
					assert.LessOrEqual(t, r.Score, 1.0)
					assert.Equal(t, s.Name(), r.Algorithm)
					if i > 0 {
						assert.GreaterOrEqual(t, recs[i-1].Score, r.Score)
					}
				}
			})
		}
	}
}

func TestRegistryLookupIgnoresCase(t *testing.T) {
	r := registry(t, nil)

	s, ok := r.Get("Hybrid")
	require.True(t, ok)
	assert.Equal(t, strategy.KindHybrid, s.Kind())

	_, ok = r.Get(" CONTENT_BASED ")
	assert.True(t, ok)

	_, ok = r.Get("deep_magic")
	assert.False(t, ok)

	assert.Len(t, r.Names(), 6)
	assert.Len(t, r.ByKind(strategy.KindBandit), 1)
	assert.Panics(t, func() { r.MustGet("deep_magic") })
}

func TestRegistryRejectsDuplicatesAndBadConfig(t *testing.T) {
	_, err := strategy.NewRegistryBuilder().
		Register("popularity", strategy.KindPopularity, strategy.NewPopularity).
		Register("Popularity", strategy.KindPopularity, strategy.NewPopularity).
		Build(strategy.Deps{Config: testConfig()})
	require.Error(t, err)
	assert.Equal(t, strategy.CodeDuplicateStrategy, errx.AsErrorX(err).Code())

	cfg := testConfig()
	cfg.Hybrid = strategy.HybridConfig{}
	_, err = strategy.NewRegistryBuilder().
		Register("hybrid", strategy.KindHybrid, strategy.NewHybrid).
		Build(strategy.Deps{Config: cfg})
	require.Error(t, err)
	assert.Equal(t, strategy.CodeInvalidConfig, errx.AsErrorX(err).Code())
}

func TestContentBasedPrefersPlayerTaste(t *testing.T) {
	s := registry(t, nil).MustGet("content_based")
	p := player()

	liked, err := s.CalculateScore(t.Context(), p,
		domain.ItemFeatures{ItemID: "a", Category: "slots", Provider: "netent"}, strategy.ScoringContext{})
	require.NoError(t, err)
	other, err := s.CalculateScore(t.Context(), p,
		domain.ItemFeatures{ItemID: "b", Category: "crash", Provider: "unknown"}, strategy.ScoringContext{})
	require.NoError(t, err)

	assert.Greater(t, liked, other)
}

func TestCollaborativeFallsBackToPopularityWithoutHistory(t *testing.T) {
	s := registry(t, nil).MustGet("collaborative_filtering")
	p := domain.DefaultNewPlayerFeatures("new")

	score, err := s.CalculateScore(t.Context(), p,
		domain.ItemFeatures{ItemID: "a", PopularityScore: 1, RevenueScore: 1}, strategy.ScoringContext{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestBanditExploresUnseenItems(t *testing.T) {
	s := registry(t, nil).MustGet("bandit")
	items := []domain.ItemFeatures{
		{ItemID: "seen", Impressions: 1000, Clicks: 300},
		{ItemID: "unseen"},
	}

	recs, err := s.GenerateRecommendations(t.Context(),
		domain.RecommendationRequest{PlayerID: "42", Count: 2, Context: "lobby"}, player(), items)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "unseen", recs[0].ItemID)
}

type failingModel struct {
	calls atomic.Int32
}

func (m *failingModel) Score(context.Context, strategy.ModelRequest) (map[string]float64, error) {
	m.calls.Add(1)
	return nil, errors.New("model down")
}

func TestEmbeddingFallsBackToLocalSimilarity(t *testing.T) {
	model := &failingModel{}
	s := registry(t, model).MustGet("embedding")

	recs, err := s.GenerateRecommendations(t.Context(),
		domain.RecommendationRequest{PlayerID: "42", Count: 5, Context: "lobby"}, player(), catalog(10))
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestHTTPModelClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req strategy.ModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		scores := map[string]float64{}
		for i, id := range req.ItemIDs {
			scores[id] = 1 / float64(i+1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer srv.Close()

	cfg := testConfig().Embedding
	cfg.Endpoint = srv.URL
	client := strategy.NewHTTPModelClient(cfg, logger.Nop())

	scores, err := client.Score(t.Context(), strategy.ModelRequest{PlayerID: "42", Embedding: []float64{1}, ItemIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)
}

func TestHTTPModelClientBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig().Embedding
	cfg.Endpoint = srv.URL
	client := strategy.NewHTTPModelClient(cfg, logger.Nop())

	for range 5 {
		_, err := client.Score(t.Context(), strategy.ModelRequest{ItemIDs: []string{"a"}})
		require.Error(t, err)
		assert.Equal(t, strategy.CodeModelUnavailable, errx.AsErrorX(err).Code())
	}
	// Two consecutive failures trip the breaker; later calls never reach the server.
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPModelClientHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig().Embedding
	cfg.Endpoint = srv.URL
	client := strategy.NewHTTPModelClient(cfg, logger.Nop())

	start := time.Now()
	_, err := client.Score(t.Context(), strategy.ModelRequest{ItemIDs: []string{"a"}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
