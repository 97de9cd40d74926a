package recommend_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/dbtest"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/experiment"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/pagination"
	"github.com/rise-and-shine/recoengine/pipeline"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
	"github.com/rise-and-shine/recoengine/uow"
	"github.com/rise-and-shine/recoengine/val"
)

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.EventType())
	}
	return out
}

type harness struct {
	db         *bun.DB
	cache      *cache.MemoryCache
	publisher  *recordingPublisher
	dispatcher *cqrs.Dispatcher
}

func testConfig() recommend.Config {
	return recommend.Config{
		OverfetchFactor:        3,
		DiversifyMinCandidates: 5,
		DiversityLambda:        0.7,
		CacheTTL:               time.Minute,
		HandlerTimeout:         5 * time.Second,
		RankingWindow:          24 * time.Hour,
	}
}

func catalog() ([]domain.Item, []domain.ItemFeatures) {
	type row struct {
		id, category, provider string
		popularity             float64
		volatility             domain.Volatility
	}
	rows := []row{
		{"slot-1", "slots", "netent", 0.9, domain.VolatilityMedium},
		{"slot-2", "slots", "pragmatic", 0.8, domain.VolatilityMedium},
		{"slot-3", "slots", "netent", 0.7, domain.VolatilityMedium},
		{"live-1", "live", "evolution", 0.6, domain.VolatilityMedium},
		{"live-2", "live", "evolution", 0.5, domain.VolatilityMedium},
		{"table-1", "table", "playtech", 0.4, domain.VolatilityMedium},
		{"crash-1", "crash", "spribe", 0.3, domain.VolatilityHigh},
	}

	items := make([]domain.Item, 0, len(rows)+1)
	features := make([]domain.ItemFeatures, 0, len(rows)+1)
	for _, r := range rows {
		items = append(items, domain.Item{ID: r.id, Category: r.category, Provider: r.provider, IsActive: true})
		features = append(features, domain.ItemFeatures{
			ItemID:          r.id,
			Category:        r.category,
			Provider:        r.provider,
			RTP:             0.96,
			Volatility:      r.volatility,
			PopularityScore: r.popularity,
			Impressions:     100,
			Clicks:          int64(r.popularity * 20),
		})
	}
	items = append(items, domain.Item{ID: "retired-1", Category: "slots", Provider: "netent"})
	features = append(features, domain.ItemFeatures{ItemID: "retired-1", Category: "slots", PopularityScore: 1})
	return items, features
}

func newHarness(t *testing.T, mutate ...func(*recommend.Config)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	db := dbtest.NewSchema(t)
	items, features := catalog()
	now := time.Now()
	dbtest.Seed(t, db,
		&items,
		&features,
		&[]domain.Player{
			{ID: "new", Status: domain.PlayerActive, RegisteredAt: now},
			{ID: "vip", Status: domain.PlayerActive, RegisteredAt: now.Add(-365 * 24 * time.Hour)},
			{ID: "blocked", Status: domain.PlayerBlocked, RegisteredAt: now},
		},
		&domain.PlayerFeatures{
			PlayerID:            "vip",
			TotalSessions:       120,
			TotalGamesPlayed:    900,
			PreferredCategories: []string{"slots"},
			FavoriteProviders:   []string{"netent"},
			PlayStyle:           "casual",
		},
	)

	m := metrics.New()
	log := logger.Nop()
	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })

	store := featurestore.NewPgStore(db)
	registry, err := strategy.DefaultRegistryBuilder().Build(strategy.Deps{
		Config: strategy.Config{
			ModelVersion:  "test",
			Collaborative: strategy.CollaborativeConfig{PopularityBlend: 0.2},
			Hybrid:        strategy.HybridConfig{CollaborativeWeight: 0.4, ContentWeight: 0.4, PopularityWeight: 0.2},
			Bandit:        strategy.BanditConfig{Exploration: 0.5},
		},
		Performance: strategy.NewBunPerformanceSource(db),
		Logger:      log,
	})
	require.NoError(t, err)

	sel, err := selector.New(registry, store, experiment.NewService(db, log), selector.Config{
		Heuristics: selector.HeuristicsConfig{
			ColdStartMaxSessions:    3,
			HighActivityMinGames:    100,
			HighActivityMinSessions: 20,
			BroadCategoryThreshold:  3,
		},
	}, log, m)
	require.NoError(t, err)

	p, err := recommend.NewPipeline(recommend.PipelineDeps{
		Config:   cfg,
		Features: store,
		Selector: sel,
		Cache:    mem,
		Served:   recommend.NewBunServedCounter(db),
		Logger:   log,
		Metrics:  m,
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	h := recommend.NewHandlers(recommend.HandlerDeps{
		Config:   cfg,
		Pipeline: p,
		Units:    uow.NewFactory(uow.Config{ConflictRetries: 2}, db, pub, log),
		Cache:    mem,
		Ranker:   sel,
		Logger:   log,
	})

	b := cqrs.NewRegistryBuilder()
	h.Register(b, log)
	handlers, err := b.Build()
	require.NoError(t, err)

	return &harness{db: db, cache: mem, publisher: pub, dispatcher: cqrs.NewDispatcher(handlers, log, m)}
}

func lobby(playerID string, count int) domain.RecommendationRequest {
	return domain.RecommendationRequest{PlayerID: playerID, Count: count, Context: domain.ContextLobby, SessionID: "s-1"}
}

func (h *harness) get(t *testing.T, req domain.RecommendationRequest) recommend.Recommendations {
	t.Helper()
	out, err := cqrs.Dispatch[recommend.Recommendations](t.Context(), h.dispatcher,
		recommend.GetRecommendationsQuery{RecommendationRequest: req}).Unwrap()
	require.NoError(t, err)
	return out
}

func (h *harness) serve(t *testing.T, req domain.RecommendationRequest) recommend.Recommendations {
	t.Helper()
	out, err := cqrs.Dispatch[recommend.Recommendations](t.Context(), h.dispatcher,
		recommend.ServeRecommendationsCommand{RecommendationRequest: req}).Unwrap()
	require.NoError(t, err)
	return out
}

func (h *harness) track(t *testing.T, c recommend.TrackInteractionCommand) (recommend.TrackInteractionResult, error) {
	t.Helper()
	return cqrs.Dispatch[recommend.TrackInteractionResult](t.Context(), h.dispatcher, c).Unwrap()
}

func (h *harness) upsert(t *testing.T, c recommend.UpsertItemOverrideCommand) (domain.ItemOverride, error) {
	t.Helper()
	return cqrs.Dispatch[domain.ItemOverride](t.Context(), h.dispatcher, c).Unwrap()
}

func itemIDs(recs []domain.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ItemID)
	}
	return out
}

func TestNewPlayerGetsContentBasedList(t *testing.T) {
	h := newHarness(t)

	out := h.get(t, lobby("new", 5))

	assert.Equal(t, "content_based", out.Strategy)
	assert.Equal(t, string(selector.ReasonColdStart), out.Reason)
	assert.NotEmpty(t, out.RequestID)
	require.Len(t, out.Items, 5)

	ids := itemIDs(out.Items)
	assert.Equal(t, "slot-1", ids[0])
	assert.NotContains(t, ids, "retired-1")
	assert.Len(t, slices.Compact(slices.Sorted(slices.Values(ids))), 5)
	for i, r := range out.Items {
		assert.Equal(t, i+1, r.RankPosition)
		assert.Equal(t, out.RequestID, r.RequestID)
		assert.Equal(t, "new", r.PlayerID)
		assert.Equal(t, "content_based", r.Algorithm)
		assert.InDelta(t, 0.5, r.Score, 0.5)
		assert.Equal(t, true, r.FeatureSnapshot["is_new_player"])
		assert.Equal(t, "cold_start", r.Metadata["selection_reason"])
	}
}

func TestDiversifiedListMixesCategories(t *testing.T) {
	h := newHarness(t)

	out := h.get(t, lobby("new", 3))

	categories := make(map[string]struct{})
	for _, r := range out.Items {
		categories[r.Category] = struct{}{}
	}
	assert.Greater(t, len(categories), 1)
}

func TestExperimentVariantIsStable(t *testing.T) {
	h := newHarness(t)
	dbtest.Seed(t, h.db,
		&domain.Experiment{
			Name:           "AlgoTest",
			TargetContexts: []string{domain.ContextLobby},
			StartsAt:       time.Now().Add(-time.Hour),
			Active:         true,
			Variants: []domain.ExperimentVariant{
				{Name: "control", Algorithm: "collaborative_filtering", Weight: 50},
				{Name: "treatment", Algorithm: "hybrid", Weight: 50},
			},
		},
		&domain.ExperimentAssignment{
			ID: "a-1", ExperimentName: "AlgoTest", PlayerID: "vip", Variant: "treatment", AssignedAt: time.Now(),
		},
	)

	for range 3 {
		req := lobby("vip", 4)
		req.Parameters = map[string]any{"nocache": true}

		out := h.get(t, req)

		assert.Equal(t, "hybrid", out.Strategy)
		assert.Equal(t, string(selector.ReasonExperiment), out.Reason)
		assert.Equal(t, "AlgoTest", out.Experiment)
		assert.Equal(t, "treatment", out.Variant)
		for _, r := range out.Items {
			assert.Equal(t, "treatment", r.ExperimentVariant)
		}
	}

	out := h.get(t, domain.RecommendationRequest{PlayerID: "vip", Count: 4, Context: domain.ContextPromotion})
	assert.Equal(t, "collaborative_filtering", out.Strategy)
	assert.Empty(t, out.Variant)
}

func TestCachedListIsReused(t *testing.T) {
	h := newHarness(t)

	first := h.get(t, lobby("new", 4))
	second := h.get(t, lobby("new", 4))

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, itemIDs(first.Items), itemIDs(second.Items))

	personalized := lobby("new", 4)
	personalized.ExcludedItemIDs = []string{"slot-1"}
	third := h.get(t, personalized)
	assert.False(t, third.Cached)
	assert.NotContains(t, itemIDs(third.Items), "slot-1")
}

func TestCachedListTakesCallerSession(t *testing.T) {
	h := newHarness(t)

	first := lobby("new", 3)
	first.DeviceType = "desktop"
	h.get(t, first)

	var stored []domain.Recommendation
	found, err := h.cache.Get(t.Context(), recommend.RecommendationsKey("new", domain.ContextLobby, 3), &stored)
	require.NoError(t, err)
	require.True(t, found)
	for _, r := range stored {
		assert.Empty(t, r.SessionID)
		assert.Empty(t, r.DeviceType)
	}

	other := lobby("new", 3)
	other.SessionID = "s-2"
	other.DeviceType = "mobile"
	out := h.get(t, other)
	require.True(t, out.Cached)
	require.NotEmpty(t, out.Items)
	for _, r := range out.Items {
		assert.Equal(t, "s-2", r.SessionID)
		assert.Equal(t, "mobile", r.DeviceType)
	}
}

func TestZeroTTLMatchesCachedResult(t *testing.T) {
	cached := newHarness(t)
	uncached := newHarness(t, func(c *recommend.Config) { c.CacheTTL = 0 })

	for range 2 {
		a := cached.get(t, lobby("new", 5))
		b := uncached.get(t, lobby("new", 5))
		assert.False(t, b.Cached)
		assert.Equal(t, itemIDs(a.Items), itemIDs(b.Items))
	}
	assert.Zero(t, uncached.cache.Len())
}

func TestPlayerValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		req      domain.RecommendationRequest
		wantCode string
	}{
		{name: "unknown player", req: lobby("ghost", 5), wantCode: domain.CodePlayerNotFound},
		{name: "blocked player", req: lobby("blocked", 5), wantCode: domain.CodePlayerInactive},
		{name: "zero count", req: lobby("new", 0), wantCode: val.CodeValidationFailed},
		{name: "bad context", req: domain.RecommendationRequest{PlayerID: "new", Count: 1, Context: "Lobby Page"}, wantCode: val.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := cqrs.Dispatch[recommend.Recommendations](t.Context(), h.dispatcher,
				recommend.GetRecommendationsQuery{RecommendationRequest: tt.req})
			require.True(t, res.IsFail())
			assert.Equal(t, tt.wantCode, res.Code())
		})
	}
}

func TestServeAndTrackInteractions(t *testing.T) {
	h := newHarness(t)

	served := h.serve(t, lobby("new", 3))
	require.Len(t, served.Items, 3)
	first := served.Items[0]

	stored, err := h.db.NewSelect().Model((*domain.Recommendation)(nil)).
		Where("request_id = ?", served.RequestID).Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, stored)

	var cachedList []domain.Recommendation
	found, err := h.cache.Get(t.Context(), recommend.RecommendationsKey("new", domain.ContextLobby, 3), &cachedList)
	require.NoError(t, err)
	require.True(t, found)

	click := recommend.TrackInteractionCommand{
		RecommendationID: first.ID,
		PlayerID:         "new",
		Type:             domain.InteractionClick,
		SessionID:        "s-1",
	}
	res, err := h.track(t, click)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotEmpty(t, res.InteractionID)

	found, err = h.cache.Get(t.Context(), recommend.RecommendationsKey("new", domain.ContextLobby, 3), &cachedList)
	require.NoError(t, err)
	assert.False(t, found, "tracking drops the player's cached lists")

	again, err := h.track(t, click)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	_, err = h.track(t, recommend.TrackInteractionCommand{
		RecommendationID: first.ID,
		PlayerID:         "new",
		Type:             domain.InteractionPlay,
		SessionID:        "s-1",
		Value:            1,
	})
	require.NoError(t, err)

	var rec domain.Recommendation
	require.NoError(t, h.db.NewSelect().Model(&rec).Where("id = ?", first.ID).Scan(t.Context()))
	assert.True(t, rec.IsClicked)
	assert.True(t, rec.IsPlayed)
	assert.NotNil(t, rec.PlayedAt)

	interactions, err := h.db.NewSelect().Model((*domain.RecommendationInteraction)(nil)).
		Where("recommendation_id = ?", first.ID).Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, interactions)

	assert.Equal(t, []string{
		domain.EventRecommendationServed,
		domain.EventInteractionRecorded,
		domain.EventRecommendationClicked,
		domain.EventInteractionRecorded,
		domain.EventRecommendationPlayed,
	}, h.publisher.types())
}

func TestTrackInteractionFailures(t *testing.T) {
	h := newHarness(t)
	served := h.serve(t, lobby("new", 1))

	tests := []struct {
		name     string
		cmd      recommend.TrackInteractionCommand
		wantCode string
	}{
		{
			name: "unknown recommendation",
			cmd: recommend.TrackInteractionCommand{
				RecommendationID: "missing", Type: domain.InteractionClick, SessionID: "s-1",
			},
			wantCode: domain.CodeRecommendationNotFound,
		},
		{
			name: "other player",
			cmd: recommend.TrackInteractionCommand{
				RecommendationID: served.Items[0].ID, PlayerID: "vip", Type: domain.InteractionClick, SessionID: "s-1",
			},
			wantCode: domain.CodeInteractionMismatch,
		},
		{
			name: "unknown type",
			cmd: recommend.TrackInteractionCommand{
				RecommendationID: served.Items[0].ID, Type: "hover", SessionID: "s-1",
			},
			wantCode: val.CodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := cqrs.Dispatch[recommend.TrackInteractionResult](t.Context(), h.dispatcher, tt.cmd)
			require.True(t, res.IsFail())
			assert.Equal(t, tt.wantCode, res.Code())
		})
	}
}

func TestItemOverrides(t *testing.T) {
	h := newHarness(t)

	before := h.get(t, lobby("new", 5))
	require.Contains(t, itemIDs(before.Items), "slot-1")

	o, err := h.upsert(t, recommend.UpsertItemOverrideCommand{
		ItemID: "slot-1", Mode: domain.OverrideSuppress, Reason: "maintenance", UpdatedBy: "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Version)

	_, err = h.upsert(t, recommend.UpsertItemOverrideCommand{
		ItemID: "crash-1", Mode: domain.OverridePromote, Boost: 0.1, Pinned: true, UpdatedBy: "ops",
	})
	require.NoError(t, err)

	after := h.get(t, lobby("new", 5))
	assert.False(t, after.Cached, "override changes drop cached lists")
	ids := itemIDs(after.Items)
	assert.NotContains(t, ids, "slot-1")
	require.NotEmpty(t, ids)
	assert.Equal(t, "crash-1", ids[0])
	assert.Equal(t, true, after.Items[0].Metadata["pinned"])
	assert.Equal(t, true, after.Items[0].Metadata["promoted"])

	updated, err := h.upsert(t, recommend.UpsertItemOverrideCommand{
		ItemID: "slot-1", Mode: domain.OverrideNone, UpdatedBy: "ops", ExpectedVersion: &o.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	restored := h.get(t, lobby("new", 5))
	assert.Contains(t, itemIDs(restored.Items), "slot-1")

	stale := int64(1)
	res := cqrs.Dispatch[domain.ItemOverride](t.Context(), h.dispatcher, recommend.UpsertItemOverrideCommand{
		ItemID: "slot-1", Mode: domain.OverrideSuppress, UpdatedBy: "ops", ExpectedVersion: &stale,
	})
	require.True(t, res.IsFail())
	assert.Equal(t, uow.CodeTransactionConflict, res.Code())

	res = cqrs.Dispatch[domain.ItemOverride](t.Context(), h.dispatcher, recommend.UpsertItemOverrideCommand{
		ItemID: "nope", Mode: domain.OverrideSuppress, UpdatedBy: "ops",
	})
	require.True(t, res.IsFail())
	assert.Equal(t, domain.CodeOverrideInvalid, res.Code())

	assert.Contains(t, h.publisher.types(), domain.EventItemOverrideChanged)
}

func TestDailyCapStopsPromotion(t *testing.T) {
	h := newHarness(t)
	once := 1
	_, err := h.upsert(t, recommend.UpsertItemOverrideCommand{
		ItemID: "table-1", Mode: domain.OverridePromote, Boost: 1, MaxPerDay: &once, UpdatedBy: "ops",
	})
	require.NoError(t, err)

	first := h.serve(t, lobby("new", 3))
	assert.Equal(t, "table-1", first.Items[0].ItemID)

	second := h.serve(t, lobby("new", 3))
	assert.NotContains(t, itemIDs(second.Items), "table-1")
}

func TestBusinessRulesDropCandidates(t *testing.T) {
	h := newHarness(t, func(c *recommend.Config) {
		c.Rules = []recommend.RuleConfig{{Name: "no_live", DropIf: "item.category == 'live'"}}
	})

	out := h.get(t, lobby("new", 10))

	require.NotEmpty(t, out.Items)
	for _, r := range out.Items {
		assert.NotEqual(t, "live", r.Category)
	}
}

func TestProviderCap(t *testing.T) {
	h := newHarness(t, func(c *recommend.Config) { c.MaxPerProvider = 1 })

	out := h.get(t, lobby("new", 10))

	providers := make(map[string]int)
	for _, r := range out.Items {
		providers[r.Provider]++
	}
	for p, n := range providers {
		assert.Equal(t, 1, n, p)
	}
}

func TestDisabledStepLeavesContextKeyMissing(t *testing.T) {
	h := newHarness(t, func(c *recommend.Config) {
		c.DisabledSteps = []string{recommend.StepSelectAlgorithm}
	})

	res := cqrs.Dispatch[recommend.Recommendations](t.Context(), h.dispatcher,
		recommend.GetRecommendationsQuery{RecommendationRequest: lobby("new", 3)})

	require.True(t, res.IsFail())
	assert.Equal(t, pipeline.CodeContextMissing, res.Code())
}

func TestRecommendationHistory(t *testing.T) {
	h := newHarness(t)
	h.serve(t, lobby("new", 3))
	latest := h.serve(t, lobby("new", 3))

	page, err := cqrs.Dispatch[pagination.Response[domain.Recommendation]](t.Context(), h.dispatcher,
		recommend.GetRecommendationHistoryQuery{
			Request:  pagination.Request{PageNumber: 1, PageSize: 4},
			PlayerID: "new",
			Context:  domain.ContextLobby,
		}).Unwrap()
	require.NoError(t, err)

	assert.Equal(t, int64(6), page.TotalCount)
	assert.Equal(t, 2, page.PageCount)
	require.Len(t, page.PageContent, 4)
	for i := range 3 {
		assert.Equal(t, latest.RequestID, page.PageContent[i].RequestID)
		assert.Equal(t, i+1, page.PageContent[i].RankPosition)
	}

	empty, err := cqrs.Dispatch[pagination.Response[domain.Recommendation]](t.Context(), h.dispatcher,
		recommend.GetRecommendationHistoryQuery{PlayerID: "new", Algorithm: "bandit"}).Unwrap()
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCount)
	assert.Empty(t, empty.PageContent)
}

func TestStrategyRanking(t *testing.T) {
	h := newHarness(t)
	served := h.serve(t, lobby("new", 3))
	_, err := h.track(t, recommend.TrackInteractionCommand{
		RecommendationID: served.Items[0].ID, Type: domain.InteractionPlay, SessionID: "s-1",
	})
	require.NoError(t, err)
	_, err = h.track(t, recommend.TrackInteractionCommand{
		RecommendationID: served.Items[1].ID, Type: domain.InteractionBet, Value: 30, SessionID: "s-1",
	})
	require.NoError(t, err)

	ranking, err := cqrs.Dispatch[[]domain.StrategyRanking](t.Context(), h.dispatcher,
		recommend.GetStrategyRankingQuery{}).Unwrap()
	require.NoError(t, err)

	require.Len(t, ranking, 6)
	assert.Equal(t, "content_based", ranking[0].Strategy)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.Equal(t, int64(3), ranking[0].Metrics.Impressions)
	assert.Equal(t, int64(1), ranking[0].Metrics.Plays)
	assert.InDelta(t, 10.0, ranking[0].Metrics.RevenuePerRecommendation, 1e-9)
	assert.InDelta(t, 1.0, ranking[0].Metrics.Recall, 1e-9)
	assert.Greater(t, ranking[0].Score, ranking[1].Score)

	res := cqrs.Dispatch[[]domain.StrategyRanking](t.Context(), h.dispatcher, recommend.GetStrategyRankingQuery{
		From: time.Now(), To: time.Now().Add(-time.Hour),
	})
	assert.True(t, res.IsFail())
}
