package engine_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cfgloader"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/dbtest"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/engine"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/rediswr"
)

const testYAML = `
postgres:
  host: localhost
  port: 5432
  user: reco
  password: reco
  database: reco
tracing:
  disable: true
events:
  topic_prefix: reco
`

func testConfig(t *testing.T) engine.Config {
	t.Helper()

	cfg, err := cfgloader.Parse[engine.Config]([]byte(testYAML))
	require.NoError(t, err)
	return cfg
}

func seededDB(t *testing.T) *bun.DB {
	t.Helper()

	db := dbtest.NewSchema(t)
	dbtest.Seed(t, db,
		&[]domain.Item{
			{ID: "slot-1", Category: "slots", Provider: "netent", IsActive: true},
			{ID: "live-1", Category: "live", Provider: "evolution", IsActive: true},
			{ID: "table-1", Category: "table", Provider: "playtech", IsActive: true},
		},
		&[]domain.ItemFeatures{
			{ItemID: "slot-1", Category: "slots", Provider: "netent", PopularityScore: 0.9, Volatility: domain.VolatilityMedium},
			{ItemID: "live-1", Category: "live", Provider: "evolution", PopularityScore: 0.6, Volatility: domain.VolatilityMedium},
			{ItemID: "table-1", Category: "table", Provider: "playtech", PopularityScore: 0.3, Volatility: domain.VolatilityLow},
		},
		&domain.Player{ID: "p-1", Status: domain.PlayerActive, RegisteredAt: time.Now()},
	)
	return db
}

func TestConfigDefaults(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, cache.DriverMemory, cfg.Cache.Driver)
	assert.Equal(t, events.DriverInProcess, cfg.Events.Driver)
	assert.Equal(t, 3, cfg.Recommend.OverfetchFactor)
	assert.Equal(t, 5*time.Minute, cfg.Recommend.CacheTTL)
	assert.Equal(t, "collaborative_filtering", cfg.Selector.Fallback)
	assert.Equal(t, "reco.interactions", cfg.Ingest.Topic)
	assert.False(t, cfg.Ingest.Enabled)
}

func TestServePublishesInProcess(t *testing.T) {
	e, err := engine.New(t.Context(), testConfig(t), engine.Deps{
		DB:      seededDB(t),
		Logger:  logger.Nop(),
		Metrics: metrics.New(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	assert.ElementsMatch(t, []string{
		"get_recommendations",
		"serve_recommendations",
		"track_interaction",
		"upsert_item_override",
		"get_strategy_ranking",
		"get_recommendation_history",
	}, e.Operations())

	require.NotNil(t, e.Subscriber())
	served, err := e.Subscriber().Subscribe(t.Context(), events.Topic("reco", domain.EventRecommendationServed))
	require.NoError(t, err)

	res := cqrs.Dispatch[recommend.Recommendations](t.Context(), e.Dispatcher(), recommend.ServeRecommendationsCommand{
		RecommendationRequest: domain.RecommendationRequest{
			PlayerID:  "p-1",
			Count:     3,
			Context:   domain.ContextLobby,
			SessionID: "s-1",
		},
	})
	require.True(t, res.IsOk(), res.Failure().Message)
	out := res.MustValue()
	require.Len(t, out.Items, 3)

	select {
	case msg := <-served:
		msg.Ack()
		env, err := events.DecodeEnvelope(msg)
		require.NoError(t, err)
		assert.Equal(t, domain.EventRecommendationServed, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("served event was not published")
	}
}

func TestRedisCacheDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = cache.DriverRedis

	_, err := engine.New(t.Context(), cfg, engine.Deps{DB: seededDB(t)})
	require.Error(t, err)

	srv := miniredis.RunT(t)
	client, err := rediswr.Connect(t.Context(), rediswr.Config{Addrs: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	e, err := engine.New(t.Context(), cfg, engine.Deps{DB: seededDB(t), Redis: client, Publisher: events.Nop{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	assert.Equal(t, cache.DriverRedis, e.Cache().Name())
	assert.Nil(t, e.Subscriber())

	req := recommend.GetRecommendationsQuery{RecommendationRequest: domain.RecommendationRequest{
		PlayerID: "p-1", Count: 2, Context: domain.ContextLobby, SessionID: "s-1",
	}}
	first := cqrs.Dispatch[recommend.Recommendations](t.Context(), e.Dispatcher(), req)
	require.True(t, first.IsOk(), first.Failure().Message)
	second := cqrs.Dispatch[recommend.Recommendations](t.Context(), e.Dispatcher(), req)
	require.True(t, second.IsOk())
	assert.True(t, second.MustValue().Cached)
	assert.Equal(t, first.MustValue().RequestID, second.MustValue().RequestID)
}

func TestDatabaseIsRequired(t *testing.T) {
	_, err := engine.New(t.Context(), testConfig(t), engine.Deps{})
	assert.Error(t, err)
}
