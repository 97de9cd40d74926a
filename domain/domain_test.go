package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/dbtest"
	"github.com/rise-and-shine/recoengine/domain"
)

func TestMarkClickedOnlyOnce(t *testing.T) {
	r := &domain.Recommendation{ID: "r1", PlayerID: "42", ItemID: "slot-1"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.True(t, r.MarkClicked(at))
	assert.False(t, r.MarkClicked(at.Add(time.Hour)))

	require.NotNil(t, r.ClickedAt)
	assert.Equal(t, at, *r.ClickedAt)

	evts := r.PullEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, domain.EventRecommendationClicked, evts[0].EventType())
	assert.Empty(t, r.PullEvents())
}

func TestMarkPlayedImpliesClick(t *testing.T) {
	r := &domain.Recommendation{ID: "r1", PlayerID: "42"}
	at := time.Now()

	assert.True(t, r.MarkPlayed(at))
	assert.True(t, r.IsClicked)
	assert.True(t, r.IsPlayed)
	assert.False(t, r.MarkPlayed(at))

	var types []string
	for _, e := range r.PullEvents() {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{domain.EventRecommendationClicked, domain.EventRecommendationPlayed}, types)
}

func TestExperimentWindow(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)

	tests := []struct {
		name string
		exp  domain.Experiment
		want bool
	}{
		{name: "running", exp: domain.Experiment{Active: true, StartsAt: now.Add(-time.Hour), EndsAt: &end}, want: true},
		{name: "open ended", exp: domain.Experiment{Active: true, StartsAt: now.Add(-time.Hour)}, want: true},
		{name: "not started", exp: domain.Experiment{Active: true, StartsAt: now.Add(time.Minute)}, want: false},
		{name: "switched off", exp: domain.Experiment{Active: false, StartsAt: now.Add(-time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.exp.RunningAt(now))
		})
	}
}

func TestRequestParameters(t *testing.T) {
	req := domain.RecommendationRequest{Parameters: map[string]any{
		"lambda":  "0.5",
		"explore": true,
		"bad":     "x",
	}}

	assert.InDelta(t, 0.5, req.Float("lambda", 0.7), 1e-9)
	assert.InDelta(t, 0.7, req.Float("bad", 0.7), 1e-9)
	assert.InDelta(t, 0.7, req.Float("missing", 0.7), 1e-9)
	assert.True(t, req.Bool("explore", false))
	assert.True(t, req.Personalized())
	assert.False(t, domain.RecommendationRequest{PlayerID: "1"}.Personalized())
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, domain.CreateSchema(t.Context(), db))
	require.NoError(t, domain.CreateSchema(t.Context(), db))

	rec := &domain.Recommendation{ID: "r1", RequestID: "q1", PlayerID: "42", ItemID: "slot-1", Algorithm: "popularity"}
	_, err := db.NewInsert().Model(rec).Exec(t.Context())
	require.NoError(t, err)

	var got domain.Recommendation
	require.NoError(t, db.NewSelect().Model(&got).Where("id = ?", "r1").Scan(t.Context()))
	assert.Equal(t, "slot-1", got.ItemID)
	assert.False(t, got.CreatedAt.IsZero())
}
