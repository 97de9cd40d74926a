package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/cqrs/wrapper"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/ingest"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/uow"
)

type fakeTracker struct {
	mu       sync.Mutex
	received []recommend.TrackInteractionCommand
	players  []string
	reply    recommend.TrackInteractionResult
	err      error
}

func (f *fakeTracker) handle(ctx context.Context, c recommend.TrackInteractionCommand) (recommend.TrackInteractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, c)
	f.players = append(f.players, meta.Get(ctx, meta.PlayerID))
	return f.reply, f.err
}

func newHandler(t *testing.T, tracker *fakeTracker, m *metrics.Metrics) *ingest.Handler {
	t.Helper()

	b := cqrs.NewRegistryBuilder()
	cqrs.Register(b, cqrs.HandlerFunc[recommend.TrackInteractionCommand, recommend.TrackInteractionResult]{
		ID: "track_interaction",
		Fn: tracker.handle,
	}, wrapper.Default[recommend.TrackInteractionCommand, recommend.TrackInteractionResult](logger.Nop(), time.Second)...)

	registry, err := b.Build()
	require.NoError(t, err)
	return ingest.NewHandler(cqrs.NewDispatcher(registry, logger.Nop(), m), logger.Nop(), m)
}

func consumed(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "reco.interactions",
		Key:       []byte("p-1"),
		Value:     []byte(value),
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

const validPayload = `{"recommendation_id":"r-1","player_id":"p-1","type":"click","session_id":"s-1","device_type":"mobile"}`

func TestHandleDispatchesInteraction(t *testing.T) {
	tracker := &fakeTracker{reply: recommend.TrackInteractionResult{InteractionID: "i-1"}}
	m := metrics.New()
	h := newHandler(t, tracker, m)

	require.NoError(t, h.Handle(t.Context(), consumed(validPayload)))

	require.Len(t, tracker.received, 1)
	got := tracker.received[0]
	assert.Equal(t, "r-1", got.RecommendationID)
	assert.Equal(t, domain.InteractionType("click"), got.Type)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), got.OccurredAt)
	assert.Equal(t, []string{"p-1"}, tracker.players)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IngestMessages.WithLabelValues(metrics.OutcomeSuccess)), 0)
}

func TestHandleKeepsEventTime(t *testing.T) {
	tracker := &fakeTracker{}
	h := newHandler(t, tracker, nil)

	payload := `{"recommendation_id":"r-1","type":"play","session_id":"s-1","occurred_at":"2026-02-01T08:00:00Z"}`
	require.NoError(t, h.Handle(t.Context(), consumed(payload)))
	require.Len(t, tracker.received, 1)
	assert.Equal(t, time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC), tracker.received[0].OccurredAt.UTC())
}

func TestHandleFailures(t *testing.T) {
	conflict := errx.New("version moved", errx.WithCode(uow.CodeTransactionConflict), errx.WithType(errx.T_Conflict))
	notFound := errx.New("no recommendation", errx.WithCode(domain.CodeRecommendationNotFound), errx.WithType(errx.T_NotFound))

	tests := []struct {
		name          string
		payload       string
		handlerErr    error
		wantCode      string
		wantTransient bool
		wantCalls     int
	}{
		{name: "malformed json", payload: `{"recommendation_id":`, wantCode: ingest.CodeInvalidInteraction},
		{name: "missing session", payload: `{"recommendation_id":"r-1","type":"click"}`, wantCode: "VALIDATION_FAILED"},
		{name: "unknown type", payload: `{"recommendation_id":"r-1","type":"hover","session_id":"s"}`, wantCode: "VALIDATION_FAILED"},
		{name: "conflict is transient", payload: validPayload, handlerErr: conflict, wantCode: uow.CodeTransactionConflict, wantTransient: true, wantCalls: 1},
		{name: "not found is final", payload: validPayload, handlerErr: notFound, wantCode: domain.CodeRecommendationNotFound, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &fakeTracker{err: tt.handlerErr}
			h := newHandler(t, tracker, nil)

			err := h.Handle(t.Context(), consumed(tt.payload))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errx.AsErrorX(err).Code())
			assert.Equal(t, tt.wantTransient, ingest.IsTransient(err))
			assert.Len(t, tracker.received, tt.wantCalls)
		})
	}
}

func TestDuplicateIsAcknowledged(t *testing.T) {
	tracker := &fakeTracker{reply: recommend.TrackInteractionResult{Duplicate: true}}
	m := metrics.New()
	h := newHandler(t, tracker, m)

	require.NoError(t, h.Handle(t.Context(), consumed(validPayload)))
	assert.InDelta(t, 1, testutil.ToFloat64(m.IngestMessages.WithLabelValues(metrics.OutcomeSkipped)), 0)
}
