package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
)

type clickData struct {
	PlayerID string `json:"player_id"`
	ItemID   string `json:"item_id"`
}

func TestRecorderPullEmptiesBuffer(t *testing.T) {
	var r events.Recorder
	r.Record(events.NewEventBuilder("recommendation.clicked", "r-1").Build())
	r.Record(events.NewEventBuilder("recommendation.played", "r-1").Build())
	assert.Equal(t, 2, r.Pending())

	pulled := r.PullEvents()
	require.Len(t, pulled, 2)
	assert.Equal(t, "recommendation.clicked", pulled[0].EventType())
	assert.Empty(t, r.PullEvents())
}

func TestBuilderDefaults(t *testing.T) {
	e := events.NewEventBuilder("recommendation.served", "r-9").
		WithData(clickData{PlayerID: "p"}).
		WithPartitionKey("p").
		Build()

	assert.NotEmpty(t, e.EventID())
	assert.Equal(t, "v1", e.EventVersion())
	assert.False(t, e.OccurredAt().IsZero())
	assert.Equal(t, "p", e.PartitionKey())
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "reco.recommendation.clicked", events.Topic("reco", "recommendation.clicked"))
	assert.Equal(t, "recommendation.clicked", events.Topic("", "recommendation.clicked"))
}

func TestWatermillPublisherInProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	bus := events.NewInProcess(events.NewLoggerAdapter(logger.Nop()))
	defer bus.Close()

	msgs, err := bus.Subscribe(ctx, "reco.recommendation.clicked")
	require.NoError(t, err)

	pub := events.NewWatermillPublisher(bus, "reco")
	ctx = meta.With(ctx, meta.TraceID, "trace-1")

	e := events.NewEventBuilder("recommendation.clicked", "r-1").
		WithData(clickData{PlayerID: "p-1", ItemID: "g-7"}).
		WithPartitionKey("p-1").
		Build()
	require.NoError(t, pub.Publish(ctx, e))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "recommendation.clicked", msg.Metadata.Get(events.MetadataEventType))
		assert.Equal(t, "p-1", msg.Metadata.Get(events.MetadataPartitionKey))
		assert.Equal(t, "trace-1", msg.Metadata.Get(events.MetadataTraceID))

		env, err := events.DecodeEnvelope(msg)
		require.NoError(t, err)
		assert.Equal(t, e.EventID(), env.ID)
		assert.Equal(t, "r-1", env.AggregateID)
		assert.JSONEq(t, `{"player_id":"p-1","item_id":"g-7"}`, string(env.Data))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
