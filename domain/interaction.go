package domain

import (
	"time"

	"github.com/rise-and-shine/recoengine/events"
	"github.com/uptrace/bun"
)

type InteractionType string

const (
	InteractionImpression InteractionType = "impression"
	InteractionClick      InteractionType = "click"
	InteractionPlay       InteractionType = "play"
	InteractionDismiss    InteractionType = "dismiss"
	InteractionBet        InteractionType = "bet"
)

// RecommendationInteraction records one tracked interaction. Rows are immutable and unique
// per (recommendation, session, type).
type RecommendationInteraction struct {
	bun.BaseModel `bun:"table:recommendation_interactions,alias:ri"`

	ID               string          `bun:"id,pk"                     json:"id"`
	RecommendationID string          `bun:"recommendation_id,notnull" json:"recommendation_id"`
	PlayerID         string          `bun:"player_id,notnull"         json:"player_id"`
	ItemID           string          `bun:"item_id,notnull"           json:"item_id"`
	Type             InteractionType `bun:"type,notnull"              json:"type"`
	Value            float64         `bun:"value"                     json:"value"`
	SessionID        string          `bun:"session_id,notnull"        json:"session_id"`
	DeviceType       string          `bun:"device_type"               json:"device_type,omitempty"`
	OccurredAt       time.Time       `bun:"occurred_at,notnull"       json:"occurred_at"`

	events.Recorder `bun:"-" json:"-"`
}

// NewInteraction builds the row and records its interaction.recorded event.
func NewInteraction(
	id string,
	rec Recommendation,
	kind InteractionType,
	value float64,
	sessionID, deviceType string,
	at time.Time,
) *RecommendationInteraction {
	i := &RecommendationInteraction{
		ID:               id,
		RecommendationID: rec.ID,
		PlayerID:         rec.PlayerID,
		ItemID:           rec.ItemID,
		Type:             kind,
		Value:            value,
		SessionID:        sessionID,
		DeviceType:       deviceType,
		OccurredAt:       at.UTC(),
	}
	i.Record(events.NewEventBuilder(EventInteractionRecorded, id).
		WithPartitionKey(rec.PlayerID).
		WithData(InteractionRecorded{
			InteractionID:    id,
			RecommendationID: rec.ID,
			PlayerID:         rec.PlayerID,
			ItemID:           rec.ItemID,
			Type:             string(kind),
			Value:            value,
			SessionID:        sessionID,
		}).
		At(i.OccurredAt).
		Build())
	return i
}
