package domain

import (
	"time"

	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/uptrace/bun"
)

// Recommendation is one ranked item served to a player. It is append-only history: only
// the interaction flags change after creation, and they only ever go from unset to set.
type Recommendation struct {
	bun.BaseModel `bun:"table:recommendations,alias:r"`

	ID                string         `bun:"id,pk"               json:"id"`
	RequestID         string         `bun:"request_id,notnull"  json:"request_id"`
	PlayerID          string         `bun:"player_id,notnull"   json:"player_id"`
	ItemID            string         `bun:"item_id,notnull"     json:"item_id"`
	Algorithm         string         `bun:"algorithm,notnull"   json:"algorithm"`
	Score             float64        `bun:"score"               json:"score"`
	RankPosition      int            `bun:"rank_position"       json:"rank_position"`
	Context           string         `bun:"context"             json:"context"`
	Category          string         `bun:"category"            json:"category"`
	Provider          string         `bun:"provider"            json:"provider"`
	IsClicked         bool           `bun:"is_clicked"          json:"is_clicked"`
	ClickedAt         *time.Time     `bun:"clicked_at,nullzero" json:"clicked_at,omitempty"`
	IsPlayed          bool           `bun:"is_played"           json:"is_played"`
	PlayedAt          *time.Time     `bun:"played_at,nullzero"  json:"played_at,omitempty"`
	SessionID         string         `bun:"session_id"          json:"session_id,omitempty"`
	DeviceType        string         `bun:"device_type"         json:"device_type,omitempty"`
	ExperimentVariant string         `bun:"experiment_variant"  json:"experiment_variant,omitempty"`
	ModelVersion      string         `bun:"model_version"       json:"model_version"`
	FeatureSnapshot   map[string]any `bun:"feature_snapshot"    json:"feature_snapshot,omitempty"`
	Metadata          map[string]any `bun:"metadata"            json:"metadata,omitempty"`
	Version           int64          `bun:"version,notnull"     json:"version"`

	pg.Timestamps

	events.Recorder `bun:"-" json:"-"`
}

func (r *Recommendation) GetVersion() int64  { return r.Version }
func (r *Recommendation) SetVersion(v int64) { r.Version = v }

// MarkClicked sets the click flag once. It reports false when the flag was already set.
func (r *Recommendation) MarkClicked(at time.Time) bool {
	if r.IsClicked {
		return false
	}
	at = at.UTC()
	r.IsClicked = true
	r.ClickedAt = &at
	r.Record(r.event(EventRecommendationClicked, at))
	return true
}

// MarkPlayed sets the play flag once. A play implies a click, which is set too when missing.
func (r *Recommendation) MarkPlayed(at time.Time) bool {
	if r.IsPlayed {
		return false
	}
	r.MarkClicked(at)
	at = at.UTC()
	r.IsPlayed = true
	r.PlayedAt = &at
	r.Record(r.event(EventRecommendationPlayed, at))
	return true
}

func (r *Recommendation) event(eventType string, at time.Time) events.Event {
	return events.NewEventBuilder(eventType, r.ID).
		WithPartitionKey(r.PlayerID).
		WithData(RecommendationInteracted{
			RecommendationID: r.ID,
			PlayerID:         r.PlayerID,
			ItemID:           r.ItemID,
			Algorithm:        r.Algorithm,
			RankPosition:     r.RankPosition,
			SessionID:        r.SessionID,
		}).
		At(at).
		Build()
}

// ServedList groups the recommendations persisted for one request so that a single
// recommendation.served event describes them.
type ServedList struct {
	RequestID string
	PlayerID  string
	Context   string
	Items     []Recommendation

	events.Recorder
}

// NewServedList builds the aggregate and records its served event.
func NewServedList(requestID, playerID, reqContext string, items []Recommendation) *ServedList {
	s := &ServedList{RequestID: requestID, PlayerID: playerID, Context: reqContext, Items: items}

	payload := RecommendationServed{
		RequestID: requestID,
		PlayerID:  playerID,
		Context:   reqContext,
		Items:     make([]ServedItem, 0, len(items)),
	}
	for _, r := range items {
		payload.Algorithm = r.Algorithm
		payload.ExperimentVariant = r.ExperimentVariant
		payload.Items = append(payload.Items, ServedItem{
			RecommendationID: r.ID,
			ItemID:           r.ItemID,
			Score:            r.Score,
			RankPosition:     r.RankPosition,
		})
	}

	s.Record(events.NewEventBuilder(EventRecommendationServed, requestID).
		WithPartitionKey(playerID).
		WithData(payload).
		Build())
	return s
}
