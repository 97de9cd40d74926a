package recommend

import (
	"time"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/pagination"
)

// GetRecommendationsQuery returns a ranked list without persisting it. Lists for requests
// without overrides, exclusions or parameters are served from the cache when present.
type GetRecommendationsQuery struct {
	cqrs.QueryMarker
	domain.RecommendationRequest
}

func (GetRecommendationsQuery) RequestName() string { return "GetRecommendationsQuery" }

// ServeRecommendationsCommand generates a list and persists it as served.
type ServeRecommendationsCommand struct {
	cqrs.CommandMarker
	domain.RecommendationRequest
}

func (ServeRecommendationsCommand) RequestName() string { return "ServeRecommendationsCommand" }

// Recommendations is the output of the get and serve operations.
type Recommendations struct {
	RequestID  string                  `json:"request_id"`
	Strategy   string                  `json:"strategy,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	Experiment string                  `json:"experiment,omitempty"`
	Variant    string                  `json:"variant,omitempty"`
	Cached     bool                    `json:"cached"`
	Items      []domain.Recommendation `json:"items"`
}

// TrackInteractionCommand records one interaction with a served recommendation.
// A repeat of the same (recommendation, session, type) is acknowledged as a duplicate.
type TrackInteractionCommand struct {
	cqrs.CommandMarker

	RecommendationID string                 `json:"recommendation_id" validate:"required"`
	PlayerID         string                 `json:"player_id,omitempty"`
	Type             domain.InteractionType `json:"type"              validate:"required,oneof=impression click play dismiss bet"`
	Value            float64                `json:"value"             validate:"gte=0"`
	SessionID        string                 `json:"session_id"        validate:"required"`
	DeviceType       string                 `json:"device_type,omitempty"`
	OccurredAt       time.Time              `json:"occurred_at"`
}

func (TrackInteractionCommand) RequestName() string { return "TrackInteractionCommand" }

type TrackInteractionResult struct {
	InteractionID string `json:"interaction_id,omitempty"`
	Duplicate     bool   `json:"duplicate"`
}

// UpsertItemOverrideCommand creates or replaces the override of one item.
// A non-nil ExpectedVersion must match the stored version.
type UpsertItemOverrideCommand struct {
	cqrs.CommandMarker

	ItemID          string              `json:"item_id"    validate:"required"`
	Mode            domain.OverrideMode `json:"mode"       validate:"required,oneof=none promote suppress"`
	Boost           float64             `json:"boost"      validate:"gte=0,lte=1"`
	Pinned          bool                `json:"pinned"`
	MaxPerDay       *int                `json:"max_per_day,omitempty" validate:"omitempty,gte=0"`
	Reason          string              `json:"reason"`
	UpdatedBy       string              `json:"updated_by" validate:"required"`
	ExpectedVersion *int64              `json:"expected_version,omitempty"`
}

func (UpsertItemOverrideCommand) RequestName() string { return "UpsertItemOverrideCommand" }

// GetStrategyRankingQuery ranks the registered strategies over [From, To). A zero window
// means the configured look-back ending now. A non-empty Context restricts the metrics.
type GetStrategyRankingQuery struct {
	cqrs.QueryMarker

	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Context string    `json:"context,omitempty"`
}

func (GetStrategyRankingQuery) RequestName() string { return "GetStrategyRankingQuery" }

// GetRecommendationHistoryQuery lists served recommendations of one player.
type GetRecommendationHistoryQuery struct {
	cqrs.QueryMarker
	pagination.Request

	PlayerID  string     `json:"player_id"           validate:"required"`
	Context   string     `json:"context,omitempty"`
	Algorithm string     `json:"algorithm,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	// Sort is a list like "created_at:desc,rank_position:asc".
	Sort string `json:"sort,omitempty"`
}

func (GetRecommendationHistoryQuery) RequestName() string { return "GetRecommendationHistoryQuery" }
