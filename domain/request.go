package domain

import (
	"slices"

	"github.com/spf13/cast"
)

// Well-known request contexts.
const (
	ContextLobby     = "lobby"
	ContextGameEnd   = "game_end"
	ContextPromotion = "promotion"
)

// RecommendationRequest asks for Count ranked items for one player in one context.
// It is an immutable input and is never persisted.
type RecommendationRequest struct {
	PlayerID          string         `json:"player_id"                     validate:"required"`
	Count             int            `json:"count"                         validate:"gte=1,lte=100"`
	Context           string         `json:"context"                       validate:"required,slug"`
	AlgorithmOverride string         `json:"algorithm_override,omitempty"`
	ExcludedItemIDs   []string       `json:"excluded_item_ids,omitempty"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	SessionID         string         `json:"session_id,omitempty"`
	DeviceType        string         `json:"device_type,omitempty"`
}

// IsExcluded reports whether itemID is in the request's exclusion set.
func (r RecommendationRequest) IsExcluded(itemID string) bool {
	return slices.Contains(r.ExcludedItemIDs, itemID)
}

// Personalized reports whether the request carries inputs that make its result unsuitable
// for the shared cache.
func (r RecommendationRequest) Personalized() bool {
	return r.AlgorithmOverride != "" || len(r.ExcludedItemIDs) > 0 || len(r.Parameters) > 0
}

// Float returns a numeric parameter, or def when it is absent or not numeric.
func (r RecommendationRequest) Float(name string, def float64) float64 {
	v, ok := r.Parameters[name]
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Bool returns a boolean parameter, or def when it is absent or not a boolean.
func (r RecommendationRequest) Bool(name string, def bool) bool {
	v, ok := r.Parameters[name]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// String returns a string parameter, or def when it is absent.
func (r RecommendationRequest) String(name, def string) string {
	v, ok := r.Parameters[name]
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return def
	}
	return s
}
