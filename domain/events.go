package domain

const (
	EventRecommendationServed  = "recommendation.served"
	EventRecommendationClicked = "recommendation.clicked"
	EventRecommendationPlayed  = "recommendation.played"
	EventInteractionRecorded   = "interaction.recorded"
	EventItemOverrideChanged   = "item_override.changed"
)

type ServedItem struct {
	RecommendationID string  `json:"recommendation_id"`
	ItemID           string  `json:"item_id"`
	Score            float64 `json:"score"`
	RankPosition     int     `json:"rank_position"`
}

type RecommendationServed struct {
	RequestID         string       `json:"request_id"`
	PlayerID          string       `json:"player_id"`
	Context           string       `json:"context"`
	Algorithm         string       `json:"algorithm"`
	ExperimentVariant string       `json:"experiment_variant,omitempty"`
	Items             []ServedItem `json:"items"`
}

type RecommendationInteracted struct {
	RecommendationID string `json:"recommendation_id"`
	PlayerID         string `json:"player_id"`
	ItemID           string `json:"item_id"`
	Algorithm        string `json:"algorithm"`
	RankPosition     int    `json:"rank_position"`
	SessionID        string `json:"session_id,omitempty"`
}

type InteractionRecorded struct {
	InteractionID    string  `json:"interaction_id"`
	RecommendationID string  `json:"recommendation_id"`
	PlayerID         string  `json:"player_id"`
	ItemID           string  `json:"item_id"`
	Type             string  `json:"type"`
	Value            float64 `json:"value"`
	SessionID        string  `json:"session_id"`
}

type ItemOverrideChanged struct {
	ItemID    string  `json:"item_id"`
	Mode      string  `json:"mode"`
	Boost     float64 `json:"boost"`
	Pinned    bool    `json:"pinned"`
	UpdatedBy string  `json:"updated_by"`
	Created   bool    `json:"created"`
}
