package selector

import "github.com/rise-and-shine/recoengine/domain"

// HeuristicsConfig tunes profile-based selection.
type HeuristicsConfig struct {
	// Players with fewer sessions than this are cold-start.
	ColdStartMaxSessions    int `yaml:"cold_start_max_sessions"    default:"3"   validate:"gte=0"`
	HighActivityMinGames    int `yaml:"high_activity_min_games"    default:"100" validate:"gte=0"`
	HighActivityMinSessions int `yaml:"high_activity_min_sessions" default:"20"  validate:"gte=0"`
	// More distinct preferred categories than this selects the hybrid strategy.
	BroadCategoryThreshold int `yaml:"broad_category_threshold" default:"3" validate:"gte=0"`
	// ContextDefaults maps a request context onto a strategy name.
	ContextDefaults map[string]string `yaml:"context_defaults"`
}

type Config struct {
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	// Fallback is used when nothing else applies or selection fails.
	Fallback string `yaml:"fallback" default:"collaborative_filtering"`
}

// DefaultContextDefaults is used when the configuration provides no table.
func DefaultContextDefaults() map[string]string {
	return map[string]string{
		domain.ContextLobby:     "hybrid",
		domain.ContextGameEnd:   "content_based",
		domain.ContextPromotion: "popularity",
	}
}
