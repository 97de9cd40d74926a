package recommend

import "time"

// Config tunes the recommendation pipeline and its handlers.
type Config struct {
	// OverfetchFactor multiplies Count when asking the strategy for candidates, so the
	// business rules can drop items and still fill the list.
	OverfetchFactor int `yaml:"overfetch_factor" default:"3" validate:"gte=1,lte=10"`

	// Diversify runs only when there are more candidates than this.
	DiversifyMinCandidates int     `yaml:"diversify_min_candidates" default:"5"   validate:"gte=0"`
	DiversityLambda        float64 `yaml:"diversity_lambda"         default:"0.7" validate:"gte=0,lte=1"`

	// Zero means unlimited.
	MaxPerProvider int `yaml:"max_per_provider" default:"0" validate:"gte=0"`
	MaxPerCategory int `yaml:"max_per_category" default:"0" validate:"gte=0"`

	Rules []RuleConfig `yaml:"rules" validate:"dive"`

	// DisabledSteps names steps that stay in the pipeline but never run.
	DisabledSteps []string `yaml:"disabled_steps"`

	// CacheTTL is how long a served list stays cached. Zero disables result caching.
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`

	// HandlerTimeout bounds each command and query. Zero means no timeout.
	HandlerTimeout time.Duration `yaml:"handler_timeout" default:"2s"`

	// RankingWindow is the look-back used by GetStrategyRanking when the query has none.
	RankingWindow time.Duration `yaml:"ranking_window" default:"168h"`
}

// RuleConfig is a business rule written in CEL. Candidates for which DropIf evaluates to
// true are removed. The expression sees item, player and request maps.
type RuleConfig struct {
	Name   string `yaml:"name"    validate:"required"`
	DropIf string `yaml:"drop_if" validate:"required"`
}
