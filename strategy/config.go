package strategy

import "time"

// Config tunes the built-in strategies.
type Config struct {
	ModelVersion  string              `yaml:"model_version" default:"2026.10"`
	Collaborative CollaborativeConfig `yaml:"collaborative"`
	Hybrid        HybridConfig        `yaml:"hybrid"`
	Bandit        BanditConfig        `yaml:"bandit"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
}

type HybridConfig struct {
	CollaborativeWeight float64 `yaml:"collaborative_weight" default:"0.4" validate:"gte=0"`
	ContentWeight       float64 `yaml:"content_weight"       default:"0.4" validate:"gte=0"`
	PopularityWeight    float64 `yaml:"popularity_weight"    default:"0.2" validate:"gte=0"`
}

type BanditConfig struct {
	// Exploration scales the UCB1 confidence bonus.
	Exploration float64 `yaml:"exploration" default:"0.5" validate:"gte=0"`
}

type CollaborativeConfig struct {
	// PopularityBlend is the share of popularity mixed into neighbourhood scores.
	PopularityBlend float64 `yaml:"popularity_blend" default:"0.2" validate:"gte=0,lte=1"`
}

type EmbeddingConfig struct {
	// Endpoint of the model-serving scorer. Empty means local cosine similarity only.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"  default:"300ms"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"      default:"3"`
	Interval         time.Duration `yaml:"interval"          default:"1m"`
	OpenTimeout      time.Duration `yaml:"open_timeout"      default:"30s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
}
