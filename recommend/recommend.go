// Package recommend assembles the recommendation pipeline and the commands and queries
// served on top of it.
//
// The pipeline runs ValidatePlayer, ExtractFeatures, SelectAlgorithm,
// GenerateRecommendations, ApplyBusinessRules, Diversify and CacheResult, in that order.
package recommend

import (
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/pipeline"
)

// Pipeline turns a request into the final ranked list.
type Pipeline = pipeline.Pipeline[domain.RecommendationRequest, []domain.Recommendation]

// PipelineDeps are the collaborators of the pipeline steps.
type PipelineDeps struct {
	Config   Config
	Features featurestore.Store
	Selector Selector
	// Cache receives finished lists. Nil disables result caching.
	Cache cache.Cache
	// Served enables MaxPerDay override caps. Nil disables them.
	Served  ServedCounter
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

// NewPipeline compiles the business rules and builds the pipeline.
func NewPipeline(d PipelineDeps) (*Pipeline, error) {
	rules, err := CompileRules(d.Config.Rules)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := d.Clock
	if now == nil {
		now = time.Now
	}

	s := &steps{
		cfg:      d.Config,
		features: d.Features,
		selector: d.Selector,
		cache:    d.Cache,
		served:   d.Served,
		rules:    rules,
		log:      log.Named("recommend"),
		metrics:  d.Metrics,
		now:      now,
	}

	b := pipeline.NewBuilder[domain.RecommendationRequest, []domain.Recommendation]("recommendation", log, d.Metrics).
		Add(
			pipeline.NewStep(StepValidatePlayer, 10, s.validatePlayer),
			pipeline.NewStep(StepExtractFeatures, 20, s.extractFeatures),
			pipeline.NewStep(StepSelectAlgorithm, 30, s.selectAlgorithm),
			pipeline.NewStep(StepGenerateRecommendations, 40, s.generate),
			pipeline.NewStep(StepApplyBusinessRules, 50, s.applyBusinessRules),
			pipeline.When(pipeline.NewStep(StepDiversify, 60, s.diversify), s.shouldDiversify),
			pipeline.NewStep(StepCacheResult, 70, s.cacheResult),
		)
	for _, name := range d.Config.DisabledSteps {
		b.Configure(name, pipeline.Disable)
	}

	p, err := b.Build()
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return p, nil
}
