// Package selector chooses a strategy per request and ranks strategies by performance.
//
// Selection never fails: any error or panic degrades to the fallback strategy.
package selector

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/experiment"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/strategy"
)

// Reason explains why a strategy was selected.
type Reason string

const (
	ReasonOverride       Reason = "override"
	ReasonExperiment     Reason = "experiment"
	ReasonColdStart      Reason = "cold_start"
	ReasonHighActivity   Reason = "high_activity"
	ReasonBroadInterests Reason = "broad_interests"
	ReasonContextDefault Reason = "context_default"
	ReasonDefault        Reason = "default"
	ReasonFallback       Reason = "fallback"
)

// Selection is the outcome of SelectStrategy.
type Selection struct {
	Strategy   strategy.Strategy
	Reason     Reason
	Experiment string
	Variant    string
}

// FeatureReader supplies player features.
type FeatureReader interface {
	GetPlayerFeatures(ctx context.Context, playerID string) (domain.PlayerFeatures, error)
}

// ExperimentLookup supplies experiment assignments.
type ExperimentLookup interface {
	ActiveFor(ctx context.Context, playerID, reqContext string) (experiment.Assignment, bool, error)
	GetPlayerVariant(ctx context.Context, playerID, experimentName string) (domain.ExperimentVariant, bool, error)
}

// Selector is immutable and safe for concurrent use.
type Selector struct {
	registry    *strategy.Registry
	features    FeatureReader
	experiments ExperimentLookup
	cfg         Config
	log         logger.Logger
	metrics     *metrics.Metrics
}

func New(
	registry *strategy.Registry,
	features FeatureReader,
	experiments ExperimentLookup,
	cfg Config,
	log logger.Logger,
	m *metrics.Metrics,
) (*Selector, error) {
	if cfg.Fallback == "" {
		cfg.Fallback = string(strategy.KindCollaborative)
	}
	if _, ok := registry.Get(cfg.Fallback); !ok {
		return nil, errx.New(fmt.Sprintf("fallback strategy %q is not registered", cfg.Fallback),
			errx.WithCode(domain.CodeStrategyNotFound),
		)
	}
	if cfg.Heuristics.ContextDefaults == nil {
		cfg.Heuristics.ContextDefaults = DefaultContextDefaults()
	}

	return &Selector{
		registry:    registry,
		features:    features,
		experiments: experiments,
		cfg:         cfg,
		log:         log.Named("selector"),
		metrics:     m,
	}, nil
}

// SelectStrategy reads the player's features and selects a strategy for req.
// A player without features is treated as cold-start.
func (s *Selector) SelectStrategy(ctx context.Context, req domain.RecommendationRequest) (sel Selection) {
	defer s.guard(ctx, req, &sel)

	chosen, ok, err := s.beforeProfile(ctx, req)
	if err != nil {
		return s.fail(ctx, req, err)
	}
	if ok {
		return s.done(chosen)
	}

	f, err := s.features.GetPlayerFeatures(ctx, req.PlayerID)
	if err != nil {
		if !errx.IsCodeIn(err, featurestore.CodeFeaturesNotFound) {
			return s.fail(ctx, req, err)
		}
		f = domain.DefaultNewPlayerFeatures(req.PlayerID)
	}
	return s.done(s.byProfile(req, f))
}

// SelectWithFeatures selects a strategy for req using features the caller already loaded.
func (s *Selector) SelectWithFeatures(
	ctx context.Context,
	req domain.RecommendationRequest,
	f domain.PlayerFeatures,
) (sel Selection) {
	defer s.guard(ctx, req, &sel)

	chosen, ok, err := s.beforeProfile(ctx, req)
	if err != nil {
		return s.fail(ctx, req, err)
	}
	if ok {
		return s.done(chosen)
	}
	return s.done(s.byProfile(req, f))
}

// SelectStrategyForExperiment resolves the player's variant in the named experiment.
// It falls back when the experiment does not apply or its algorithm is unknown.
func (s *Selector) SelectStrategyForExperiment(ctx context.Context, playerID, experimentName string) (sel Selection) {
	req := domain.RecommendationRequest{PlayerID: playerID}
	defer s.guard(ctx, req, &sel)

	variant, ok, err := s.experiments.GetPlayerVariant(ctx, playerID, experimentName)
	if err != nil {
		return s.fail(ctx, req, err)
	}
	if !ok {
		return s.done(s.fallback(ReasonFallback))
	}

	st, ok := s.registry.Get(variant.Algorithm)
	if !ok {
		return s.fail(ctx, req, unknownStrategy(variant.Algorithm))
	}
	return s.done(Selection{Strategy: st, Reason: ReasonExperiment, Experiment: experimentName, Variant: variant.Name})
}

// beforeProfile applies the override and experiment rules.
func (s *Selector) beforeProfile(ctx context.Context, req domain.RecommendationRequest) (Selection, bool, error) {
	if req.AlgorithmOverride != "" {
		st, ok := s.registry.Get(req.AlgorithmOverride)
		if !ok {
			return Selection{}, false, unknownStrategy(req.AlgorithmOverride)
		}
		return Selection{Strategy: st, Reason: ReasonOverride}, true, nil
	}

	if s.experiments == nil {
		return Selection{}, false, nil
	}
	a, ok, err := s.experiments.ActiveFor(ctx, req.PlayerID, req.Context)
	if err != nil || !ok {
		return Selection{}, false, err
	}
	st, found := s.registry.Get(a.Variant.Algorithm)
	if !found {
		return Selection{}, false, unknownStrategy(a.Variant.Algorithm)
	}
	return Selection{Strategy: st, Reason: ReasonExperiment, Experiment: a.Experiment, Variant: a.Variant.Name}, true, nil
}

// byProfile applies the heuristics in priority order.
func (s *Selector) byProfile(req domain.RecommendationRequest, f domain.PlayerFeatures) Selection {
	h := s.cfg.Heuristics

	switch {
	case f.IsNewPlayer || f.TotalSessions < h.ColdStartMaxSessions:
		return s.pick(string(strategy.KindContentBased), ReasonColdStart)
	case f.TotalGamesPlayed >= h.HighActivityMinGames && f.TotalSessions >= h.HighActivityMinSessions:
		return s.pick(string(strategy.KindCollaborative), ReasonHighActivity)
	case f.DistinctCategories() > h.BroadCategoryThreshold:
		return s.pick(string(strategy.KindHybrid), ReasonBroadInterests)
	}

	if name, ok := h.ContextDefaults[req.Context]; ok {
		return s.pick(name, ReasonContextDefault)
	}
	return s.fallback(ReasonDefault)
}

func (s *Selector) pick(name string, reason Reason) Selection {
	st, ok := s.registry.Get(name)
	if !ok {
		return s.fallback(ReasonFallback)
	}
	return Selection{Strategy: st, Reason: reason}
}

func (s *Selector) fallback(reason Reason) Selection {
	return Selection{Strategy: s.registry.MustGet(s.cfg.Fallback), Reason: reason}
}

func (s *Selector) done(sel Selection) Selection {
	s.metrics.IncSelection(sel.Strategy.Name(), string(sel.Reason))
	return sel
}

func (s *Selector) fail(ctx context.Context, req domain.RecommendationRequest, err error) Selection {
	s.log.WithContext(ctx).With(
		"player_id", req.PlayerID,
		"context", req.Context,
	).Warnx(errx.Wrap(err, errx.WithDetails(errx.D{"fallback": s.cfg.Fallback})))
	return s.done(s.fallback(ReasonFallback))
}

// guard turns a panic during selection into the fallback selection.
func (s *Selector) guard(ctx context.Context, req domain.RecommendationRequest, sel *Selection) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = errx.New(fmt.Sprintf("panic during strategy selection: %v", r))
	}
	*sel = s.fail(ctx, req, err)
}

func unknownStrategy(name string) error {
	return errx.New(fmt.Sprintf("strategy %q is not registered", name),
		errx.WithCode(domain.CodeStrategyNotFound),
		errx.WithType(errx.T_NotFound),
	)
}
