package recommend

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/pipeline"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
	"github.com/rise-and-shine/recoengine/val"
)

// Step names and positions.
const (
	StepValidatePlayer          = "validate_player"
	StepExtractFeatures         = "extract_features"
	StepSelectAlgorithm         = "select_algorithm"
	StepGenerateRecommendations = "generate_recommendations"
	StepApplyBusinessRules      = "apply_business_rules"
	StepDiversify               = "diversify"
	StepCacheResult             = "cache_result"
)

// Selector is the part of selector.Selector the pipeline uses.
type Selector interface {
	SelectWithFeatures(ctx context.Context, req domain.RecommendationRequest, f domain.PlayerFeatures) selector.Selection
}

type steps struct {
	cfg      Config
	features featurestore.Store
	selector Selector
	cache    cache.Cache
	served   ServedCounter
	rules    *Rules
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// validatePlayer fails closed: unknown and inactive players are rejected.
func (s *steps) validatePlayer(
	ctx context.Context,
	req domain.RecommendationRequest,
	pc *pipeline.Context,
) (domain.RecommendationRequest, error) {
	err := val.ValidateSchema(req)
	if err != nil {
		return req, err
	}

	p, err := s.features.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		return req, errx.Wrap(err)
	}
	if !p.IsActive() {
		return req, errx.New(fmt.Sprintf("player %s is %s", p.ID, p.Status),
			errx.WithCode(domain.CodePlayerInactive),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"player_id": p.ID, "status": string(p.Status)}),
		)
	}

	KeyPlayer.Set(pc, p)
	return req, nil
}

// extractFeatures fails open on player features: a missing or unreadable snapshot becomes
// the new-player profile. The item catalog is required.
func (s *steps) extractFeatures(
	ctx context.Context,
	req domain.RecommendationRequest,
	pc *pipeline.Context,
) (domain.RecommendationRequest, error) {
	f, err := s.features.GetPlayerFeatures(ctx, req.PlayerID)
	if err != nil {
		if !errx.IsCodeIn(err, featurestore.CodeFeaturesNotFound) {
			s.log.WithContext(ctx).With("player_id", req.PlayerID).Warnx(err)
		}
		f = domain.DefaultNewPlayerFeatures(req.PlayerID)
	}
	KeyFeatures.Set(pc, f)

	items, err := s.features.ListActiveItems(ctx)
	if err != nil {
		return req, errx.Wrap(err)
	}
	KeyItems.Set(pc, items)

	overrides, err := s.features.ListOverrides(ctx)
	if err != nil {
		s.log.WithContext(ctx).Warnx(err)
		overrides = map[string]domain.ItemOverride{}
	}
	KeyOverrides.Set(pc, overrides)

	return req, nil
}

// selectAlgorithm never fails; the selector degrades to its fallback strategy.
func (s *steps) selectAlgorithm(
	ctx context.Context,
	req domain.RecommendationRequest,
	pc *pipeline.Context,
) (domain.RecommendationRequest, error) {
	f, err := KeyFeatures.Require(pc)
	if err != nil {
		return req, err
	}

	sel := s.selector.SelectWithFeatures(ctx, req, f)
	KeySelection.Set(pc, sel)
	KeyStrategy.Set(pc, sel.Strategy)
	return req, nil
}

func (s *steps) generate(
	ctx context.Context,
	req domain.RecommendationRequest,
	pc *pipeline.Context,
) (Candidates, error) {
	if _, err := KeyPlayer.Require(pc); err != nil {
		return Candidates{}, err
	}
	f, err := KeyFeatures.Require(pc)
	if err != nil {
		return Candidates{}, err
	}
	items, err := KeyItems.Require(pc)
	if err != nil {
		return Candidates{}, err
	}
	st, err := KeyStrategy.Require(pc)
	if err != nil {
		return Candidates{}, err
	}

	wide := req
	wide.Count = req.Count * max(1, s.cfg.OverfetchFactor)

	recs, err := st.GenerateRecommendations(ctx, wide, f, items)
	if err != nil {
		return Candidates{}, errx.Wrap(err, errx.WithDetails(errx.D{"strategy": st.Name()}))
	}

	out := Candidates{Request: req, Items: make([]Candidate, 0, len(recs))}
	for _, r := range recs {
		out.Items = append(out.Items, Candidate{Recommendation: r})
	}
	return out, nil
}

func (s *steps) applyBusinessRules(ctx context.Context, c Candidates, pc *pipeline.Context) (Candidates, error) {
	f, err := KeyFeatures.Require(pc)
	if err != nil {
		return c, err
	}
	st, err := KeyStrategy.Require(pc)
	if err != nil {
		return c, err
	}
	overrides := KeyOverrides.GetOr(pc, nil)
	catalog := make(map[string]domain.ItemFeatures)
	for _, item := range KeyItems.GetOr(pc, nil) {
		catalog[item.ItemID] = item
	}

	req := c.Request
	log := s.log.WithContext(ctx).With("player_id", req.PlayerID)
	dropped := func(item domain.ItemFeatures) bool {
		rule, drop, err := s.rules.Drop(item, f, req)
		if err != nil {
			log.Warnx(err)
			return false
		}
		if drop {
			log.With("rule", rule, "item_id", item.ItemID).Debug("candidate dropped by rule")
		}
		return drop
	}

	kept := make([]Candidate, 0, len(c.Items))
	present := make(map[string]struct{}, len(c.Items))
	for _, cand := range c.Items {
		id := cand.Recommendation.ItemID
		if _, dup := present[id]; dup || req.IsExcluded(id) {
			continue
		}
		o, hasOverride := overrides[id]
		if hasOverride && o.Suppressed() {
			continue
		}
		if item, ok := catalog[id]; ok && dropped(item) {
			continue
		}
		if hasOverride && o.Promoted() {
			cand = promote(cand, o)
		}
		kept = append(kept, cand)
		present[id] = struct{}{}
	}

	// Pinned promotions are served even when the strategy did not pick them.
	for _, id := range slices.Sorted(maps.Keys(overrides)) {
		o := overrides[id]
		if !o.Promoted() || !o.Pinned || req.IsExcluded(id) {
			continue
		}
		if _, ok := present[id]; ok {
			continue
		}
		item, ok := catalog[id]
		if !ok || dropped(item) {
			continue
		}
		kept = append(kept, promote(Candidate{Recommendation: injected(req, f, st, item)}, o))
		present[id] = struct{}{}
	}

	kept = s.applyDailyCaps(ctx, kept, overrides)
	sortCandidates(kept)
	kept = capPer(kept, s.cfg.MaxPerProvider, func(r domain.Recommendation) string { return r.Provider })
	kept = capPer(kept, s.cfg.MaxPerCategory, func(r domain.Recommendation) string { return r.Category })

	return Candidates{Request: req, Items: kept}, nil
}

func promote(c Candidate, o domain.ItemOverride) Candidate {
	c.Recommendation.Score = strategy.Clamp(c.Recommendation.Score + o.Boost)
	c.Pinned = o.Pinned
	c.Recommendation.Metadata = maps.Clone(c.Recommendation.Metadata)
	if c.Recommendation.Metadata == nil {
		c.Recommendation.Metadata = map[string]any{}
	}
	c.Recommendation.Metadata["promoted"] = true
	return c
}

func injected(
	req domain.RecommendationRequest,
	f domain.PlayerFeatures,
	st strategy.Strategy,
	item domain.ItemFeatures,
) domain.Recommendation {
	return domain.Recommendation{
		ID:        uuid.NewString(),
		PlayerID:  f.PlayerID,
		ItemID:    item.ItemID,
		Algorithm: st.Name(),
		Context:   req.Context,
		Category:  item.Category,
		Provider:  item.Provider,
		Metadata:  map[string]any{"kind": string(st.Kind())},
	}
}

// applyDailyCaps drops promoted items that already reached their MaxPerDay. Counting
// failures keep every candidate.
func (s *steps) applyDailyCaps(ctx context.Context, items []Candidate, overrides map[string]domain.ItemOverride) []Candidate {
	if s.served == nil {
		return items
	}

	var capped []string
	for _, c := range items {
		if o, ok := overrides[c.Recommendation.ItemID]; ok && o.MaxPerDay != nil {
			capped = append(capped, c.Recommendation.ItemID)
		}
	}
	if len(capped) == 0 {
		return items
	}

	counts, err := s.served.ServedSince(ctx, capped, startOfDay(s.now()))
	if err != nil {
		s.log.WithContext(ctx).Warnx(err)
		return items
	}

	return slices.DeleteFunc(items, func(c Candidate) bool {
		o, ok := overrides[c.Recommendation.ItemID]
		return ok && o.MaxPerDay != nil && counts[c.Recommendation.ItemID] >= *o.MaxPerDay
	})
}

// capPer keeps at most limit candidates per group, in order. Zero means no limit.
func capPer(items []Candidate, limit int, group func(domain.Recommendation) string) []Candidate {
	if limit <= 0 {
		return items
	}
	seen := make(map[string]int)
	out := items[:0]
	for _, c := range items {
		g := group(c.Recommendation)
		if g != "" && seen[g] >= limit {
			continue
		}
		seen[g]++
		out = append(out, c)
	}
	return out
}

// diversify reranks the unpinned candidates; pinned ones keep the top positions.
func (s *steps) diversify(_ context.Context, c Candidates, _ *pipeline.Context) (Candidates, error) {
	lambda := strategy.Clamp(c.Request.Float("diversity_lambda", s.cfg.DiversityLambda))

	split := 0
	for split < len(c.Items) && c.Items[split].Pinned {
		split++
	}

	items := slices.Clone(c.Items[:split])
	items = append(items, mmr(c.Items[split:], lambda)...)
	return Candidates{Request: c.Request, Items: items}, nil
}

func (s *steps) shouldDiversify(_ context.Context, input any, _ *pipeline.Context) bool {
	c, ok := input.(Candidates)
	return ok && c.Len() > s.cfg.DiversifyMinCandidates
}

// cacheResult trims the candidates to the requested count, stamps the request data and
// caches the list for requests that are not personalised.
func (s *steps) cacheResult(ctx context.Context, c Candidates, pc *pipeline.Context) ([]domain.Recommendation, error) {
	st, err := KeyStrategy.Require(pc)
	if err != nil {
		return nil, err
	}
	sel := KeySelection.GetOr(pc, selector.Selection{Strategy: st})
	f := KeyFeatures.GetOr(pc, domain.DefaultNewPlayerFeatures(c.Request.PlayerID))
	requestID := KeyRequestID.GetOr(pc, "")
	if requestID == "" {
		requestID = uuid.NewString()
		KeyRequestID.Set(pc, requestID)
	}

	req := c.Request
	n := min(req.Count, len(c.Items))
	out := make([]domain.Recommendation, 0, n)
	for i := range n {
		r := c.Items[i].Recommendation
		r.RankPosition = i + 1
		r.RequestID = requestID
		r.PlayerID = req.PlayerID
		r.Context = req.Context
		r.SessionID = req.SessionID
		r.DeviceType = req.DeviceType
		r.ExperimentVariant = sel.Variant
		r.ModelVersion = st.Version()
		r.FeatureSnapshot = f.Snapshot()
		r.Metadata = maps.Clone(r.Metadata)
		if r.Metadata == nil {
			r.Metadata = map[string]any{}
		}
		r.Metadata["selection_reason"] = string(sel.Reason)
		if c.Items[i].Pinned {
			r.Metadata["pinned"] = true
		}
		out = append(out, r)
	}

	if s.cfg.CacheTTL > 0 && s.cache != nil && !req.Personalized() {
		key := RecommendationsKey(req.PlayerID, req.Context, req.Count)
		err = s.cache.Set(ctx, key, sessionless(out), s.cfg.CacheTTL)
		if err != nil {
			s.log.WithContext(ctx).Warnx(errx.Wrap(err,
				errx.WithCode(cache.CodeCacheUnavailable),
				errx.WithDetails(errx.D{"key": key}),
			))
		}
	}

	s.metrics.ObserveServed(st.Name(), req.Context, len(out))
	return out, nil
}

// sessionless copies list without the caller's session and device; cached lists are
// shared by every session of the player.
func sessionless(list []domain.Recommendation) []domain.Recommendation {
	out := slices.Clone(list)
	for i := range out {
		out[i].SessionID = ""
		out[i].DeviceType = ""
	}
	return out
}
