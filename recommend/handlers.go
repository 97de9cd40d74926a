package recommend

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/cqrs/wrapper"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/pagination"
	"github.com/rise-and-shine/recoengine/pipeline"
	"github.com/rise-and-shine/recoengine/repogen"
	"github.com/rise-and-shine/recoengine/sorter"
	"github.com/rise-and-shine/recoengine/specification"
	"github.com/rise-and-shine/recoengine/uow"
)

const CodeInvalidWindow = "INVALID_WINDOW"

// Ranker ranks strategies by recent performance.
type Ranker interface {
	GetStrategyRanking(ctx context.Context, window domain.Window, reqContext string) []domain.StrategyRanking
}

type HandlerDeps struct {
	Config   Config
	Pipeline *Pipeline
	Units    *uow.Factory
	Cache    cache.Cache
	Ranker   Ranker
	Logger   logger.Logger
	Clock    func() time.Time
}

// Handlers implements the recommendation commands and queries.
type Handlers struct {
	cfg      Config
	pipeline *Pipeline
	units    *uow.Factory
	cache    cache.Cache
	ranker   Ranker
	log      logger.Logger
	now      func() time.Time
}

func NewHandlers(d HandlerDeps) *Handlers {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		cfg:      d.Config,
		pipeline: d.Pipeline,
		units:    d.Units,
		cache:    d.Cache,
		ranker:   d.Ranker,
		log:      log.Named("recommend.handlers"),
		now:      now,
	}
}

// Register adds every handler to b with the default wrapper chain.
func (h *Handlers) Register(b *cqrs.RegistryBuilder, log logger.Logger) {
	timeout := h.cfg.HandlerTimeout

	cqrs.Register(b, cqrs.HandlerFunc[GetRecommendationsQuery, Recommendations]{
		ID: "get_recommendations",
		Fn: h.GetRecommendations,
	}, wrapper.Default[GetRecommendationsQuery, Recommendations](log, timeout)...)

	cqrs.Register(b, cqrs.HandlerFunc[ServeRecommendationsCommand, Recommendations]{
		ID: "serve_recommendations",
		Fn: h.ServeRecommendations,
	}, wrapper.Default[ServeRecommendationsCommand, Recommendations](log, timeout)...)

	cqrs.Register(b, cqrs.HandlerFunc[TrackInteractionCommand, TrackInteractionResult]{
		ID: "track_interaction",
		Fn: h.TrackInteraction,
	}, wrapper.Default[TrackInteractionCommand, TrackInteractionResult](log, timeout)...)

	cqrs.Register(b, cqrs.HandlerFunc[UpsertItemOverrideCommand, domain.ItemOverride]{
		ID: "upsert_item_override",
		Fn: h.UpsertItemOverride,
	}, wrapper.Default[UpsertItemOverrideCommand, domain.ItemOverride](log, timeout)...)

	cqrs.Register(b, cqrs.HandlerFunc[GetStrategyRankingQuery, []domain.StrategyRanking]{
		ID: "get_strategy_ranking",
		Fn: h.GetStrategyRanking,
	}, wrapper.Default[GetStrategyRankingQuery, []domain.StrategyRanking](log, timeout)...)

	cqrs.Register(b, cqrs.HandlerFunc[GetRecommendationHistoryQuery, pagination.Response[domain.Recommendation]]{
		ID: "get_recommendation_history",
		Fn: h.GetRecommendationHistory,
	}, wrapper.Default[GetRecommendationHistoryQuery, pagination.Response[domain.Recommendation]](log, timeout)...)
}

func (h *Handlers) GetRecommendations(ctx context.Context, q GetRecommendationsQuery) (Recommendations, error) {
	req := q.RecommendationRequest

	if h.cfg.CacheTTL > 0 && h.cache != nil && !req.Personalized() {
		var cached []domain.Recommendation
		key := RecommendationsKey(req.PlayerID, req.Context, req.Count)
		found, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.log.WithContext(ctx).Warnx(errx.Wrap(err,
				errx.WithCode(cache.CodeCacheUnavailable),
				errx.WithDetails(errx.D{"key": key}),
			))
		}
		if found {
			return cachedList(req, cached), nil
		}
	}

	return h.run(ctx, req)
}

// cachedList serves a cached list stamped with the session and device of req.
func cachedList(req domain.RecommendationRequest, items []domain.Recommendation) Recommendations {
	out := Recommendations{Cached: true, Items: slices.Clone(items)}
	for i := range out.Items {
		out.Items[i].SessionID = req.SessionID
		out.Items[i].DeviceType = req.DeviceType
	}
	if len(items) > 0 {
		out.RequestID = items[0].RequestID
		out.Strategy = items[0].Algorithm
		out.Variant = items[0].ExperimentVariant
	}
	return out
}

func (h *Handlers) run(ctx context.Context, req domain.RecommendationRequest) (Recommendations, error) {
	pc := pipeline.NewContext()
	KeyRequestID.Set(pc, uuid.NewString())

	items, err := h.pipeline.ExecuteWith(ctx, req, pc).Unwrap()
	if err != nil {
		return Recommendations{}, errx.Wrap(err)
	}

	out := Recommendations{RequestID: KeyRequestID.GetOr(pc, ""), Items: items}
	if sel, ok := KeySelection.Get(pc); ok {
		out.Strategy = sel.Strategy.Name()
		out.Reason = string(sel.Reason)
		out.Experiment = sel.Experiment
		out.Variant = sel.Variant
	}
	return out, nil
}

// ServeRecommendations runs the pipeline and stores the list in one unit of work, which
// publishes recommendation.served after commit.
func (h *Handlers) ServeRecommendations(ctx context.Context, c ServeRecommendationsCommand) (Recommendations, error) {
	out, err := h.run(ctx, c.RecommendationRequest)
	if err != nil {
		return Recommendations{}, err
	}

	servedAt := h.now().UTC()
	for i := range out.Items {
		out.Items[i].CreatedAt = servedAt
	}

	res := uow.Execute(ctx, h.units, func(ctx context.Context, u *uow.UnitOfWork) (cqrs.Empty, error) {
		rows := slices.Clone(out.Items)
		uow.AddAll(u, rows)
		u.Track(domain.NewServedList(out.RequestID, c.PlayerID, c.Context, rows))

		_, err := u.SaveChangesAndDispatchEvents(ctx)
		return cqrs.Empty{}, err
	})
	if res.IsFail() {
		return Recommendations{}, res.Err()
	}
	return out, nil
}

func byRecommendationID(id string) specification.Specification[domain.Recommendation] {
	return specification.Eq("id", func(r domain.Recommendation) string { return r.ID }, id)
}

func sameInteraction(c TrackInteractionCommand) specification.Specification[domain.RecommendationInteraction] {
	return specification.New(
		specification.Eq("recommendation_id",
			func(i domain.RecommendationInteraction) string { return i.RecommendationID }, c.RecommendationID),
		specification.Eq("session_id",
			func(i domain.RecommendationInteraction) string { return i.SessionID }, c.SessionID),
		specification.Eq("type",
			func(i domain.RecommendationInteraction) domain.InteractionType { return i.Type }, c.Type),
	)
}

// TrackInteraction records the interaction and moves the click and play flags of the
// recommendation from unset to set. The player's cached lists are dropped afterwards.
func (h *Handlers) TrackInteraction(ctx context.Context, c TrackInteractionCommand) (TrackInteractionResult, error) {
	at := c.OccurredAt
	if at.IsZero() {
		at = h.now()
	}

	var playerID string
	res := uow.Execute(ctx, h.units, func(ctx context.Context, u *uow.UnitOfWork) (TrackInteractionResult, error) {
		rec, err := uow.Repository[domain.Recommendation](u,
			uow.WithNotFoundCode(domain.CodeRecommendationNotFound),
		).Get(ctx, byRecommendationID(c.RecommendationID))
		if err != nil {
			return TrackInteractionResult{}, errx.Wrap(err)
		}
		if c.PlayerID != "" && c.PlayerID != rec.PlayerID {
			return TrackInteractionResult{}, errx.New("interaction player does not match the recommendation",
				errx.WithCode(domain.CodeInteractionMismatch),
				errx.WithType(errx.T_Validation),
				errx.WithDetails(errx.D{"recommendation_id": rec.ID, "player_id": c.PlayerID}),
			)
		}
		playerID = rec.PlayerID

		dup, err := uow.Repository[domain.RecommendationInteraction](u).Exists(ctx, sameInteraction(c))
		if err != nil {
			return TrackInteractionResult{}, errx.Wrap(err)
		}
		if dup {
			return TrackInteractionResult{Duplicate: true}, nil
		}

		interaction := domain.NewInteraction(uuid.NewString(), *rec, c.Type, c.Value, c.SessionID, c.DeviceType, at)
		uow.Add(u, interaction, uow.WithConflictCodes(map[string]string{
			domain.ConstraintInteractionDedup: domain.CodeInteractionDuplicate,
		}))

		var changed bool
		switch c.Type {
		case domain.InteractionClick:
			changed = rec.MarkClicked(at)
		case domain.InteractionPlay:
			changed = rec.MarkPlayed(at)
		case domain.InteractionImpression, domain.InteractionDismiss, domain.InteractionBet:
		}
		if changed {
			uow.Update(u, rec)
		}

		_, err = u.SaveChangesAndDispatchEvents(ctx)
		if err != nil {
			return TrackInteractionResult{}, errx.Wrap(err)
		}
		return TrackInteractionResult{InteractionID: interaction.ID}, nil
	})

	if res.IsFail() {
		if res.Code() == domain.CodeInteractionDuplicate {
			return TrackInteractionResult{Duplicate: true}, nil
		}
		return TrackInteractionResult{}, res.Err()
	}

	out := res.MustValue()
	if !out.Duplicate {
		cache.Invalidate(ctx, h.cache, PlayerPattern(playerID))
	}
	return out, nil
}

// UpsertItemOverride creates or updates an override and drops every cached list and
// catalog entry, since any of them may include the item.
func (h *Handlers) UpsertItemOverride(ctx context.Context, c UpsertItemOverrideCommand) (domain.ItemOverride, error) {
	res := uow.Execute(ctx, h.units, func(ctx context.Context, u *uow.UnitOfWork) (domain.ItemOverride, error) {
		exists, err := uow.Repository[domain.Item](u).Exists(ctx,
			specification.Eq("id", func(i domain.Item) string { return i.ID }, c.ItemID))
		if err != nil {
			return domain.ItemOverride{}, errx.Wrap(err)
		}
		if !exists {
			return domain.ItemOverride{}, errx.New(fmt.Sprintf("item %s does not exist", c.ItemID),
				errx.WithCode(domain.CodeOverrideInvalid),
				errx.WithType(errx.T_NotFound),
				errx.WithDetails(errx.D{"item_id": c.ItemID}),
			)
		}

		current, err := uow.Repository[domain.ItemOverride](u).FirstOrNil(ctx,
			specification.Eq("item_id", func(o domain.ItemOverride) string { return o.ItemID }, c.ItemID))
		if err != nil {
			return domain.ItemOverride{}, errx.Wrap(err)
		}

		created := current == nil
		if created {
			current = &domain.ItemOverride{ItemID: c.ItemID, Version: 1}
		} else if c.ExpectedVersion != nil && *c.ExpectedVersion != current.Version {
			return domain.ItemOverride{}, errx.New("item override was modified concurrently",
				errx.WithCode(uow.CodeTransactionConflict),
				errx.WithType(errx.T_Conflict),
				errx.WithDetails(errx.D{"expected_version": *c.ExpectedVersion, "version": current.Version}),
			)
		}

		current.Mode = c.Mode
		current.Boost = c.Boost
		current.Pinned = c.Pinned
		current.MaxPerDay = c.MaxPerDay
		current.Reason = c.Reason
		current.UpdatedBy = c.UpdatedBy
		current.Changed(created)

		if created {
			uow.Add(u, current)
		} else {
			uow.Update(u, current)
		}
		_, err = u.SaveChangesAndDispatchEvents(ctx)
		if err != nil {
			return domain.ItemOverride{}, errx.Wrap(err)
		}
		return *current, nil
	})
	if res.IsFail() {
		return domain.ItemOverride{}, res.Err()
	}

	cache.Invalidate(ctx, h.cache, PatternAllRecommendations, PatternAllItems)
	return res.MustValue(), nil
}

func (h *Handlers) GetStrategyRanking(ctx context.Context, q GetStrategyRankingQuery) ([]domain.StrategyRanking, error) {
	window := domain.Window{From: q.From, To: q.To}
	if window.To.IsZero() {
		window.To = h.now()
	}
	if window.From.IsZero() {
		window.From = window.To.Add(-h.cfg.RankingWindow)
	}
	if !window.From.Before(window.To) {
		return nil, errx.New("ranking window is empty",
			errx.WithCode(CodeInvalidWindow),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"from": window.From, "to": window.To}),
		)
	}

	return h.ranker.GetStrategyRanking(ctx, window, q.Context), nil
}

// History sort fields.
var historySortFields = []string{"created_at", "score", "rank_position", "algorithm"}

func (h *Handlers) GetRecommendationHistory(
	ctx context.Context,
	q GetRecommendationHistoryQuery,
) (pagination.Response[domain.Recommendation], error) {
	spec := specification.Eq("player_id", func(r domain.Recommendation) string { return r.PlayerID }, q.PlayerID)
	if q.Context != "" {
		spec = spec.And(specification.Eq("context",
			func(r domain.Recommendation) string { return r.Context }, q.Context))
	}
	if q.Algorithm != "" {
		spec = spec.And(specification.Eq("algorithm",
			func(r domain.Recommendation) string { return r.Algorithm }, q.Algorithm))
	}
	if q.From != nil {
		spec = spec.And(specification.OnOrAfter("created_at",
			func(r domain.Recommendation) time.Time { return r.CreatedAt }, *q.From))
	}
	if q.To != nil {
		spec = spec.And(specification.Before("created_at",
			func(r domain.Recommendation) time.Time { return r.CreatedAt }, *q.To))
	}

	order := sorter.MakeFromStr(q.Sort, historySortFields...)
	if len(order) == 0 {
		order = sorter.Make(sorter.ByDesc("created_at"), sorter.By("rank_position"))
	}

	page := q.Request
	page.Normalize()
	spec = spec.WithOrder(order).FromPagination(page)

	repo := repogen.NewBuilder[domain.Recommendation](h.units.DB()).BuildReadOnly()
	items, total, err := repo.ListWithCount(ctx, spec)
	if err != nil {
		return pagination.Response[domain.Recommendation]{}, errx.Wrap(err)
	}
	return pagination.NewResponse(items, int64(total), page), nil
}
