// Package experiment looks up running A/B experiments and the variant a player is pinned to.
//
// A player's variant is assigned once, persisted, and afterwards only looked up, so the
// player sees the same algorithm for the lifetime of the experiment.
package experiment

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/repogen"
	"github.com/rise-and-shine/recoengine/specification"
	"github.com/samber/lo"
	"github.com/uptrace/bun"
)

const keyActive = "experiments:active"

// Assignment is the experiment and variant that apply to one request.
type Assignment struct {
	Experiment string
	Variant    domain.ExperimentVariant
}

// Service resolves experiments and variants.
type Service struct {
	idb   bun.IDB
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
	now   func() time.Time
}

type Option func(*Service)

// WithCache caches the list of active experiments for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(idb bun.IDB, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		idb: idb,
		log: log.Named("experiment"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveFor returns the assignment of the first running experiment that targets reqContext,
// in experiment name order. It reports false when no experiment applies.
func (s *Service) ActiveFor(ctx context.Context, playerID, reqContext string) (Assignment, bool, error) {
	running, err := s.running(ctx)
	if err != nil {
		return Assignment{}, false, errx.Wrap(err)
	}

	now := s.now()
	for _, exp := range running {
		if !exp.RunningAt(now) || !exp.Targets(reqContext) {
			continue
		}
		variant, ok, err := s.variantOf(ctx, exp, playerID)
		if err != nil {
			return Assignment{}, false, errx.Wrap(err)
		}
		if ok {
			return Assignment{Experiment: exp.Name, Variant: variant}, true, nil
		}
	}
	return Assignment{}, false, nil
}

// GetPlayerVariant returns the player's variant in the named experiment, assigning one if
// the player has none yet. It reports false when the experiment is unknown, not running,
// or has no usable variants.
func (s *Service) GetPlayerVariant(
	ctx context.Context,
	playerID, experimentName string,
) (domain.ExperimentVariant, bool, error) {
	repo := repogen.NewBuilder[domain.Experiment](s.idb).
		WithNotFoundCode(domain.CodeExperimentNotFound).
		BuildReadOnly()

	exp, err := repo.FirstOrNil(ctx, specification.Eq("name",
		func(e domain.Experiment) string { return e.Name }, experimentName))
	if err != nil {
		return domain.ExperimentVariant{}, false, errx.Wrap(err)
	}
	if exp == nil || !exp.RunningAt(s.now()) {
		return domain.ExperimentVariant{}, false, nil
	}
	return s.variantOf(ctx, *exp, playerID)
}

func (s *Service) running(ctx context.Context) ([]domain.Experiment, error) {
	return cache.GetOrSet(ctx, s.cache, keyActive, s.ttl, func(ctx context.Context) ([]domain.Experiment, error) {
		repo := repogen.NewBuilder[domain.Experiment](s.idb).BuildReadOnly()
		return repo.List(ctx, specification.
			Eq("active", func(e domain.Experiment) bool { return e.Active }, true).
			ApplyOrderBy("name"))
	})
}

func (s *Service) variantOf(
	ctx context.Context,
	exp domain.Experiment,
	playerID string,
) (domain.ExperimentVariant, bool, error) {
	stored, err := s.storedAssignment(ctx, exp.Name, playerID)
	if err != nil {
		return domain.ExperimentVariant{}, false, errx.Wrap(err)
	}
	if stored != nil {
		v, ok := exp.Variant(stored.Variant)
		if !ok {
			s.log.WithContext(ctx).With(
				"experiment", exp.Name,
				"variant", stored.Variant,
			).Warn("stored variant no longer exists")
		}
		return v, ok, nil
	}

	v, ok := Pick(exp, playerID)
	if !ok {
		return domain.ExperimentVariant{}, false, nil
	}

	_, err = s.idb.NewInsert().
		Model(&domain.ExperimentAssignment{
			ID:             uuid.NewString(),
			ExperimentName: exp.Name,
			PlayerID:       playerID,
			Variant:        v.Name,
			AssignedAt:     s.now().UTC(),
		}).
		On("CONFLICT (experiment_name, player_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.ExperimentVariant{}, false, errx.Wrap(err)
	}

	// A concurrent writer may have won the insert; its row is authoritative.
	stored, err = s.storedAssignment(ctx, exp.Name, playerID)
	if err != nil {
		return domain.ExperimentVariant{}, false, errx.Wrap(err)
	}
	if stored != nil {
		v, ok = exp.Variant(stored.Variant)
	}
	return v, ok, nil
}

func (s *Service) storedAssignment(ctx context.Context, experimentName, playerID string) (*domain.ExperimentAssignment, error) {
	repo := repogen.NewBuilder[domain.ExperimentAssignment](s.idb).BuildReadOnly()
	return repo.FirstOrNil(ctx, specification.New(
		specification.Eq("experiment_name",
			func(a domain.ExperimentAssignment) string { return a.ExperimentName }, experimentName),
		specification.Eq("player_id",
			func(a domain.ExperimentAssignment) string { return a.PlayerID }, playerID),
	))
}

// Pick deterministically maps a player onto a weighted variant. Variants with a
// non-positive weight never receive players.
func Pick(exp domain.Experiment, playerID string) (domain.ExperimentVariant, bool) {
	variants := lo.Filter(exp.Variants, func(v domain.ExperimentVariant, _ int) bool { return v.Weight > 0 })
	total := lo.SumBy(variants, func(v domain.ExperimentVariant) int { return v.Weight })
	if total == 0 {
		return domain.ExperimentVariant{}, false
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(exp.Name + ":" + playerID))
	bucket := int(h.Sum32() % uint32(total)) //nolint:gosec // total is a small positive sum of weights

	for _, v := range variants {
		if bucket < v.Weight {
			return v, true
		}
		bucket -= v.Weight
	}
	return variants[len(variants)-1], true
}
