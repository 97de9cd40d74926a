// Package featurestore reads player and item snapshots. Features are refreshed out of band,
// so staleness up to the cache TTL is acceptable.
package featurestore

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/repogen"
	"github.com/rise-and-shine/recoengine/specification"
	"github.com/uptrace/bun"
)

const CodeFeaturesNotFound = "FEATURES_NOT_FOUND"

// Store is the read side used by the pipeline and the strategies.
type Store interface {
	// GetPlayer fails with PLAYER_NOT_FOUND for unknown players.
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	// GetPlayerFeatures fails with FEATURES_NOT_FOUND when no snapshot exists yet.
	GetPlayerFeatures(ctx context.Context, playerID string) (domain.PlayerFeatures, error)
	// ListActiveItems returns the features of every active item, ordered by id.
	ListActiveItems(ctx context.Context) ([]domain.ItemFeatures, error)
	// ListOverrides returns the item overrides keyed by item id.
	ListOverrides(ctx context.Context) (map[string]domain.ItemOverride, error)
}

// PgStore reads features through bun repositories.
type PgStore struct {
	idb bun.IDB
}

func NewPgStore(idb bun.IDB) *PgStore {
	return &PgStore{idb: idb}
}

func (s *PgStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	repo := repogen.NewBuilder[domain.Player](s.idb).
		WithNotFoundCode(domain.CodePlayerNotFound).
		BuildReadOnly()

	p, err := repo.Get(ctx, specification.Eq("id", func(p domain.Player) string { return p.ID }, playerID))
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"player_id": playerID}))
	}
	return p, nil
}

func (s *PgStore) GetPlayerFeatures(ctx context.Context, playerID string) (domain.PlayerFeatures, error) {
	repo := repogen.NewBuilder[domain.PlayerFeatures](s.idb).
		WithNotFoundCode(CodeFeaturesNotFound).
		BuildReadOnly()

	f, err := repo.Get(ctx, specification.Eq("player_id",
		func(f domain.PlayerFeatures) string { return f.PlayerID }, playerID))
	if err != nil {
		return domain.PlayerFeatures{}, errx.Wrap(err, errx.WithDetails(errx.D{"player_id": playerID}))
	}
	return *f, nil
}

// activeItems keeps features whose catalog row is active.
func activeItems() specification.Specification[domain.ItemFeatures] {
	return specification.Where[domain.ItemFeatures](
		"?TableAlias.item_id IN (SELECT id FROM items WHERE is_active = ?)",
		[]any{true},
		func(domain.ItemFeatures) bool { return true },
	)
}

func (s *PgStore) ListActiveItems(ctx context.Context) ([]domain.ItemFeatures, error) {
	repo := repogen.NewBuilder[domain.ItemFeatures](s.idb).BuildReadOnly()

	items, err := repo.List(ctx, activeItems().ApplyOrderBy("item_id"))
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return items, nil
}

func (s *PgStore) ListOverrides(ctx context.Context) (map[string]domain.ItemOverride, error) {
	repo := repogen.NewBuilder[domain.ItemOverride](s.idb).BuildReadOnly()

	list, err := repo.List(ctx, specification.NotEq("mode",
		func(o domain.ItemOverride) domain.OverrideMode { return o.Mode }, domain.OverrideNone))
	if err != nil {
		return nil, errx.Wrap(err)
	}

	out := make(map[string]domain.ItemOverride, len(list))
	for _, o := range list {
		out[o.ItemID] = o
	}
	return out, nil
}

// Cache keys. UpsertItemOverride busts the items:* family.
const (
	KeyItemsActive    = "items:active"
	KeyItemsOverrides = "items:overrides"
)

func PlayerFeaturesKey(playerID string) string {
	return "features:player:" + playerID
}

// Cached decorates a Store with cache-aside reads of features and the item catalog.
// Player status is never cached.
type Cached struct {
	next  Store
	cache cache.Cache
	ttl   time.Duration
}

func NewCached(next Store, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl}
}

func (c *Cached) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return c.next.GetPlayer(ctx, playerID)
}

func (c *Cached) GetPlayerFeatures(ctx context.Context, playerID string) (domain.PlayerFeatures, error) {
	return cache.GetOrSet(ctx, c.cache, PlayerFeaturesKey(playerID), c.ttl,
		func(ctx context.Context) (domain.PlayerFeatures, error) {
			return c.next.GetPlayerFeatures(ctx, playerID)
		})
}

func (c *Cached) ListActiveItems(ctx context.Context) ([]domain.ItemFeatures, error) {
	return cache.GetOrSet(ctx, c.cache, KeyItemsActive, c.ttl, c.next.ListActiveItems)
}

func (c *Cached) ListOverrides(ctx context.Context) (map[string]domain.ItemOverride, error) {
	return cache.GetOrSet(ctx, c.cache, KeyItemsOverrides, c.ttl, c.next.ListOverrides)
}
