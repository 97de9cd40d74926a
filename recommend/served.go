package recommend

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/uptrace/bun"
)

// ServedCounter counts how often items were served, for daily override caps.
type ServedCounter interface {
	ServedSince(ctx context.Context, itemIDs []string, since time.Time) (map[string]int, error)
}

type BunServedCounter struct {
	idb bun.IDB
}

func NewBunServedCounter(idb bun.IDB) *BunServedCounter {
	return &BunServedCounter{idb: idb}
}

func (c *BunServedCounter) ServedSince(ctx context.Context, itemIDs []string, since time.Time) (map[string]int, error) {
	if len(itemIDs) == 0 {
		return map[string]int{}, nil
	}

	var rows []struct {
		ItemID string `bun:"item_id"`
		N      int    `bun:"n"`
	}
	err := c.idb.NewSelect().
		Model((*domain.Recommendation)(nil)).
		Column("item_id").
		ColumnExpr("count(*) AS n").
		Where("item_id IN (?)", bun.In(itemIDs)).
		Where("created_at >= ?", since.UTC()).
		Group("item_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r.N
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
