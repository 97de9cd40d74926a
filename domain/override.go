package domain

import (
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/uptrace/bun"
)

type OverrideMode string

const (
	OverrideNone     OverrideMode = "none"
	OverridePromote  OverrideMode = "promote"
	OverrideSuppress OverrideMode = "suppress"
)

// ItemOverride is an operator setting applied to one item by the business rules step.
type ItemOverride struct {
	bun.BaseModel `bun:"table:item_overrides,alias:io"`

	ItemID    string       `bun:"item_id,pk"      json:"item_id"`
	Mode      OverrideMode `bun:"mode,notnull"    json:"mode"`
	Boost     float64      `bun:"boost"           json:"boost"`
	Pinned    bool         `bun:"pinned"          json:"pinned"`
	MaxPerDay *int         `bun:"max_per_day"     json:"max_per_day,omitempty"`
	Reason    string       `bun:"reason"          json:"reason"`
	UpdatedBy string       `bun:"updated_by"      json:"updated_by"`
	Version   int64        `bun:"version,notnull" json:"version"`

	pg.Timestamps

	events.Recorder `bun:"-" json:"-"`
}

func (o *ItemOverride) GetVersion() int64  { return o.Version }
func (o *ItemOverride) SetVersion(v int64) { o.Version = v }

func (o ItemOverride) Suppressed() bool {
	return o.Mode == OverrideSuppress
}

func (o ItemOverride) Promoted() bool {
	return o.Mode == OverridePromote
}

// Changed records item_override.changed with the override's current state.
func (o *ItemOverride) Changed(created bool) {
	o.Record(events.NewEventBuilder(EventItemOverrideChanged, o.ItemID).
		WithData(ItemOverrideChanged{
			ItemID:    o.ItemID,
			Mode:      string(o.Mode),
			Boost:     o.Boost,
			Pinned:    o.Pinned,
			UpdatedBy: o.UpdatedBy,
			Created:   created,
		}).
		Build())
}
