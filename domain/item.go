package domain

import (
	"math"

	"github.com/uptrace/bun"
)

type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

// Item is a recommendable game.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID       string `bun:"id,pk"     json:"id"`
	Name     string `bun:"name"      json:"name"`
	Category string `bun:"category"  json:"category"`
	Provider string `bun:"provider"  json:"provider"`
	IsActive bool   `bun:"is_active" json:"is_active"`
}

// ItemFeatures holds per-item attributes read by strategies. One row per item.
type ItemFeatures struct {
	bun.BaseModel `bun:"table:item_features,alias:itf"`

	ItemID          string             `bun:"item_id,pk"       json:"item_id"`
	Category        string             `bun:"category"         json:"category"`
	Provider        string             `bun:"provider"         json:"provider"`
	RTP             float64            `bun:"rtp"              json:"rtp"`
	Volatility      Volatility         `bun:"volatility"       json:"volatility"`
	MinBet          float64            `bun:"min_bet"          json:"min_bet"`
	MaxBet          float64            `bun:"max_bet"          json:"max_bet"`
	PopularityScore float64            `bun:"popularity_score" json:"popularity_score"`
	RevenueScore    float64            `bun:"revenue_score"    json:"revenue_score"`
	Impressions     int64              `bun:"impressions"      json:"impressions"`
	Clicks          int64              `bun:"clicks"           json:"clicks"`
	Neighbors       map[string]float64 `bun:"neighbors"        json:"neighbors,omitempty"`
	Embedding       []float64          `bun:"embedding"        json:"embedding,omitempty"`
	Features        map[string]float64 `bun:"features"         json:"features,omitempty"`
}

// ClickThroughRate is clicks over impressions, or 0 without impressions.
func (f ItemFeatures) ClickThroughRate() float64 {
	if f.Impressions <= 0 {
		return 0
	}
	return math.Min(1, float64(f.Clicks)/float64(f.Impressions))
}

// Feature returns a free-form numeric feature, or def when absent.
func (f ItemFeatures) Feature(name string, def float64) float64 {
	if v, ok := f.Features[name]; ok {
		return v
	}
	return def
}

// Env exposes the item to business rule expressions.
func (f ItemFeatures) Env() map[string]any {
	features := make(map[string]any, len(f.Features))
	for k, v := range f.Features {
		features[k] = v
	}
	return map[string]any{
		"id":               f.ItemID,
		"category":         f.Category,
		"provider":         f.Provider,
		"rtp":              f.RTP,
		"volatility":       string(f.Volatility),
		"min_bet":          f.MinBet,
		"max_bet":          f.MaxBet,
		"popularity_score": f.PopularityScore,
		"revenue_score":    f.RevenueScore,
		"features":         features,
	}
}
