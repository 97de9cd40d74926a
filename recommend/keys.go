package recommend

import (
	"fmt"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/pipeline"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
)

// Pipeline context keys written by the steps.
var (
	KeyRequestID = pipeline.NewKey[string]("request_id")
	KeyPlayer    = pipeline.NewKey[*domain.Player]("player")
	KeyFeatures  = pipeline.NewKey[domain.PlayerFeatures]("features")
	KeyItems     = pipeline.NewKey[[]domain.ItemFeatures]("items")
	KeyOverrides = pipeline.NewKey[map[string]domain.ItemOverride]("overrides")
	KeyStrategy  = pipeline.NewKey[strategy.Strategy]("strategy")
	KeySelection = pipeline.NewKey[selector.Selection]("selection")
)

// Cache key families.
const (
	PatternAllRecommendations = "reco:*"
	PatternAllItems           = "items:*"
)

// RecommendationsKey is where the list for one (player, context, count) is cached.
func RecommendationsKey(playerID, reqContext string, count int) string {
	return fmt.Sprintf("reco:%s:%s:%d", playerID, reqContext, count)
}

// PlayerPattern matches every cached list of one player.
func PlayerPattern(playerID string) string {
	return "reco:" + playerID + ":*"
}
