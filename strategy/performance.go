package strategy

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/specification"
	"github.com/uptrace/bun"
)

// PerformanceSource aggregates served recommendations into strategy metrics.
type PerformanceSource interface {
	// Metrics aggregates window for strategy, restricted to reqContext unless it is empty.
	Metrics(ctx context.Context, strategy string, window domain.Window, reqContext string) (domain.PerformanceMetrics, error)
}

// BunPerformanceSource computes metrics from the recommendations and interactions tables.
//
// Impressions are served rows, clicks and plays their flags. Conversion is plays over
// impressions, precision plays over clicks, recall the strategy's share of all plays in the
// window. Coverage is distinct items over active catalog size and diversity distinct
// categories over distinct items. Revenue is the summed value of bet interactions.
type BunPerformanceSource struct {
	idb bun.IDB
}

func NewBunPerformanceSource(idb bun.IDB) *BunPerformanceSource {
	return &BunPerformanceSource{idb: idb}
}

type aggregate struct {
	Impressions int64 `bun:"impressions"`
	Clicks      int64 `bun:"clicks"`
	Plays       int64 `bun:"plays"`
	Items       int64 `bun:"items"`
	Categories  int64 `bun:"categories"`
}

func served(window domain.Window, reqContext string) specification.Specification[domain.Recommendation] {
	s := specification.New(
		specification.OnOrAfter("created_at",
			func(r domain.Recommendation) time.Time { return r.CreatedAt }, window.From.UTC()),
		specification.Before("created_at",
			func(r domain.Recommendation) time.Time { return r.CreatedAt }, window.To.UTC()),
	)
	if reqContext != "" {
		s = s.And(specification.Eq("context", func(r domain.Recommendation) string { return r.Context }, reqContext))
	}
	return s
}

func (p *BunPerformanceSource) Metrics(
	ctx context.Context,
	strategy string,
	window domain.Window,
	reqContext string,
) (domain.PerformanceMetrics, error) {
	all := served(window, reqContext)
	mine := all.And(specification.Eq("algorithm",
		func(r domain.Recommendation) string { return r.Algorithm }, strategy))

	var agg aggregate
	err := mine.ApplyFilter(p.idb.NewSelect().Model((*domain.Recommendation)(nil)).
		ColumnExpr("COUNT(*) AS impressions").
		ColumnExpr("COALESCE(SUM(CASE WHEN ?TableAlias.is_clicked THEN 1 ELSE 0 END), 0) AS clicks").
		ColumnExpr("COALESCE(SUM(CASE WHEN ?TableAlias.is_played THEN 1 ELSE 0 END), 0) AS plays").
		ColumnExpr("COUNT(DISTINCT ?TableAlias.item_id) AS items").
		ColumnExpr("COUNT(DISTINCT ?TableAlias.category) AS categories"),
	).Scan(ctx, &agg)
	if err != nil {
		return domain.PerformanceMetrics{}, metricsError(err, strategy)
	}

	var totalPlays int64
	err = all.ApplyFilter(p.idb.NewSelect().Model((*domain.Recommendation)(nil)).
		ColumnExpr("COALESCE(SUM(CASE WHEN ?TableAlias.is_played THEN 1 ELSE 0 END), 0)"),
	).Scan(ctx, &totalPlays)
	if err != nil {
		return domain.PerformanceMetrics{}, metricsError(err, strategy)
	}

	var revenue float64
	ids := mine.ApplyFilter(p.idb.NewSelect().Model((*domain.Recommendation)(nil)).Column("id"))
	err = p.idb.NewSelect().Model((*domain.RecommendationInteraction)(nil)).
		ColumnExpr("COALESCE(SUM(?TableAlias.value), 0)").
		Where("?TableAlias.type = ?", domain.InteractionBet).
		// ?TableAlias would resolve to the subquery's alias here
		Where("?.recommendation_id IN (?)", bun.Ident("ri"), ids).
		Scan(ctx, &revenue)
	if err != nil {
		return domain.PerformanceMetrics{}, metricsError(err, strategy)
	}

	catalog, err := p.idb.NewSelect().Model((*domain.Item)(nil)).Where("?TableAlias.is_active = ?", true).Count(ctx)
	if err != nil {
		return domain.PerformanceMetrics{}, metricsError(err, strategy)
	}

	return domain.PerformanceMetrics{
		Strategy:                 strategy,
		Window:                   window,
		Impressions:              agg.Impressions,
		Clicks:                   agg.Clicks,
		Plays:                    agg.Plays,
		ConversionRate:           ratio(agg.Plays, agg.Impressions),
		ClickThroughRate:         ratio(agg.Clicks, agg.Impressions),
		Precision:                ratio(agg.Plays, agg.Clicks),
		Recall:                   ratio(agg.Plays, totalPlays),
		Coverage:                 Clamp(ratio(agg.Items, int64(catalog))),
		Diversity:                ratio(agg.Categories, agg.Items),
		RevenuePerRecommendation: safeDiv(revenue, float64(agg.Impressions)),
	}, nil
}

func metricsError(err error, strategy string) error {
	return errx.Wrap(err,
		errx.WithCode(CodeMetricsUnavailable),
		errx.WithDetails(errx.D{"strategy": strategy}),
	)
}

func ratio(n, d int64) float64 {
	return safeDiv(float64(n), float64(d))
}

func safeDiv(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}
