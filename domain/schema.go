package domain

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
)

// Models lists every persisted entity in creation order.
func Models() []any {
	return []any{
		(*Player)(nil),
		(*Item)(nil),
		(*PlayerFeatures)(nil),
		(*ItemFeatures)(nil),
		(*Recommendation)(nil),
		(*RecommendationInteraction)(nil),
		(*ItemOverride)(nil),
		(*Experiment)(nil),
		(*ExperimentAssignment)(nil),
	}
}

type index struct {
	model   any
	name    string
	unique  bool
	columns []string
}

//nolint:gochecknoglobals // static schema description
var indexes = []index{
	{(*RecommendationInteraction)(nil), ConstraintInteractionDedup, true, []string{"recommendation_id", "session_id", "type"}},
	{(*ExperimentAssignment)(nil), ConstraintAssignment, true, []string{"experiment_name", "player_id"}},
	{(*Recommendation)(nil), "ix_recommendations_player_context", false, []string{"player_id", "context", "created_at"}},
	{(*Recommendation)(nil), "ix_recommendations_algorithm", false, []string{"algorithm", "created_at"}},
	{(*RecommendationInteraction)(nil), "ix_recommendation_interactions_player", false, []string{"player_id", "occurred_at"}},
}

// CreateSchema creates the tables and indexes that do not exist yet. It is idempotent.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range Models() {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{"model": fmt.Sprintf("%T", m)}))
		}
	}

	for _, ix := range indexes {
		q := db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists()
		if ix.unique {
			q = q.Unique()
		}
		_, err := q.Exec(ctx)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{"index": ix.name}))
		}
	}
	return nil
}
