package domain

import (
	"slices"
	"time"

	"github.com/rise-and-shine/recoengine/pg"
	"github.com/uptrace/bun"
)

// Experiment routes a share of players in its target contexts to alternative algorithms.
type Experiment struct {
	bun.BaseModel `bun:"table:experiments,alias:e"`

	Name           string              `bun:"name,pk"          json:"name"`
	TargetContexts []string            `bun:"target_contexts"  json:"target_contexts"`
	Variants       []ExperimentVariant `bun:"variants"         json:"variants"`
	StartsAt       time.Time           `bun:"starts_at"        json:"starts_at"`
	EndsAt         *time.Time          `bun:"ends_at,nullzero" json:"ends_at,omitempty"`
	Active         bool                `bun:"active"           json:"active"`

	pg.Timestamps
}

// ExperimentVariant is one arm of an experiment. Weights are relative.
type ExperimentVariant struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	Weight    int    `json:"weight"`
}

// RunningAt reports whether the experiment is switched on and inside its window.
func (e Experiment) RunningAt(t time.Time) bool {
	if !e.Active || t.Before(e.StartsAt) {
		return false
	}
	return e.EndsAt == nil || t.Before(*e.EndsAt)
}

// Targets reports whether the experiment applies to context. No target contexts means all.
func (e Experiment) Targets(context string) bool {
	return len(e.TargetContexts) == 0 || slices.Contains(e.TargetContexts, context)
}

// Variant returns the variant called name.
func (e Experiment) Variant(name string) (ExperimentVariant, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return ExperimentVariant{}, false
}

// ExperimentAssignment pins a player to a variant for the lifetime of an experiment.
type ExperimentAssignment struct {
	bun.BaseModel `bun:"table:experiment_assignments,alias:ea"`

	ID             string    `bun:"id,pk"                   json:"id"`
	ExperimentName string    `bun:"experiment_name,notnull" json:"experiment_name"`
	PlayerID       string    `bun:"player_id,notnull"       json:"player_id"`
	Variant        string    `bun:"variant,notnull"         json:"variant"`
	AssignedAt     time.Time `bun:"assigned_at,notnull"     json:"assigned_at"`
}
