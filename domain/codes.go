package domain

const (
	CodePlayerNotFound         = "PLAYER_NOT_FOUND"
	CodePlayerInactive         = "PLAYER_INACTIVE"
	CodeRecommendationNotFound = "RECOMMENDATION_NOT_FOUND"
	CodeStrategyNotFound       = "STRATEGY_NOT_FOUND"
	CodeExperimentNotFound     = "EXPERIMENT_NOT_FOUND"
	CodeInteractionDuplicate   = "INTERACTION_DUPLICATE"
	CodeInteractionMismatch    = "INTERACTION_MISMATCH"
	CodeOverrideInvalid        = "ITEM_OVERRIDE_INVALID"
)

// Constraint names referenced by repositories to map unique violations onto codes.
const (
	ConstraintInteractionDedup = "uq_recommendation_interactions_dedup"
	ConstraintAssignment       = "uq_experiment_assignments_player"
)
