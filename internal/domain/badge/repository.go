package badge

import (
	"context"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// EarnedRepository owns the per-learner set of earned badges. A uniqueness
// constraint on (learner, badge) makes recording idempotent under retry.
type EarnedRepository interface {
	// ListByLearner returns the learner's earned badges, earliest first.
	ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]EarnedBadge, error)

	// EarnedSet returns the learner's earned badge IDs as a set.
	EarnedSet(ctx context.Context, learnerID shared.LearnerID) (map[string]bool, error)

	// RecordBatch records a batch of newly earned badges atomically:
	// either all of them are recorded or none. Badges already recorded for
	// the learner are skipped silently, never duplicated.
	RecordBatch(ctx context.Context, learnerID shared.LearnerID, earned []EarnedBadge) error

	// SumXP returns the total XP reward over the learner's earned badges.
	SumXP(ctx context.Context, learnerID shared.LearnerID) (int, error)
}
