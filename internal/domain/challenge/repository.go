package challenge

import (
	"context"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// Repository owns daily challenge instances keyed by (learner, day).
type Repository interface {
	// GetForDay returns the learner's challenge for the given day.
	// Returns shared.ErrChallengeNotFound if none was persisted yet.
	GetForDay(ctx context.Context, learnerID shared.LearnerID, day time.Time) (*Challenge, error)

	// Save inserts or updates the challenge for its (learner, day) key.
	Save(ctx context.Context, c *Challenge) error

	// SumCompletedRewards returns the total XP over the learner's
	// completed challenges. Feeds the bonus component of the statistics
	// recomputation.
	SumCompletedRewards(ctx context.Context, learnerID shared.LearnerID) (int, error)
}
