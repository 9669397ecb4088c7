package learner

import (
	"context"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Contracts for the persistence layer. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines persistence operations for learners.
type Repository interface {
	// Create stores a new learner.
	// Returns shared.ErrLearnerAlreadyExists if the email is taken.
	Create(ctx context.Context, l *Learner) error

	// GetByID returns a learner by internal ID.
	// Returns shared.ErrLearnerNotFound if absent.
	GetByID(ctx context.Context, id shared.LearnerID) (*Learner, error)

	// GetByEmail returns a learner by email.
	// Returns shared.ErrLearnerNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Learner, error)

	// Update persists changes to a learner (stats, counters, AI history).
	// Returns shared.ErrLearnerNotFound if absent.
	Update(ctx context.Context, l *Learner) error

	// List returns learners, active ones first by default.
	List(ctx context.Context, opts ListOptions) ([]*Learner, error)

	// Count returns the total number of learners.
	Count(ctx context.Context) (int, error)
}

// ProgressRepository owns progress entries keyed by (learner, content).
// At most one entry exists per pair; Save is atomic with respect to that
// pair and rejects stale writes with shared.ErrProgressConflict.
type ProgressRepository interface {
	// Get returns the entry for the pair.
	// Returns shared.ErrProgressNotFound if absent.
	Get(ctx context.Context, learnerID shared.LearnerID, contentID shared.ContentID) (*ProgressEntry, error)

	// Save inserts or updates the entry for the pair. The entry's Version
	// must match the stored one (0 for inserts); on success the stored
	// version is incremented. A mismatch returns shared.ErrProgressConflict
	// and leaves the stored entry untouched.
	Save(ctx context.Context, learnerID shared.LearnerID, entry *ProgressEntry) error

	// ListByLearner returns all entries for a learner, oldest first.
	ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*ProgressEntry, error)
}

// ListOptions contains pagination parameters for learner listings.
type ListOptions struct {
	// Offset - pagination offset.
	Offset int

	// Limit - maximum number of records (0 = no limit).
	Limit int

	// IncludeInactive - include soft-deactivated learners.
	IncludeInactive bool
}
