// Package learner contains the core domain model of the progress engine:
// the learner entity, per-content progress entries with their merge policy,
// and the derived statistics aggregation. This is the heart of the business
// logic - it has no infrastructure dependencies.
package learner

import (
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS ENTRY
// One entry exists per (learner, content) pair. Entries are mutated only
// through Merge; they are never constructed ad hoc elsewhere.
// ══════════════════════════════════════════════════════════════════════════════

// Status represents the state of a progress entry.
type Status string

const (
	// StatusNotStarted - the learner has not engaged with the content yet.
	StatusNotStarted Status = "not_started"
	// StatusInProgress - the learner has started but not completed the content.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - terminal state; an entry never leaves it.
	StatusCompleted Status = "completed"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// ProgressEntry records a learner's engagement with one piece of content.
type ProgressEntry struct {
	// ContentID - catalog content ID or an ephemeral AI session ID.
	ContentID shared.ContentID

	// Status - current progress state. Completed is terminal.
	Status Status

	// CompletionPercentage - how far the learner has progressed [0, 100].
	CompletionPercentage shared.Percentage

	// TimeSpentMinutes - cumulative study time. Monotonically non-decreasing:
	// patches add to it, they never replace it.
	TimeSpentMinutes int

	// Score - most recent score. Last write wins.
	Score int

	// HasScore - whether a score has ever been recorded for this entry.
	HasScore bool

	// XPEarned - XP stamped at the moment of completion, using the content's
	// reward value at that time. Immutable afterwards: later catalog changes
	// never retroactively alter earned XP.
	XPEarned int

	// AIResourcesGenerated - whether AI resources were generated for this entry.
	AIResourcesGenerated bool

	// AIResourcesData - opaque payload describing generated AI resources.
	AIResourcesData map[string]interface{}

	// LastAccessedAt - when the entry was last touched.
	LastAccessedAt time.Time

	// CompletedAt - set exactly once, on the transition into completed.
	CompletedAt *time.Time

	// CreatedAt - when the entry was first created.
	CreatedAt time.Time

	// UpdatedAt - when the entry was last persisted.
	UpdatedAt time.Time

	// Version - optimistic concurrency token, incremented on every save.
	Version int64
}

// NewProgressEntry creates a fresh entry in the not-started state.
func NewProgressEntry(contentID shared.ContentID, now time.Time) *ProgressEntry {
	return &ProgressEntry{
		ContentID:      contentID,
		Status:         StatusNotStarted,
		LastAccessedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsCompleted reports whether the entry has reached the terminal state.
func (e *ProgressEntry) IsCompleted() bool {
	return e.Status == StatusCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// PATCH & MERGE POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Patch describes a partial progress update. Nil pointer fields are left
// untouched by Merge; TimeSpentMinutes is a delta, not a replacement.
type Patch struct {
	// Status - requested status. Downgrades from completed are ignored.
	Status *Status

	// CompletionPercentage - requested percentage, clamped to [0, 100].
	CompletionPercentage *shared.Percentage

	// TimeSpentMinutes - minutes to add to the running total.
	TimeSpentMinutes int

	// Score - new score (last write wins).
	Score *int

	// AIResourcesData - opaque AI resource payload; replaces the stored one.
	AIResourcesData map[string]interface{}

	// ObservedAt - when the patched activity happened.
	ObservedAt time.Time
}

// Validate checks structural validity of the patch.
func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.IsValid() {
		return shared.ErrInvalidProgressType
	}
	if p.TimeSpentMinutes < 0 {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// MergeOutcome reports what a Merge actually changed.
type MergeOutcome struct {
	// CompletedNow - true only on the fresh transition into completed.
	// Re-submitting a completion patch never sets this again.
	CompletedNow bool

	// XPStamped - XP recorded on the entry; non-zero only when CompletedNow.
	XPStamped int

	// StatusChanged - the entry's status changed.
	StatusChanged bool

	// ScoreChanged - the entry's score changed.
	ScoreChanged bool
}

// Merge applies a patch to the entry under the ledger's merge policy:
//
//   - status: last write wins, except downgrades from completed are ignored
//     (completed is terminal, which keeps completion bonuses at-most-once)
//   - completionPercentage: last write wins, clamped to [0, 100]
//   - timeSpent: additive, never replaced
//   - score: last write wins
//   - completedAt and XPEarned: set only on the fresh transition into
//     completed, never moved afterwards
//
// xpReward is the content's reward value at merge time; it is stamped onto
// the entry only when the merge causes the completion transition.
func (e *ProgressEntry) Merge(p Patch, xpReward int) MergeOutcome {
	var out MergeOutcome

	at := p.ObservedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if p.Status != nil && *p.Status != e.Status {
		if e.Status.IsTerminal() {
			// Regression attempt on a completed entry: ignore the status
			// field, still apply the additive fields below.
		} else {
			e.Status = *p.Status
			out.StatusChanged = true
			if e.Status == StatusCompleted && e.CompletedAt == nil {
				completedAt := at
				e.CompletedAt = &completedAt
				e.XPEarned = xpReward
				out.CompletedNow = true
				out.XPStamped = xpReward
			}
		}
	}

	if p.CompletionPercentage != nil {
		e.CompletionPercentage = p.CompletionPercentage.Clamp()
	}

	e.TimeSpentMinutes += p.TimeSpentMinutes

	if p.Score != nil && (!e.HasScore || e.Score != *p.Score) {
		e.Score = *p.Score
		e.HasScore = true
		out.ScoreChanged = true
	}

	if p.AIResourcesData != nil {
		e.AIResourcesGenerated = true
		e.AIResourcesData = p.AIResourcesData
	}

	e.LastAccessedAt = at
	e.UpdatedAt = at

	return out
}
