// Package notification defines the contract with the external notification
// layer. The progress engine produces three fact types; how they reach the
// user (toast, push, digest) is the dispatcher's concern and out of scope
// here. Delivery is fire-and-forget: a dispatcher failure never fails the
// action that produced the fact.
package notification

import (
	"context"
)

// BadgeEarnedFact signals that a learner earned a badge.
type BadgeEarnedFact struct {
	LearnerID string
	BadgeID   string
	Title     string
	XP        int
}

// ChallengeCompletedFact signals that a learner completed the daily challenge.
type ChallengeCompletedFact struct {
	LearnerID string
	Title     string
	XP        int
}

// LevelChangedFact signals that a learner crossed a level boundary.
// Level = floor(totalXP/100) + 1, recomputed whenever total XP changes.
type LevelChangedFact struct {
	LearnerID string
	OldLevel  int
	NewLevel  int
}

// Dispatcher consumes gamification facts. Implementations are external
// collaborators; the engine ships only a logging implementation.
type Dispatcher interface {
	// NotifyBadgeEarned delivers a badge-earned fact.
	NotifyBadgeEarned(ctx context.Context, fact BadgeEarnedFact) error

	// NotifyChallengeCompleted delivers a challenge-completed fact.
	NotifyChallengeCompleted(ctx context.Context, fact ChallengeCompletedFact) error

	// NotifyLevelChanged delivers a level-changed fact.
	NotifyLevelChanged(ctx context.Context, fact LevelChangedFact) error
}
