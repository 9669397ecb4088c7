// Package shared holds the domain types, errors, events, and value objects
// common to every bounded context in the progress hub.
package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// LearnerID represents a unique learner identifier. Registration mints
// UUIDs; ingested events may carry any non-empty reference, and whether
// the learner exists is a repository concern.
type LearnerID string

// IsValid checks that the learner ID is non-empty.
func (l LearnerID) IsValid() bool {
	return strings.TrimSpace(string(l)) != ""
}

// String returns the string representation.
func (l LearnerID) String() string {
	return string(l)
}

// IsEmpty checks if the ID is empty.
func (l LearnerID) IsEmpty() bool {
	return l == ""
}

// NewLearnerID creates a new LearnerID with validation.
func NewLearnerID(id string) (LearnerID, error) {
	lid := LearnerID(strings.TrimSpace(id))
	if !lid.IsValid() {
		return "", NewDomainError("shared", "NewLearnerID", ErrInvalidID, "learner ID cannot be empty")
	}
	return lid, nil
}

// ContentID identifies a piece of learning content. It is a free-form string
// so it can reference catalog content or an ephemeral AI-generated session.
type ContentID string

// AISessionPrefix marks content IDs that belong to ephemeral AI-generated
// sessions. Such IDs are never resolved against the content catalog.
const AISessionPrefix = "ai-"

// IsValid checks that the content ID is non-empty.
func (c ContentID) IsValid() bool {
	return strings.TrimSpace(string(c)) != ""
}

// IsAISession reports whether the ID references an AI-generated session.
func (c ContentID) IsAISession() bool {
	return strings.HasPrefix(string(c), AISessionPrefix)
}

// String returns the string representation.
func (c ContentID) String() string {
	return string(c)
}

// NewContentID creates a new ContentID with validation.
func NewContentID(id string) (ContentID, error) {
	cid := ContentID(strings.TrimSpace(id))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewContentID", ErrInvalidID, "content ID cannot be empty")
	}
	return cid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP and Level Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a learner.
type XP int

const (
	// MinXP is the lower XP boundary.
	MinXP XP = 0
	// XPPerLevel is the amount of XP that makes up one level.
	XPPerLevel = 100
)

// IsValid checks that the XP value is non-negative.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, floored at MinXP.
func (x XP) Add(amount int) XP {
	sum := XP(int(x) + amount)
	if sum < MinXP {
		return MinXP
	}
	return sum
}

// Level calculates the level from total XP: floor(totalXP/100) + 1.
func (x XP) Level() Level {
	if x < 0 {
		return 1
	}
	return Level(int(x)/XPPerLevel + 1)
}

// ProgressToNextLevel returns percentage progress within the current level (0-100).
func (x XP) ProgressToNextLevel() int {
	if x < 0 {
		return 0
	}
	return int(x) % XPPerLevel * 100 / XPPerLevel
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	return XP(amount), nil
}

// Level represents a learner's level, derived from total XP.
type Level int

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage represents a completion percentage in [0, 100].
type Percentage int

// IsValid checks that the percentage is within range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// Int returns the underlying int value.
func (p Percentage) Int() int {
	return int(p)
}

// Clamp returns the percentage clamped to [0, 100].
func (p Percentage) Clamp() Percentage {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// IsComplete reports whether the percentage represents full completion.
func (p Percentage) IsComplete() bool {
	return p >= 100
}
