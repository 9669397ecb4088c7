// Package event contains the normalizer that turns raw activity records
// from any source (content viewer, quiz runner, AI resource generator)
// into canonical LearningEvents. Normalization is pure validation and
// canonicalization; it never touches persistence.
package event

import (
	"strings"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT KINDS
// The set of accepted kinds is a closed enum. Anything else is rejected
// before any mutation happens.
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies the type of learning activity.
type Kind string

const (
	// KindContentStarted - the learner opened a piece of content.
	KindContentStarted Kind = "content_started"

	// KindSessionStarted - a study session began.
	KindSessionStarted Kind = "learning_session_started"

	// KindCourseCompleted - the learner finished a course or module.
	KindCourseCompleted Kind = "course_completed"

	// KindQuizCompleted - the learner submitted a quiz.
	KindQuizCompleted Kind = "quiz_completed"

	// KindAIResourcesGenerated - the AI layer produced study resources.
	KindAIResourcesGenerated Kind = "ai_resources_generated"
)

// IsValid checks that the kind is one of the known values.
func (k Kind) IsValid() bool {
	switch k {
	case KindContentStarted, KindSessionStarted, KindCourseCompleted,
		KindQuizCompleted, KindAIResourcesGenerated:
		return true
	default:
		return false
	}
}

// IsCompletion reports whether the kind represents a completion action.
func (k Kind) IsCompletion() bool {
	return k == KindCourseCompleted || k == KindQuizCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// RAW EVENT & CANONICAL LEARNING EVENT
// ══════════════════════════════════════════════════════════════════════════════

// RawEvent is an activity record as received from the outside, before any
// validation. All fields are optional as far as the type system is
// concerned; Normalize decides what is actually required.
type RawEvent struct {
	// UserID - the acting learner's ID.
	UserID string `json:"user_id"`

	// ContentID - the content the activity refers to, if any.
	ContentID string `json:"content_id"`

	// Kind - the raw event kind string.
	Kind string `json:"kind"`

	// CompletionPercentage - reported completion percentage, if present.
	CompletionPercentage *int `json:"completion_percentage,omitempty"`

	// TimeSpentMinutes - minutes of study time contributed by this event.
	TimeSpentMinutes int `json:"time_spent_minutes"`

	// Score - reported score, if present.
	Score *int `json:"score,omitempty"`

	// Timestamp - when the activity happened; zero means unknown.
	Timestamp time.Time `json:"timestamp"`

	// Metadata - source-specific extras (AI payloads and the like).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// LearningEvent is the canonical, validated form of a learning activity.
// Everything downstream of the normalizer consumes this shape only.
type LearningEvent struct {
	// LearnerID - validated learner ID.
	LearnerID shared.LearnerID

	// ContentID - validated content ID; may be empty for events that do
	// not reference content (e.g. a bare session start).
	ContentID shared.ContentID

	// Kind - validated event kind.
	Kind Kind

	// CompletionPercentage - carried through from the raw event.
	CompletionPercentage *int

	// TimeSpentMinutes - non-negative study time contribution.
	TimeSpentMinutes int

	// Score - carried through from the raw event.
	Score *int

	// OccurredAt - canonical instant, always UTC and never zero.
	OccurredAt time.Time

	// Metadata - source-specific extras.
	Metadata map[string]interface{}
}

// IsQuiz reports whether the event is a quiz submission.
func (e LearningEvent) IsQuiz() bool {
	return e.Kind == KindQuizCompleted
}

// QuizPercentage returns the quiz score percentage, or 0 when no score
// was reported.
func (e LearningEvent) QuizPercentage() int {
	if e.Score == nil {
		return 0
	}
	return *e.Score
}

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZER
// ══════════════════════════════════════════════════════════════════════════════

// Normalizer validates and canonicalizes raw events.
type Normalizer struct {
	// now supplies the fallback timestamp; injectable for tests.
	now func() time.Time
}

// NewNormalizer creates a normalizer using the real clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: func() time.Time { return time.Now().UTC() }}
}

// NewNormalizerWithClock creates a normalizer with an injected clock.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize validates a raw event and produces its canonical form.
// Validation failures return shared validation errors; a missing timestamp
// is not an error and defaults to the process-observed time.
func (n *Normalizer) Normalize(raw RawEvent) (LearningEvent, error) {
	learnerID, err := shared.NewLearnerID(strings.TrimSpace(raw.UserID))
	if err != nil {
		return LearningEvent{}, shared.ErrMissingUserID
	}

	kind := Kind(strings.TrimSpace(raw.Kind))
	if !kind.IsValid() {
		return LearningEvent{}, shared.ErrUnknownEventKind
	}

	var contentID shared.ContentID
	rawContent := strings.TrimSpace(raw.ContentID)
	if rawContent != "" {
		contentID = shared.ContentID(rawContent)
	} else if kind.IsCompletion() || kind == KindContentStarted {
		// Content-scoped kinds must name their content.
		return LearningEvent{}, shared.ErrMissingContentID
	}

	if raw.TimeSpentMinutes < 0 {
		return LearningEvent{}, shared.ErrNegativeTimeSpent
	}

	occurredAt := raw.Timestamp
	if occurredAt.IsZero() {
		occurredAt = n.now()
	}
	occurredAt = occurredAt.UTC()

	return LearningEvent{
		LearnerID:            learnerID,
		ContentID:            contentID,
		Kind:                 kind,
		CompletionPercentage: raw.CompletionPercentage,
		TimeSpentMinutes:     raw.TimeSpentMinutes,
		Score:                raw.Score,
		OccurredAt:           occurredAt,
		Metadata:             raw.Metadata,
	}, nil
}
