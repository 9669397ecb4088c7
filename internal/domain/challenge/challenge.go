// Package challenge implements the daily challenge state machine. Each
// learner has one active challenge per UTC calendar day, selected
// deterministically from a fixed template table; progress is monotonically
// non-decreasing, clamped to the target, and the completion reward fires
// exactly once.
package challenge

import (
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// Kind identifies what a challenge measures. The set is a fixed enum;
// templates are data, not code paths.
type Kind string

const (
	// KindCourseCount - +1 per completion event.
	KindCourseCount Kind = "courses"
	// KindQuizScoreCount - +1 per quiz scoring at least QuizScoreThreshold.
	KindQuizScoreCount Kind = "quiz_score"
	// KindStudyMinutes - +minutes from session events.
	KindStudyMinutes Kind = "study_time"
	// KindPerfectQuiz - jumps straight to target on a 100% quiz.
	KindPerfectQuiz Kind = "perfect_quiz"
	// KindNewCategory - jumps to target on the first-ever event in a
	// category the learner has not seen before.
	KindNewCategory Kind = "new_category"
)

// IsValid checks that the kind is one of the known values.
func (k Kind) IsValid() bool {
	switch k {
	case KindCourseCount, KindQuizScoreCount, KindStudyMinutes, KindPerfectQuiz, KindNewCategory:
		return true
	default:
		return false
	}
}

// QuizScoreThreshold is the minimum quiz percentage that counts toward a
// quiz-score challenge.
const QuizScoreThreshold = 80

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE STATE MACHINE
// States: active → completed. Completed is terminal for the day.
// ══════════════════════════════════════════════════════════════════════════════

// Challenge is one learner's challenge instance for one calendar day.
type Challenge struct {
	// LearnerID - whose challenge this is.
	LearnerID shared.LearnerID

	// Day - UTC calendar day (midnight) the challenge belongs to.
	Day time.Time

	// TemplateID - which template this instance was created from.
	TemplateID string

	// Title - template title.
	Title string

	// Description - template description.
	Description string

	// Kind - what the challenge measures.
	Kind Kind

	// Target - numeric goal.
	Target int

	// Progress - current progress, in [0, Target], never decreasing.
	Progress int

	// Completed - terminal flag; transitions false→true exactly once.
	Completed bool

	// XPReward - granted exactly once, on the completion transition.
	XPReward int

	// CompletedAt - when the challenge completed.
	CompletedAt *time.Time

	// CreatedAt / UpdatedAt - bookkeeping.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewForDay instantiates the learner's challenge for the given day, using
// the deterministic template selection. Subsequent calls for the same
// learner and day always yield the same template - there is no re-roll.
func NewForDay(learnerID shared.LearnerID, day time.Time) *Challenge {
	d := timeutil.StartOfDay(day)
	tpl := SelectTemplate(learnerID, d)
	return &Challenge{
		LearnerID:   learnerID,
		Day:         d,
		TemplateID:  tpl.ID,
		Title:       tpl.Title,
		Description: tpl.Description,
		Kind:        tpl.Kind,
		Target:      tpl.Target,
		XPReward:    tpl.XPReward,
		CreatedAt:   d,
		UpdatedAt:   d,
	}
}

// Contribution describes how a single qualifying event may advance a
// challenge. Only the fields relevant to the event's kind are set.
type Contribution struct {
	// CourseCompleted - the event is a fresh course completion.
	CourseCompleted bool

	// IsQuiz - the event is a completed quiz.
	IsQuiz bool

	// QuizPercentage - the quiz score percentage, when IsQuiz.
	QuizPercentage int

	// StudyMinutes - minutes contributed by a session event.
	StudyMinutes int

	// NewCategory - the event touched a category the learner had never
	// seen before.
	NewCategory bool

	// At - when the event occurred.
	At time.Time
}

// Advance applies a contribution and reports whether this call caused the
// completion transition. Completed challenges accept further events but
// progress never moves past the target and the reward never re-fires.
func (c *Challenge) Advance(con Contribution) bool {
	if c.Completed {
		return false
	}

	progress := c.Progress
	switch c.Kind {
	case KindCourseCount:
		if con.CourseCompleted {
			progress++
		}
	case KindQuizScoreCount:
		if con.IsQuiz && con.QuizPercentage >= QuizScoreThreshold {
			progress++
		}
	case KindStudyMinutes:
		progress += con.StudyMinutes
	case KindPerfectQuiz:
		if con.IsQuiz && con.QuizPercentage >= 100 {
			progress = c.Target
		}
	case KindNewCategory:
		if con.NewCategory {
			progress = c.Target
		}
	}

	if progress > c.Target {
		progress = c.Target
	}
	if progress == c.Progress {
		return false
	}

	c.Progress = progress
	at := con.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	c.UpdatedAt = at

	if c.Progress >= c.Target {
		c.Completed = true
		completedAt := at
		c.CompletedAt = &completedAt
		return true
	}
	return false
}
