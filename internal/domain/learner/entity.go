package learner

import (
	"regexp"
	"strings"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Grade classifies a learner by academic year.
type Grade string

const (
	Grade10th     Grade = "10th"
	Grade11th     Grade = "11th"
	Grade12th     Grade = "12th"
	GradeGraduate Grade = "graduate"
	GradeAll      Grade = "all"
)

// IsValid checks that the grade is one of the known values.
func (g Grade) IsValid() bool {
	switch g {
	case Grade10th, Grade11th, Grade12th, GradeGraduate, GradeAll:
		return true
	default:
		return false
	}
}

// Stream classifies a learner by academic stream.
type Stream string

const (
	StreamScience  Stream = "science"
	StreamCommerce Stream = "commerce"
	StreamArts     Stream = "arts"
	StreamAll      Stream = "all"
)

// IsValid checks that the stream is one of the known values.
func (s Stream) IsValid() bool {
	switch s {
	case StreamScience, StreamCommerce, StreamArts, StreamAll:
		return true
	default:
		return false
	}
}

// Role defines what a learner can do on the platform.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// IsValid checks that the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEARNER
// ══════════════════════════════════════════════════════════════════════════════

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Learner is the central entity of the system. It owns a statistics
// snapshot (derived), incrementally maintained engagement counters, and an
// AI interaction history. Progress entries and earned badges live in their
// own repositories keyed by learner ID.
type Learner struct {
	// ID - internal unique identifier (UUID in string form).
	ID shared.LearnerID

	// Email - unique login email, lowercased.
	Email string

	// Name - display name.
	Name string

	// PasswordHash - bcrypt hash of the learner's password.
	PasswordHash string

	// Grade - academic year classification.
	Grade Grade

	// Stream - academic stream classification.
	Stream Stream

	// Role - platform role.
	Role Role

	// Active - soft-deactivation flag. Learners are never hard-deleted in
	// normal operation.
	Active bool

	// Stats - derived statistics snapshot (cache of Recompute).
	Stats StatisticsSnapshot

	// Counters - incrementally maintained engagement counters feeding badge
	// rules and the new-category challenge.
	Counters EngagementCounters

	// AIInteractions - history of AI content generations, newest last,
	// capped at MaxAIInteractions.
	AIInteractions []AIInteraction

	// CreatedAt - registration time. Used as the leaderboard tie-breaker.
	CreatedAt time.Time

	// UpdatedAt - last persisted change.
	UpdatedAt time.Time

	// LastLoginAt - last successful login.
	LastLoginAt time.Time
}

// NewLearner creates a learner with validation. The caller supplies the ID
// (a UUID generated at the application boundary).
func NewLearner(id shared.LearnerID, email, name string, grade Grade, stream Stream, now time.Time) (*Learner, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return nil, shared.ErrInvalidEmail
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("learner", "New", shared.ErrEmptyValue, "name is required")
	}
	if !grade.IsValid() {
		return nil, shared.ErrInvalidGrade
	}
	if !stream.IsValid() {
		return nil, shared.ErrInvalidStream
	}

	return &Learner{
		ID:          id,
		Email:       email,
		Name:        strings.TrimSpace(name),
		Grade:       grade,
		Stream:      stream,
		Role:        RoleStudent,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}, nil
}

// Deactivate soft-deactivates the learner.
func (l *Learner) Deactivate(now time.Time) {
	l.Active = false
	l.UpdatedAt = now
}

// Level returns the learner's current level.
func (l *Learner) Level() shared.Level {
	return l.Stats.Level()
}

// ══════════════════════════════════════════════════════════════════════════════
// AI INTERACTION HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// MaxAIInteractions caps the retained AI interaction history per learner.
const MaxAIInteractions = 50

// AIInteraction records one AI content generation for a learner.
type AIInteraction struct {
	// Topic - requested topic.
	Topic string

	// Subject - requested subject.
	Subject string

	// Difficulty - requested difficulty level.
	Difficulty string

	// GeneratedAt - when the resources were generated.
	GeneratedAt time.Time

	// Rating - learner's 1-5 star rating of the generated content (0 = unrated).
	Rating int

	// Feedback - free-form learner feedback.
	Feedback string
}

// AddAIInteraction appends an interaction, keeping only the most recent
// MaxAIInteractions records.
func (l *Learner) AddAIInteraction(in AIInteraction) {
	l.AIInteractions = append(l.AIInteractions, in)
	if len(l.AIInteractions) > MaxAIInteractions {
		l.AIInteractions = l.AIInteractions[len(l.AIInteractions)-MaxAIInteractions:]
	}
}

// RecentAIInteractions returns up to n of the most recent interactions,
// newest last.
func (l *Learner) RecentAIInteractions(n int) []AIInteraction {
	if n <= 0 || len(l.AIInteractions) <= n {
		return l.AIInteractions
	}
	return l.AIInteractions[len(l.AIInteractions)-n:]
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT COUNTERS
// Maintained incrementally as events arrive, so badge evaluation never has
// to re-scan full history for day/hour/gap conditions.
// ══════════════════════════════════════════════════════════════════════════════

// EngagementCounters holds incrementally maintained per-learner counters.
type EngagementCounters struct {
	// PerfectQuizzes - quizzes scored at 100%.
	PerfectQuizzes int

	// PerfectCourses - courses completed with a 100% score.
	PerfectCourses int

	// NightCompletions - completions in the 22:00-06:00 window.
	NightCompletions int

	// MorningCompletions - completions before 07:00.
	MorningCompletions int

	// CompletionsToday - completions on the day identified by TodayDate.
	CompletionsToday int

	// TodayDate - UTC day the CompletionsToday counter refers to.
	TodayDate time.Time

	// SeenCategories - content categories this learner has ever touched.
	SeenCategories []string

	// LastActivityAt - last qualifying event, used for comeback detection.
	LastActivityAt time.Time
}

// GapDays returns the number of whole days since the last recorded
// activity, or 0 if no activity was ever recorded.
func (c *EngagementCounters) GapDays(now time.Time) int {
	if c.LastActivityAt.IsZero() {
		return 0
	}
	gap := timeutil.DaysBetween(c.LastActivityAt, now)
	if gap < 0 {
		return 0
	}
	return gap
}

// rollDay resets the daily counter when the calendar day changes.
func (c *EngagementCounters) rollDay(at time.Time) {
	day := timeutil.StartOfDay(at)
	if !day.Equal(c.TodayDate) {
		c.TodayDate = day
		c.CompletionsToday = 0
	}
}

// RecordCompletion updates the counters for a completion event. perfect
// indicates a completion with a 100% score.
func (c *EngagementCounters) RecordCompletion(at time.Time, perfect bool) {
	c.rollDay(at)
	c.CompletionsToday++
	if perfect {
		c.PerfectCourses++
	}
	if timeutil.IsNight(at) {
		c.NightCompletions++
	}
	if timeutil.IsEarlyMorning(at) {
		c.MorningCompletions++
	}
	c.LastActivityAt = at
}

// RecordQuiz updates the counters for a quiz event.
func (c *EngagementCounters) RecordQuiz(at time.Time, percentage int) {
	c.rollDay(at)
	if percentage >= 100 {
		c.PerfectQuizzes++
	}
	c.LastActivityAt = at
}

// Touch records a non-completion qualifying event.
func (c *EngagementCounters) Touch(at time.Time) {
	c.rollDay(at)
	c.LastActivityAt = at
}

// ObserveCategory records that the learner touched a content category and
// reports whether this was the first time.
func (c *EngagementCounters) ObserveCategory(category string) bool {
	if category == "" {
		return false
	}
	for _, seen := range c.SeenCategories {
		if seen == category {
			return false
		}
	}
	c.SeenCategories = append(c.SeenCategories, category)
	return true
}
