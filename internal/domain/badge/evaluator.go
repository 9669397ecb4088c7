package badge

import (
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE EVALUATOR
// Pure eligibility check. Recording earned badges and granting XP is the
// gamification flow's responsibility, so the evaluator stays trivially
// idempotent: re-evaluating an already-earned badge is a no-op.
// ══════════════════════════════════════════════════════════════════════════════

// EventContext carries the triggering event's contextual counters, all
// maintained incrementally by learner.EngagementCounters.
type EventContext struct {
	// OccurredAt - when the triggering event happened.
	OccurredAt time.Time

	// IsCompletion - the triggering event is a fresh completion.
	IsCompletion bool

	// DailyCompletions - completions on the event's day, this one included.
	DailyCompletions int

	// PerfectQuizzes - lifetime 100% quiz count.
	PerfectQuizzes int

	// PerfectCourses - lifetime perfect-score completion count.
	PerfectCourses int

	// NightCompletions - lifetime completions in the 22:00-06:00 window.
	NightCompletions int

	// MorningCompletions - lifetime completions before 07:00.
	MorningCompletions int

	// GapDays - whole days of inactivity before the triggering event.
	GapDays int
}

// Evaluator determines newly earned badges from current statistics plus
// event context.
type Evaluator struct {
	catalog []Badge
}

// NewEvaluator creates an evaluator over the fixed catalog.
func NewEvaluator() *Evaluator {
	return &Evaluator{catalog: Catalog()}
}

// Evaluate returns badges newly qualified by the current statistics and
// event context, in catalog order. Badges already present in the earned set
// are skipped. The function is pure: it never touches persistence.
func (ev *Evaluator) Evaluate(stats learner.StatisticsSnapshot, ctx EventContext, earned map[string]bool) []Badge {
	var newly []Badge
	for _, b := range ev.catalog {
		if earned[b.ID] {
			continue
		}
		if ev.qualifies(b.Rule, stats, ctx) {
			newly = append(newly, b)
		}
	}
	return newly
}

// qualifies checks a single rule against statistics and event context.
func (ev *Evaluator) qualifies(r Rule, stats learner.StatisticsSnapshot, ctx EventContext) bool {
	switch r.Kind {
	case RuleModulesCompleted:
		return stats.ModulesCompleted >= r.Threshold
	case RuleTotalXP:
		return stats.TotalXP.Int() >= r.Threshold
	case RuleStreak:
		return stats.CurrentStreak >= r.Threshold
	case RuleDailyCompletions:
		return ctx.IsCompletion && ctx.DailyCompletions >= r.Threshold
	case RulePerfectQuizzes:
		return ctx.PerfectQuizzes >= r.Threshold
	case RulePerfectCourses:
		return ctx.PerfectCourses >= r.Threshold
	case RuleNightCompletions:
		return ctx.IsCompletion && timeutil.IsNight(ctx.OccurredAt) && ctx.NightCompletions >= r.Threshold
	case RuleMorningCompletions:
		return ctx.IsCompletion && timeutil.IsEarlyMorning(ctx.OccurredAt) && ctx.MorningCompletions >= r.Threshold
	case RuleComebackGap:
		return ctx.IsCompletion && ctx.GapDays >= r.Threshold
	default:
		return false
	}
}

// ContextFromCounters builds an EventContext from a learner's counters.
// The counters must already reflect the triggering event.
func ContextFromCounters(c learner.EngagementCounters, occurredAt time.Time, isCompletion bool, gapDays int) EventContext {
	return EventContext{
		OccurredAt:         occurredAt,
		IsCompletion:       isCompletion,
		DailyCompletions:   c.CompletionsToday,
		PerfectQuizzes:     c.PerfectQuizzes,
		PerfectCourses:     c.PerfectCourses,
		NightCompletions:   c.NightCompletions,
		MorningCompletions: c.MorningCompletions,
		GapDays:            gapDays,
	}
}
