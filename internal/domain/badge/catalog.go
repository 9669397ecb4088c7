// Package badge implements the badge catalog and the eligibility evaluator.
// Badges are a fixed, declarative rule table: each catalog entry pairs an ID
// with a rule kind and its parameters, so new badges are additive
// configuration, not new code paths.
package badge

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// Rule kinds form a closed tagged variant; the evaluator switches over them
// exhaustively. Day, hour, and gap conditions read incrementally maintained
// counters from the event context - never a re-scan of full history.
// ══════════════════════════════════════════════════════════════════════════════

// RuleKind identifies what a badge rule measures.
type RuleKind int

const (
	// RuleModulesCompleted - total completed modules reaches the threshold.
	RuleModulesCompleted RuleKind = iota

	// RuleTotalXP - total XP reaches the threshold.
	RuleTotalXP

	// RuleStreak - current daily streak reaches the threshold.
	RuleStreak

	// RuleDailyCompletions - completions on the triggering event's day
	// reach the threshold.
	RuleDailyCompletions

	// RulePerfectQuizzes - lifetime count of 100% quizzes reaches the threshold.
	RulePerfectQuizzes

	// RulePerfectCourses - lifetime count of courses completed with a 100%
	// score reaches the threshold.
	RulePerfectCourses

	// RuleNightCompletions - the triggering completion happened at night
	// (22:00-06:00) and lifetime night completions reach the threshold.
	RuleNightCompletions

	// RuleMorningCompletions - the triggering completion happened before
	// 07:00 and lifetime morning completions reach the threshold.
	RuleMorningCompletions

	// RuleComebackGap - the triggering completion happened after a gap of
	// at least the threshold number of inactive days.
	RuleComebackGap
)

// Rule is a declarative eligibility rule: a kind plus its threshold.
type Rule struct {
	Kind      RuleKind
	Threshold int
}

// Rarity tiers a badge by how hard it is to earn.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge is an immutable catalog entry.
type Badge struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Rule        Rule
	XPReward    int
	Rarity      Rarity
}

// EarnedBadge records that a learner earned a badge. A given badge ID can
// be earned by a learner at most once, and earning is never revoked.
type EarnedBadge struct {
	LearnerID string
	BadgeID   string
	EarnedAt  time.Time
}

// Catalog returns the fixed badge catalog in declaration order. Declaration
// order is the tie-breaker when multiple badges qualify from a single
// event: it determines the sequence of reward application and notification
// emission.
func Catalog() []Badge {
	return []Badge{
		{
			ID:          "first_steps",
			Title:       "First Steps",
			Description: "Complete your first course",
			Icon:        "🎯",
			Rule:        Rule{Kind: RuleModulesCompleted, Threshold: 1},
			XPReward:    10,
			Rarity:      RarityCommon,
		},
		{
			ID:          "quiz_master",
			Title:       "Quiz Master",
			Description: "Score 100% on 3 quizzes",
			Icon:        "🧠",
			Rule:        Rule{Kind: RulePerfectQuizzes, Threshold: 3},
			XPReward:    25,
			Rarity:      RarityRare,
		},
		{
			ID:          "speed_learner",
			Title:       "Speed Learner",
			Description: "Complete 5 courses in one day",
			Icon:        "⚡",
			Rule:        Rule{Kind: RuleDailyCompletions, Threshold: 5},
			XPReward:    30,
			Rarity:      RarityEpic,
		},
		{
			ID:          "streak_champion",
			Title:       "Streak Champion",
			Description: "Maintain a 7-day learning streak",
			Icon:        "🔥",
			Rule:        Rule{Kind: RuleStreak, Threshold: 7},
			XPReward:    35,
			Rarity:      RarityEpic,
		},
		{
			ID:          "knowledge_seeker",
			Title:       "Knowledge Seeker",
			Description: "Earn 500 total XP",
			Icon:        "📚",
			Rule:        Rule{Kind: RuleTotalXP, Threshold: 500},
			XPReward:    40,
			Rarity:      RarityLegendary,
		},
		{
			ID:          "perfectionist",
			Title:       "Perfectionist",
			Description: "Complete 10 courses with 100% accuracy",
			Icon:        "💎",
			Rule:        Rule{Kind: RulePerfectCourses, Threshold: 10},
			XPReward:    50,
			Rarity:      RarityLegendary,
		},
		{
			ID:          "night_owl",
			Title:       "Night Owl",
			Description: "Complete 3 courses after 10 PM",
			Icon:        "🦉",
			Rule:        Rule{Kind: RuleNightCompletions, Threshold: 3},
			XPReward:    15,
			Rarity:      RarityUncommon,
		},
		{
			ID:          "early_bird",
			Title:       "Early Bird",
			Description: "Complete 3 courses before 7 AM",
			Icon:        "🐦",
			Rule:        Rule{Kind: RuleMorningCompletions, Threshold: 3},
			XPReward:    15,
			Rarity:      RarityUncommon,
		},
		{
			ID:          "comeback_king",
			Title:       "Comeback King",
			Description: "Return after 7+ days and complete a course",
			Icon:        "👑",
			Rule:        Rule{Kind: RuleComebackGap, Threshold: 7},
			XPReward:    25,
			Rarity:      RarityRare,
		},
	}
}

// Find returns the catalog badge with the given ID.
func Find(id string) (Badge, bool) {
	for _, b := range Catalog() {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}
