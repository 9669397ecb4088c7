package learner

import (
	"sort"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS SNAPSHOT
// Derived state. The snapshot is a cache: it must always be re-derivable
// bit-for-bit from the progress entry collection plus the bonus XP sources
// (earned badges and completed challenges). It is never authored directly.
// ══════════════════════════════════════════════════════════════════════════════

// StatisticsSnapshot holds per-learner cumulative statistics.
type StatisticsSnapshot struct {
	// TotalXP - completion XP plus badge and challenge bonus XP.
	TotalXP shared.XP

	// ModulesCompleted - count of entries in the completed state.
	ModulesCompleted int

	// CurrentStreak - consecutive calendar days, ending at the most recent
	// completion day, with at least one completion each.
	CurrentStreak int

	// LongestStreak - the longest such run over all history.
	LongestStreak int

	// TotalStudyTimeMinutes - sum of time spent across all entries,
	// regardless of status.
	TotalStudyTimeMinutes int

	// AverageScore - mean score over entries with at least one recorded
	// score; 0 if none.
	AverageScore float64

	// LastActiveAt - most recent entry access time.
	LastActiveAt time.Time
}

// Level returns the learner's level derived from total XP.
func (s StatisticsSnapshot) Level() shared.Level {
	return s.TotalXP.Level()
}

// BonusXP carries XP earned outside progress entries. Both components are
// re-derivable from their own source collections (earned badges, completed
// challenges), so the snapshot stays a pure function of source data.
type BonusXP struct {
	// Badges - sum of XP rewards over the learner's earned badges.
	Badges int

	// Challenges - sum of rewards over the learner's completed daily challenges.
	Challenges int
}

// Total returns the combined bonus XP.
func (b BonusXP) Total() int {
	return b.Badges + b.Challenges
}

// Recompute derives a statistics snapshot from the full progress entry
// collection. It is deterministic and side-effect-free: calling it twice on
// the same entries yields an identical snapshot, so redundant invocation is
// always safe.
func Recompute(entries []*ProgressEntry, bonus BonusXP) StatisticsSnapshot {
	var snap StatisticsSnapshot

	completionXP := 0
	scoreSum := 0
	scored := 0
	var completionDays []time.Time

	for _, e := range entries {
		snap.TotalStudyTimeMinutes += e.TimeSpentMinutes

		if e.LastAccessedAt.After(snap.LastActiveAt) {
			snap.LastActiveAt = e.LastAccessedAt
		}

		if e.HasScore {
			scoreSum += e.Score
			scored++
		}

		if e.IsCompleted() {
			snap.ModulesCompleted++
			completionXP += e.XPEarned
			if e.CompletedAt != nil {
				completionDays = append(completionDays, *e.CompletedAt)
			}
		}
	}

	snap.TotalXP = shared.XP(completionXP + bonus.Total())

	if scored > 0 {
		snap.AverageScore = float64(scoreSum) / float64(scored)
	}

	snap.CurrentStreak, snap.LongestStreak = computeStreaks(completionDays)

	return snap
}

// computeStreaks derives the current and longest streak from completion
// timestamps. Each timestamp is collapsed to its UTC calendar day; a streak
// is a run of consecutive days, and the current streak is the run ending at
// the most recent completion day (any gap day breaks it).
func computeStreaks(completions []time.Time) (current, longest int) {
	if len(completions) == 0 {
		return 0, 0
	}

	seen := make(map[time.Time]struct{}, len(completions))
	for _, t := range completions {
		seen[timeutil.StartOfDay(t)] = struct{}{}
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if timeutil.DaysBetween(days[i-1], days[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	// run now holds the streak ending at the most recent completion day.
	return run, longest
}
