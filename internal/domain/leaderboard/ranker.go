// Package leaderboard implements the on-demand leaderboard ranker. Ranking
// is a pure function of the learner population's statistics snapshots; it
// persists nothing and is recomputed per request (optionally behind a
// read-through cache in the infrastructure layer).
package leaderboard

import (
	"sort"
	"time"
)

// Entry is one ranked row of the leaderboard.
type Entry struct {
	// LearnerID - whose row this is.
	LearnerID string

	// Name - display name.
	Name string

	// TotalXP - the ranking key.
	TotalXP int

	// Level - derived display value.
	Level int

	// BadgeCount - number of earned badges.
	BadgeCount int

	// CreatedAt - account creation time; the deterministic tie-breaker.
	CreatedAt time.Time

	// Rank - 1-based position, assigned by Rank.
	Rank int
}

// Rank sorts entries descending by XP - ties broken by earlier account
// creation, then by learner ID so the order is fully deterministic - and
// assigns 1-based ranks. An empty population yields an empty (non-nil)
// ranked list.
func Rank(entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalXP != ranked[j].TotalXP {
			return ranked[i].TotalXP > ranked[j].TotalXP
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].LearnerID < ranked[j].LearnerID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankOf returns the rank of the given learner within ranked entries, or 0
// if the learner is absent.
func RankOf(ranked []Entry, learnerID string) int {
	for _, e := range ranked {
		if e.LearnerID == learnerID {
			return e.Rank
		}
	}
	return 0
}

// Top returns the first n ranked entries.
func Top(ranked []Entry, n int) []Entry {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
