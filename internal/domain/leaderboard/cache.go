package leaderboard

import "context"

// Cache is a read-through view of the ranked list. The ranker remains the
// source of truth; the cache only amortizes the population scan and is
// invalidated whenever any learner's total XP changes. A stale or
// unavailable cache degrades to a full recompute, never to wrong ranks.
type Cache interface {
	// GetRanked returns the cached ranked list. The second result is
	// false on a cache miss.
	GetRanked(ctx context.Context) ([]Entry, bool, error)

	// SetRanked stores a freshly ranked list.
	SetRanked(ctx context.Context, entries []Entry) error

	// Invalidate drops the cached list.
	Invalidate(ctx context.Context) error
}
