package redis

import (
	"context"
	"errors"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/leaderboard"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// BoardCache caches the fully ranked leaderboard as a single JSON snapshot.
//
// The snapshot (rather than a sorted set) preserves the ranker's complete
// ordering, including the creation-time tie-break, which a score-only ZSET
// cannot express. The snapshot expires after the configured TTL and is
// dropped eagerly whenever any learner's total XP changes, so readers either
// see a list the ranker produced or fall through to a fresh recompute.
type BoardCache struct {
	cache *Cache
	ttl   time.Duration
	key   string
	log   *logger.Logger
}

// rankedRow is the wire form of one leaderboard entry.
type rankedRow struct {
	LearnerID  string    `json:"learner_id"`
	Name       string    `json:"name"`
	TotalXP    int       `json:"total_xp"`
	Level      int       `json:"level"`
	BadgeCount int       `json:"badge_count"`
	CreatedAt  time.Time `json:"created_at"`
	Rank       int       `json:"rank"`
}

// rankedSnapshot is the cached document.
type rankedSnapshot struct {
	Rows       []rankedRow `json:"rows"`
	ComputedAt time.Time   `json:"computed_at"`
}

// NewBoardCache creates a leaderboard snapshot cache on top of the generic
// Cache client. A non-positive ttl falls back to TTLLeaderboardCache.
func NewBoardCache(cache *Cache, ttl time.Duration, log *logger.Logger) *BoardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &BoardCache{
		cache: cache,
		ttl:   ttl,
		key:   LeaderboardKey(""),
		log:   log.With(logger.Component("leaderboard_cache")),
	}
}

var _ leaderboard.Cache = (*BoardCache)(nil)

// GetRanked returns the cached ranked list, or a miss when the snapshot is
// absent or unreadable. Deserialization failures are treated as misses so a
// corrupt snapshot degrades to a recompute instead of an error.
func (b *BoardCache) GetRanked(ctx context.Context) ([]leaderboard.Entry, bool, error) {
	var snap rankedSnapshot
	err := b.cache.Get(ctx, b.key, &snap)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		if errors.Is(err, ErrCacheSerialization) {
			b.log.Warn("dropping unreadable leaderboard snapshot", logger.Err(err))
			_ = b.cache.Delete(ctx, b.key)
			return nil, false, nil
		}
		return nil, false, err
	}

	entries := make([]leaderboard.Entry, len(snap.Rows))
	for i, r := range snap.Rows {
		entries[i] = leaderboard.Entry{
			LearnerID:  r.LearnerID,
			Name:       r.Name,
			TotalXP:    r.TotalXP,
			Level:      r.Level,
			BadgeCount: r.BadgeCount,
			CreatedAt:  r.CreatedAt,
			Rank:       r.Rank,
		}
	}
	return entries, true, nil
}

// SetRanked stores a freshly ranked list with the configured TTL.
func (b *BoardCache) SetRanked(ctx context.Context, entries []leaderboard.Entry) error {
	snap := rankedSnapshot{
		Rows:       make([]rankedRow, len(entries)),
		ComputedAt: time.Now().UTC(),
	}
	for i, e := range entries {
		snap.Rows[i] = rankedRow{
			LearnerID:  e.LearnerID,
			Name:       e.Name,
			TotalXP:    e.TotalXP,
			Level:      e.Level,
			BadgeCount: e.BadgeCount,
			CreatedAt:  e.CreatedAt,
			Rank:       e.Rank,
		}
	}
	return b.cache.Set(ctx, b.key, snap, b.ttl)
}

// Invalidate drops the cached snapshot.
func (b *BoardCache) Invalidate(ctx context.Context) error {
	return b.cache.Delete(ctx, b.key)
}
