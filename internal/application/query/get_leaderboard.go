package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/leaderboard"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// The ranking is recomputed per request from statistics snapshots; the
// cache only short-circuits the population scan and is dropped whenever
// any learner's XP changes.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Limit - number of entries (default 20, max 100).
	Limit int

	// Offset - pagination offset.
	Offset int

	// RequesterID - when set, the result includes this learner's own rank
	// even if they fall outside the page.
	RequesterID shared.LearnerID
}

// Validate validates and normalizes the query parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardEntryDTO is one row of the leaderboard.
type LeaderboardEntryDTO struct {
	Rank       int    `json:"rank"`
	LearnerID  string `json:"learner_id"`
	Name       string `json:"name"`
	TotalXP    int    `json:"total_xp"`
	Level      int    `json:"level"`
	BadgeCount int    `json:"badge_count"`
}

// GetLeaderboardResult contains the result.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - total ranked population.
	TotalCount int `json:"total_count"`

	// RequesterRank - the requester's 1-based rank, 0 if unknown.
	RequesterRank int `json:"requester_rank,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	learnerRepo learner.Repository
	badgeRepo   badge.EarnedRepository
	cache       leaderboard.Cache // optional, may be nil
	log         *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler. cache may
// be nil when no leaderboard cache is configured.
func NewGetLeaderboardHandler(
	learnerRepo learner.Repository,
	badgeRepo badge.EarnedRepository,
	cache leaderboard.Cache,
	log *logger.Logger,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		learnerRepo: learnerRepo,
		badgeRepo:   badgeRepo,
		cache:       cache,
		log:         log.With(logger.Component("get_leaderboard")),
	}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	ranked, err := h.rankedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{
		Entries:     make([]LeaderboardEntryDTO, 0, q.Limit),
		TotalCount:  len(ranked),
		GeneratedAt: time.Now().UTC(),
	}

	end := q.Offset + q.Limit
	if end > len(ranked) {
		end = len(ranked)
	}
	for i := q.Offset; i < end; i++ {
		e := ranked[i]
		result.Entries = append(result.Entries, LeaderboardEntryDTO{
			Rank:       e.Rank,
			LearnerID:  e.LearnerID,
			Name:       e.Name,
			TotalXP:    e.TotalXP,
			Level:      shared.XP(e.TotalXP).Level().Int(),
			BadgeCount: e.BadgeCount,
		})
	}

	if !q.RequesterID.IsEmpty() {
		result.RequesterRank = leaderboard.RankOf(ranked, q.RequesterID.String())
	}

	return result, nil
}

// rankedEntries returns the full ranked list, read through the cache.
func (h *GetLeaderboardHandler) rankedEntries(ctx context.Context) ([]leaderboard.Entry, error) {
	if h.cache != nil {
		cached, ok, err := h.cache.GetRanked(ctx)
		if err != nil {
			h.log.Warn("leaderboard cache read failed", logger.Err(err))
		} else if ok {
			return cached, nil
		}
	}

	learners, err := h.learnerRepo.List(ctx, learner.ListOptions{})
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(learners))
	for _, l := range learners {
		badgeCount := 0
		if earned, err := h.badgeRepo.EarnedSet(ctx, l.ID); err == nil {
			badgeCount = len(earned)
		}
		entries = append(entries, leaderboard.Entry{
			LearnerID:  l.ID.String(),
			Name:       l.Name,
			TotalXP:    l.Stats.TotalXP.Int(),
			Level:      l.Stats.Level().Int(),
			BadgeCount: badgeCount,
			CreatedAt:  l.CreatedAt,
		})
	}

	ranked := leaderboard.Rank(entries)

	if h.cache != nil {
		if err := h.cache.SetRanked(ctx, ranked); err != nil {
			h.log.Warn("leaderboard cache write failed", logger.Err(err))
		}
	}

	return ranked, nil
}
