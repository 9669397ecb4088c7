package query

import (
	"context"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/challenge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY CHALLENGE QUERY
// First read of the day materializes the instance, so every subsequent
// read (and the gamification flow) sees the same challenge; there is no
// re-roll within a day.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyChallengeQuery contains the query parameters.
type GetDailyChallengeQuery struct {
	// LearnerID - whose challenge to fetch.
	LearnerID shared.LearnerID

	// Day - the calendar day; zero means today.
	Day time.Time
}

// DailyChallengeDTO is the outward shape of a daily challenge.
type DailyChallengeDTO struct {
	TemplateID  string     `json:"template_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Kind        string     `json:"kind"`
	Target      int        `json:"target"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	XPReward    int        `json:"xp_reward"`
	Day         time.Time  `json:"day"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetDailyChallengeHandler handles the GetDailyChallengeQuery.
type GetDailyChallengeHandler struct {
	learnerRepo   learner.Repository
	challengeRepo challenge.Repository
	learnerLocks  *keymutex.KeyMutex
}

// NewGetDailyChallengeHandler creates a new GetDailyChallengeHandler.
func NewGetDailyChallengeHandler(
	learnerRepo learner.Repository,
	challengeRepo challenge.Repository,
	learnerLocks *keymutex.KeyMutex,
) *GetDailyChallengeHandler {
	return &GetDailyChallengeHandler{
		learnerRepo:   learnerRepo,
		challengeRepo: challengeRepo,
		learnerLocks:  learnerLocks,
	}
}

// Handle executes the query.
func (h *GetDailyChallengeHandler) Handle(ctx context.Context, q GetDailyChallengeQuery) (*DailyChallengeDTO, error) {
	if q.LearnerID.IsEmpty() {
		return nil, shared.ErrMissingUserID
	}

	if _, err := h.learnerRepo.GetByID(ctx, q.LearnerID); err != nil {
		return nil, fmt.Errorf("get_daily_challenge: %w", err)
	}

	day := q.Day
	if day.IsZero() {
		day = timeutil.Now()
	}
	day = timeutil.StartOfDay(day)

	// Materialization races with the gamification flow for the same
	// learner; the learner lock keeps the instance unique.
	h.learnerLocks.Lock(q.LearnerID.String())
	defer h.learnerLocks.Unlock(q.LearnerID.String())

	ch, err := h.challengeRepo.GetForDay(ctx, q.LearnerID, day)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_daily_challenge: %w", err)
		}
		ch = challenge.NewForDay(q.LearnerID, day)
		if err := h.challengeRepo.Save(ctx, ch); err != nil {
			return nil, fmt.Errorf("get_daily_challenge: materialize: %w", err)
		}
	}

	return &DailyChallengeDTO{
		TemplateID:  ch.TemplateID,
		Title:       ch.Title,
		Description: ch.Description,
		Kind:        string(ch.Kind),
		Target:      ch.Target,
		Progress:    ch.Progress,
		Completed:   ch.Completed,
		XPReward:    ch.XPReward,
		Day:         ch.Day,
		CompletedAt: ch.CompletedAt,
	}, nil
}
