package query

import (
	"context"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGES QUERY
// Returns the full catalog with the learner's earned state, in catalog
// declaration order.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesQuery contains the query parameters.
type GetBadgesQuery struct {
	// LearnerID - whose badges to fetch.
	LearnerID shared.LearnerID

	// EarnedOnly - return only earned badges.
	EarnedOnly bool
}

// BadgeDTO is the outward shape of one badge.
type BadgeDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Rarity      string     `json:"rarity"`
	XPReward    int        `json:"xp_reward"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}

// GetBadgesResult contains the result.
type GetBadgesResult struct {
	Badges      []BadgeDTO `json:"badges"`
	EarnedCount int        `json:"earned_count"`
	TotalCount  int        `json:"total_count"`
}

// GetBadgesHandler handles the GetBadgesQuery.
type GetBadgesHandler struct {
	learnerRepo learner.Repository
	badgeRepo   badge.EarnedRepository
}

// NewGetBadgesHandler creates a new GetBadgesHandler.
func NewGetBadgesHandler(learnerRepo learner.Repository, badgeRepo badge.EarnedRepository) *GetBadgesHandler {
	return &GetBadgesHandler{learnerRepo: learnerRepo, badgeRepo: badgeRepo}
}

// Handle executes the query.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadgesQuery) (*GetBadgesResult, error) {
	if q.LearnerID.IsEmpty() {
		return nil, shared.ErrMissingUserID
	}

	if _, err := h.learnerRepo.GetByID(ctx, q.LearnerID); err != nil {
		return nil, fmt.Errorf("get_badges: %w", err)
	}

	earned, err := h.badgeRepo.ListByLearner(ctx, q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_badges: %w", err)
	}

	earnedAt := make(map[string]time.Time, len(earned))
	for _, e := range earned {
		earnedAt[e.BadgeID] = e.EarnedAt
	}

	catalog := badge.Catalog()
	result := &GetBadgesResult{
		Badges:      make([]BadgeDTO, 0, len(catalog)),
		EarnedCount: len(earnedAt),
		TotalCount:  len(catalog),
	}

	for _, b := range catalog {
		at, ok := earnedAt[b.ID]
		if q.EarnedOnly && !ok {
			continue
		}
		dto := BadgeDTO{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Icon:        b.Icon,
			Rarity:      string(b.Rarity),
			XPReward:    b.XPReward,
			Earned:      ok,
		}
		if ok {
			t := at
			dto.EarnedAt = &t
		}
		result.Badges = append(result.Badges, dto)
	}

	return result, nil
}
