// Package query contains read operations (CQRS - Queries). Queries never
// modify state, with one deliberate exception: the daily challenge read
// materializes today's instance on first access so every read within the
// day sees the same challenge.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Full per-learner view: statistics snapshot, level, progress entries and
// the recent AI interaction history.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the query parameters.
type GetProgressQuery struct {
	// LearnerID - whose progress to fetch.
	LearnerID shared.LearnerID
}

// ProgressEntryDTO is the outward shape of one progress entry.
type ProgressEntryDTO struct {
	ContentID            string     `json:"content_id"`
	Status               string     `json:"status"`
	CompletionPercentage int        `json:"completion_percentage"`
	TimeSpentMinutes     int        `json:"time_spent_minutes"`
	Score                *int       `json:"score,omitempty"`
	XPEarned             int        `json:"xp_earned"`
	AIResourcesGenerated bool       `json:"ai_resources_generated"`
	LastAccessedAt       time.Time  `json:"last_accessed_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// StatisticsDTO is the outward shape of the statistics snapshot.
type StatisticsDTO struct {
	TotalXP               int       `json:"total_xp"`
	Level                 int       `json:"level"`
	ProgressToNextLevel   int       `json:"progress_to_next_level"`
	ModulesCompleted      int       `json:"modules_completed"`
	CurrentStreak         int       `json:"current_streak"`
	LongestStreak         int       `json:"longest_streak"`
	TotalStudyTimeMinutes int       `json:"total_study_time_minutes"`
	AverageScore          float64   `json:"average_score"`
	LastActiveAt          time.Time `json:"last_active_at"`
}

// AIInteractionDTO is the outward shape of one AI interaction record.
type AIInteractionDTO struct {
	Topic       string    `json:"topic"`
	Subject     string    `json:"subject,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressResult contains the result.
type GetProgressResult struct {
	LearnerID      string             `json:"learner_id"`
	Name           string             `json:"name"`
	Statistics     StatisticsDTO      `json:"statistics"`
	Entries        []ProgressEntryDTO `json:"entries"`
	AIInteractions []AIInteractionDTO `json:"ai_interactions,omitempty"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	learnerRepo  learner.Repository
	progressRepo learner.ProgressRepository

	// learnerLocks serializes reads against the gamification follow-up,
	// so a read observes committed follow-ups in full, never mid-step.
	learnerLocks *keymutex.KeyMutex
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	learnerRepo learner.Repository,
	progressRepo learner.ProgressRepository,
	learnerLocks *keymutex.KeyMutex,
) *GetProgressHandler {
	return &GetProgressHandler{
		learnerRepo:  learnerRepo,
		progressRepo: progressRepo,
		learnerLocks: learnerLocks,
	}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*GetProgressResult, error) {
	if q.LearnerID.IsEmpty() {
		return nil, shared.ErrMissingUserID
	}

	h.learnerLocks.Lock(q.LearnerID.String())
	defer h.learnerLocks.Unlock(q.LearnerID.String())

	l, err := h.learnerRepo.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	entries, err := h.progressRepo.ListByLearner(ctx, q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: list entries: %w", err)
	}

	result := &GetProgressResult{
		LearnerID:   l.ID.String(),
		Name:        l.Name,
		Statistics:  statisticsDTO(l.Stats),
		Entries:     make([]ProgressEntryDTO, 0, len(entries)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, e := range entries {
		dto := ProgressEntryDTO{
			ContentID:            e.ContentID.String(),
			Status:               string(e.Status),
			CompletionPercentage: e.CompletionPercentage.Int(),
			TimeSpentMinutes:     e.TimeSpentMinutes,
			XPEarned:             e.XPEarned,
			AIResourcesGenerated: e.AIResourcesGenerated,
			LastAccessedAt:       e.LastAccessedAt,
			CompletedAt:          e.CompletedAt,
		}
		if e.HasScore {
			score := e.Score
			dto.Score = &score
		}
		result.Entries = append(result.Entries, dto)
	}

	for _, in := range l.RecentAIInteractions(learner.MaxAIInteractions) {
		result.AIInteractions = append(result.AIInteractions, AIInteractionDTO{
			Topic:       in.Topic,
			Subject:     in.Subject,
			Difficulty:  in.Difficulty,
			GeneratedAt: in.GeneratedAt,
		})
	}

	return result, nil
}

func statisticsDTO(s learner.StatisticsSnapshot) StatisticsDTO {
	return StatisticsDTO{
		TotalXP:               s.TotalXP.Int(),
		Level:                 s.Level().Int(),
		ProgressToNextLevel:   s.TotalXP.ProgressToNextLevel(),
		ModulesCompleted:      s.ModulesCompleted,
		CurrentStreak:         s.CurrentStreak,
		LongestStreak:         s.LongestStreak,
		TotalStudyTimeMinutes: s.TotalStudyTimeMinutes,
		AverageScore:          s.AverageScore,
		LastActiveAt:          s.LastActiveAt,
	}
}
