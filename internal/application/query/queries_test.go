package query

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/memory"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

func seedLearner(t *testing.T, store *memory.Store, id string, xp int, createdAt time.Time) {
	t.Helper()
	l, err := learner.NewLearner(shared.LearnerID(id), id+"@example.com", "Learner "+id,
		learner.Grade11th, learner.StreamScience, createdAt)
	require.NoError(t, err)
	l.Stats.TotalXP = shared.XP(xp)
	require.NoError(t, store.Learners().Create(context.Background(), l))
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLearner(t, store, "learner-1", 0, base)

	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := learner.NewProgressEntry("quiz-1", at)
	status := learner.StatusCompleted
	score := 85
	entry.Merge(learner.Patch{Status: &status, Score: &score, TimeSpentMinutes: 12, ObservedAt: at}, 15)
	require.NoError(t, store.Progress().Save(ctx, "learner-1", entry))

	h := NewGetProgressHandler(store.Learners(), store.Progress(), keymutex.New())

	res, err := h.Handle(ctx, GetProgressQuery{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Equal(t, "learner-1", res.LearnerID)
	require.Len(t, res.Entries, 1)
	dto := res.Entries[0]
	assert.Equal(t, "quiz-1", dto.ContentID)
	assert.Equal(t, "completed", dto.Status)
	require.NotNil(t, dto.Score)
	assert.Equal(t, 85, *dto.Score)
	assert.Equal(t, 15, dto.XPEarned)
	require.NotNil(t, dto.CompletedAt)

	_, err = h.Handle(ctx, GetProgressQuery{LearnerID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, GetProgressQuery{})
	assert.ErrorIs(t, err, shared.ErrMissingUserID)
}

func TestGetLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	seedLearner(t, store, "top", 300, late)
	seedLearner(t, store, "tied-earlier", 300, early)
	seedLearner(t, store, "third", 150, early)

	log := logger.New(logger.Options{Output: io.Discard})
	h := NewGetLeaderboardHandler(store.Learners(), store.Badges(), nil, log)

	res, err := h.Handle(ctx, GetLeaderboardQuery{Limit: 2, RequesterID: "third"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "tied-earlier", res.Entries[0].LearnerID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "top", res.Entries[1].LearnerID)
	// The requester's own rank is reported even outside the page.
	assert.Equal(t, 3, res.RequesterRank)

	offset, err := h.Handle(ctx, GetLeaderboardQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, offset.Entries, 1)
	assert.Equal(t, "third", offset.Entries[0].LearnerID)
}

func TestGetLeaderboardQuery_Validate(t *testing.T) {
	q := GetLeaderboardQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, 20, q.Limit)

	q = GetLeaderboardQuery{Limit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.Limit)

	assert.Error(t, (&GetLeaderboardQuery{Limit: -1}).Validate())
	assert.Error(t, (&GetLeaderboardQuery{Offset: -1}).Validate())
}

func TestGetDailyChallenge_MaterializesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedLearner(t, store, "learner-1", 0, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	h := NewGetDailyChallengeHandler(store.Learners(), store.Challenges(), keymutex.New())
	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	first, err := h.Handle(ctx, GetDailyChallengeQuery{LearnerID: "learner-1", Day: day})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), first.Day)
	assert.False(t, first.Completed)

	// Any read within the same day sees the identical instance.
	second, err := h.Handle(ctx, GetDailyChallengeQuery{LearnerID: "learner-1", Day: day.Add(5 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, first.TemplateID, second.TemplateID)

	_, err = h.Handle(ctx, GetDailyChallengeQuery{LearnerID: "ghost", Day: day})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetBadges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedLearner(t, store, "learner-1", 0, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, store.Badges().RecordBatch(ctx, "learner-1", []badge.EarnedBadge{
		{LearnerID: "learner-1", BadgeID: "first_steps", EarnedAt: at},
	}))

	h := NewGetBadgesHandler(store.Learners(), store.Badges())

	res, err := h.Handle(ctx, GetBadgesQuery{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Len(t, res.Badges, len(badge.Catalog()))
	assert.Equal(t, 1, res.EarnedCount)
	assert.Equal(t, "first_steps", res.Badges[0].ID)
	assert.True(t, res.Badges[0].Earned)
	require.NotNil(t, res.Badges[0].EarnedAt)
	assert.False(t, res.Badges[1].Earned)

	earnedOnly, err := h.Handle(ctx, GetBadgesQuery{LearnerID: "learner-1", EarnedOnly: true})
	require.NoError(t, err)
	require.Len(t, earnedOnly.Badges, 1)
	assert.Equal(t, "first_steps", earnedOnly.Badges[0].ID)
}
