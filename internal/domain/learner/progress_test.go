package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

func statusPtr(s Status) *Status       { return &s }
func pctPtr(p int) *shared.Percentage  { v := shared.Percentage(p); return &v }
func intPtr(v int) *int                { return &v }

func TestMerge_FreshCompletion(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)

	out := entry.Merge(Patch{
		Status:               statusPtr(StatusCompleted),
		CompletionPercentage: pctPtr(100),
		TimeSpentMinutes:     25,
		ObservedAt:           now,
	}, 20)

	assert.True(t, out.CompletedNow)
	assert.Equal(t, 20, out.XPStamped)
	assert.True(t, out.StatusChanged)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, 20, entry.XPEarned)
	require.NotNil(t, entry.CompletedAt)
	assert.Equal(t, now, *entry.CompletedAt)
	assert.Equal(t, 25, entry.TimeSpentMinutes)
}

func TestMerge_RepeatedCompletionIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)

	first := entry.Merge(Patch{Status: statusPtr(StatusCompleted), ObservedAt: now}, 20)
	require.True(t, first.CompletedNow)
	completedAt := *entry.CompletedAt

	second := entry.Merge(Patch{
		Status:     statusPtr(StatusCompleted),
		ObservedAt: now.Add(time.Hour),
	}, 20)

	assert.False(t, second.CompletedNow)
	assert.Zero(t, second.XPStamped)
	assert.Equal(t, 20, entry.XPEarned)
	assert.Equal(t, completedAt, *entry.CompletedAt)
}

func TestMerge_CompletedIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)
	entry.Merge(Patch{Status: statusPtr(StatusCompleted), ObservedAt: now}, 20)

	out := entry.Merge(Patch{
		Status:           statusPtr(StatusInProgress),
		TimeSpentMinutes: 10,
		ObservedAt:       now.Add(time.Hour),
	}, 20)

	assert.False(t, out.StatusChanged)
	assert.Equal(t, StatusCompleted, entry.Status)
	// Additive fields still apply on a terminal entry.
	assert.Equal(t, 10, entry.TimeSpentMinutes)
}

func TestMerge_TimeSpentIsAdditive(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)

	entry.Merge(Patch{TimeSpentMinutes: 15, ObservedAt: now}, 0)
	entry.Merge(Patch{TimeSpentMinutes: 10, ObservedAt: now.Add(time.Minute)}, 0)

	assert.Equal(t, 25, entry.TimeSpentMinutes)
}

func TestMerge_PercentageClamped(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)

	entry.Merge(Patch{CompletionPercentage: pctPtr(150), ObservedAt: now}, 0)
	assert.Equal(t, shared.Percentage(100), entry.CompletionPercentage)

	entry.Merge(Patch{CompletionPercentage: pctPtr(-5), ObservedAt: now}, 0)
	assert.Equal(t, shared.Percentage(0), entry.CompletionPercentage)
}

func TestMerge_ScoreLastWriteWins(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("quiz-algebra-basics", now)

	out := entry.Merge(Patch{Score: intPtr(70), ObservedAt: now}, 0)
	assert.True(t, out.ScoreChanged)
	assert.True(t, entry.HasScore)
	assert.Equal(t, 70, entry.Score)

	out = entry.Merge(Patch{Score: intPtr(95), ObservedAt: now}, 0)
	assert.True(t, out.ScoreChanged)
	assert.Equal(t, 95, entry.Score)

	out = entry.Merge(Patch{Score: intPtr(95), ObservedAt: now}, 0)
	assert.False(t, out.ScoreChanged)
}

func TestMerge_NilFieldsLeaveEntryUntouched(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	entry := NewProgressEntry("course-algebra-basics", now)
	entry.Merge(Patch{
		Status:               statusPtr(StatusInProgress),
		CompletionPercentage: pctPtr(40),
		Score:                intPtr(60),
		ObservedAt:           now,
	}, 0)

	entry.Merge(Patch{TimeSpentMinutes: 5, ObservedAt: now.Add(time.Minute)}, 0)

	assert.Equal(t, StatusInProgress, entry.Status)
	assert.Equal(t, shared.Percentage(40), entry.CompletionPercentage)
	assert.Equal(t, 60, entry.Score)
}

func TestPatch_Validate(t *testing.T) {
	bad := Status("paused")
	assert.ErrorIs(t, Patch{Status: &bad}.Validate(), shared.ErrInvalidProgressType)
	assert.ErrorIs(t, Patch{TimeSpentMinutes: -1}.Validate(), shared.ErrNegativeTimeSpent)
	assert.NoError(t, Patch{Status: statusPtr(StatusCompleted)}.Validate())
}
