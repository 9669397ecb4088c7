package learner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

func TestNewLearner(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	l, err := NewLearner("learner-1", "  Asha@Example.COM ", "Asha", Grade11th, StreamScience, now)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", l.Email)
	assert.Equal(t, RoleStudent, l.Role)
	assert.True(t, l.Active)
	assert.Equal(t, now, l.CreatedAt)

	_, err = NewLearner("learner-2", "not-an-email", "Asha", Grade11th, StreamScience, now)
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = NewLearner("learner-3", "a@b.co", "   ", Grade11th, StreamScience, now)
	assert.Error(t, err)

	_, err = NewLearner("learner-4", "a@b.co", "Asha", Grade("13th"), StreamScience, now)
	assert.ErrorIs(t, err, shared.ErrInvalidGrade)

	_, err = NewLearner("learner-5", "a@b.co", "Asha", Grade11th, Stream("music"), now)
	assert.ErrorIs(t, err, shared.ErrInvalidStream)
}

func TestAddAIInteraction_CapsHistory(t *testing.T) {
	l := &Learner{}
	for i := 0; i < MaxAIInteractions+10; i++ {
		l.AddAIInteraction(AIInteraction{Topic: fmt.Sprintf("topic-%d", i)})
	}

	assert.Len(t, l.AIInteractions, MaxAIInteractions)
	assert.Equal(t, "topic-10", l.AIInteractions[0].Topic)
	assert.Equal(t, fmt.Sprintf("topic-%d", MaxAIInteractions+9), l.AIInteractions[MaxAIInteractions-1].Topic)

	recent := l.RecentAIInteractions(3)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("topic-%d", MaxAIInteractions+7), recent[0].Topic)
}

func TestEngagementCounters_DailyRollOver(t *testing.T) {
	var c EngagementCounters

	day1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.RecordCompletion(day1, false)
	c.RecordCompletion(day1.Add(time.Hour), false)
	assert.Equal(t, 2, c.CompletionsToday)

	day2 := day1.AddDate(0, 0, 1)
	c.RecordCompletion(day2, false)
	assert.Equal(t, 1, c.CompletionsToday)
}

func TestEngagementCounters_TimeOfDayBuckets(t *testing.T) {
	var c EngagementCounters

	night := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC)
	noon := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	c.RecordCompletion(night, true)
	c.RecordCompletion(morning, false)
	c.RecordCompletion(noon, false)

	assert.Equal(t, 1, c.NightCompletions)
	assert.Equal(t, 1, c.MorningCompletions)
	assert.Equal(t, 1, c.PerfectCourses)
}

func TestEngagementCounters_GapDays(t *testing.T) {
	var c EngagementCounters
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, c.GapDays(now))

	c.Touch(time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 8, c.GapDays(now))
}

func TestEngagementCounters_ObserveCategory(t *testing.T) {
	var c EngagementCounters

	assert.True(t, c.ObserveCategory("academic"))
	assert.False(t, c.ObserveCategory("academic"))
	assert.True(t, c.ObserveCategory("soft-skills"))
	assert.False(t, c.ObserveCategory(""))
}

func TestEngagementCounters_PerfectQuizzes(t *testing.T) {
	var c EngagementCounters
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c.RecordQuiz(at, 100)
	c.RecordQuiz(at, 80)
	c.RecordQuiz(at, 100)

	assert.Equal(t, 2, c.PerfectQuizzes)
}
