package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// newChallengeOfKind builds a challenge instance directly from a template of
// the wanted kind, bypassing the hash selection.
func newChallengeOfKind(t *testing.T, kind Kind) *Challenge {
	t.Helper()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, tpl := range Templates() {
		if tpl.Kind == kind {
			return &Challenge{
				LearnerID:  "learner-1",
				Day:        day,
				TemplateID: tpl.ID,
				Title:      tpl.Title,
				Kind:       tpl.Kind,
				Target:     tpl.Target,
				XPReward:   tpl.XPReward,
				CreatedAt:  day,
				UpdatedAt:  day,
			}
		}
	}
	t.Fatalf("no template of kind %s", kind)
	return nil
}

func TestSelectTemplate_IsDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first := SelectTemplate("learner-1", day)
	second := SelectTemplate("learner-1", day)
	assert.Equal(t, first.ID, second.ID)

	// Any instant within the same day maps to the same template.
	evening := day.Add(23 * time.Hour)
	assert.Equal(t, first.ID, SelectTemplate("learner-1", timeutil.StartOfDay(evening)).ID)
}

func TestSelectTemplate_VariesAcrossLearnersAndDays(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seen := map[string]bool{}
	for _, id := range []shared.LearnerID{"a", "b", "c", "d", "e", "f", "g", "h"} {
		seen[SelectTemplate(id, day).ID] = true
	}
	assert.Greater(t, len(seen), 1, "template selection should spread across learners")

	seen = map[string]bool{}
	for i := 0; i < 8; i++ {
		seen[SelectTemplate("learner-1", day.AddDate(0, 0, i)).ID] = true
	}
	assert.Greater(t, len(seen), 1, "template selection should spread across days")
}

func TestNewForDay_NormalizesToStartOfDay(t *testing.T) {
	at := time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC)
	c := NewForDay("learner-1", at)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), c.Day)
	assert.Equal(t, SelectTemplate("learner-1", at).ID, c.TemplateID)
	assert.False(t, c.Completed)
	assert.Zero(t, c.Progress)
}

func TestAdvance_CourseCount(t *testing.T) {
	c := newChallengeOfKind(t, KindCourseCount)
	require.Equal(t, 3, c.Target)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, c.Advance(Contribution{CourseCompleted: true, At: at}))
	assert.False(t, c.Advance(Contribution{CourseCompleted: true, At: at}))
	assert.Equal(t, 2, c.Progress)

	// A non-completion event does not advance a course-count challenge.
	assert.False(t, c.Advance(Contribution{StudyMinutes: 20, At: at}))
	assert.Equal(t, 2, c.Progress)

	completed := c.Advance(Contribution{CourseCompleted: true, At: at})
	assert.True(t, completed)
	assert.True(t, c.Completed)
	require.NotNil(t, c.CompletedAt)
	assert.Equal(t, at, *c.CompletedAt)
}

func TestAdvance_CompletionFiresOnce(t *testing.T) {
	c := newChallengeOfKind(t, KindPerfectQuiz)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.True(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 100, At: at}))
	assert.False(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 100, At: at.Add(time.Hour)}))
	assert.Equal(t, c.Target, c.Progress)
	assert.Equal(t, at, *c.CompletedAt)
}

func TestAdvance_QuizScoreThreshold(t *testing.T) {
	c := newChallengeOfKind(t, KindQuizScoreCount)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 79, At: at}))
	assert.Zero(t, c.Progress)

	assert.False(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 80, At: at}))
	assert.Equal(t, 1, c.Progress)

	assert.True(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 95, At: at}))
}

func TestAdvance_StudyMinutesClampedToTarget(t *testing.T) {
	c := newChallengeOfKind(t, KindStudyMinutes)
	require.Equal(t, 30, c.Target)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.True(t, c.Advance(Contribution{StudyMinutes: 90, At: at}))
	assert.Equal(t, 30, c.Progress)
}

func TestAdvance_NewCategory(t *testing.T) {
	c := newChallengeOfKind(t, KindNewCategory)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, c.Advance(Contribution{NewCategory: false, At: at}))
	assert.True(t, c.Advance(Contribution{NewCategory: true, At: at}))
	assert.True(t, c.Completed)
}

func TestAdvance_PerfectQuizRequiresFullScore(t *testing.T) {
	c := newChallengeOfKind(t, KindPerfectQuiz)
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, c.Advance(Contribution{IsQuiz: true, QuizPercentage: 99, At: at}))
	assert.False(t, c.Completed)
}
