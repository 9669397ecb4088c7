package challenge

import (
	"hash/fnv"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// Template is an immutable daily challenge blueprint.
type Template struct {
	ID          string
	Title       string
	Description string
	Kind        Kind
	Target      int
	XPReward    int
}

// Templates returns the fixed challenge template table.
func Templates() []Template {
	return []Template{
		{
			ID:          "speed_run",
			Title:       "Speed Run",
			Description: "Complete 3 courses today",
			Kind:        KindCourseCount,
			Target:      3,
			XPReward:    50,
		},
		{
			ID:          "quiz_master",
			Title:       "Quiz Master",
			Description: "Score 80%+ on 2 quizzes",
			Kind:        KindQuizScoreCount,
			Target:      2,
			XPReward:    30,
		},
		{
			ID:          "streak_builder",
			Title:       "Streak Builder",
			Description: "Study for 30+ minutes",
			Kind:        KindStudyMinutes,
			Target:      30,
			XPReward:    25,
		},
		{
			ID:          "perfect_score",
			Title:       "Perfect Score",
			Description: "Get 100% on any quiz",
			Kind:        KindPerfectQuiz,
			Target:      1,
			XPReward:    40,
		},
		{
			ID:          "knowledge_explorer",
			Title:       "Knowledge Explorer",
			Description: "Try a new subject category",
			Kind:        KindNewCategory,
			Target:      1,
			XPReward:    35,
		},
	}
}

// SelectTemplate picks the template for a learner and day. The choice is a
// deterministic hash of (learner, day): reads within the same day always
// see the same template, and different learners rotate through different
// challenges.
func SelectTemplate(learnerID shared.LearnerID, day time.Time) Template {
	templates := Templates()

	h := fnv.New32a()
	h.Write([]byte(learnerID.String()))
	h.Write([]byte(timeutil.DayKey(day)))

	return templates[int(h.Sum32())%len(templates)]
}
