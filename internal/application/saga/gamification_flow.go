// Package saga contains multi-step application flows that coordinate
// several domain modules. The steps run after a ledger mutation has
// durably committed; a failing step is logged and skipped, never rolled
// back into the ledger.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/challenge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/leaderboard"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION FLOW
// The one logical follow-up step after a progress mutation: engagement
// counters, statistics recompute, badge evaluation, daily challenge
// advancement, level-change detection. All steps for a learner run under
// that learner's lock, so follow-ups never interleave per learner and a
// subsequent read observes the whole step or none of it.
// ══════════════════════════════════════════════════════════════════════════════

// FollowUpInput carries everything the flow needs from the triggering
// ledger mutation.
type FollowUpInput struct {
	// LearnerID - whose state to advance.
	LearnerID shared.LearnerID

	// ContentID - the content the triggering event referred to.
	ContentID shared.ContentID

	// Kind - the triggering event kind.
	Kind event.Kind

	// OccurredAt - canonical event time.
	OccurredAt time.Time

	// CompletedNow - the mutation caused a fresh completion transition.
	CompletedNow bool

	// Score / HasScore - the score recorded by the mutation, if any.
	Score    int
	HasScore bool

	// StudyMinutes - minutes contributed by the event.
	StudyMinutes int

	// Category - content category, empty for AI sessions and bare events.
	Category string
}

// GamificationFlowConfig toggles optional steps.
type GamificationFlowConfig struct {
	BadgesEnabled     bool
	ChallengesEnabled bool
}

// DefaultGamificationFlowConfig returns the default configuration.
func DefaultGamificationFlowConfig() GamificationFlowConfig {
	return GamificationFlowConfig{BadgesEnabled: true, ChallengesEnabled: true}
}

// GamificationFlow executes the follow-up step.
type GamificationFlow struct {
	learnerRepo   learner.Repository
	progressRepo  learner.ProgressRepository
	badgeRepo     badge.EarnedRepository
	challengeRepo challenge.Repository
	evaluator     *badge.Evaluator
	bus           shared.EventBus
	boards        leaderboard.Cache // optional, may be nil
	learnerLocks  *keymutex.KeyMutex
	log           *logger.Logger
	config        GamificationFlowConfig
}

// NewGamificationFlow creates the flow. boards may be nil when no
// leaderboard cache is configured.
func NewGamificationFlow(
	learnerRepo learner.Repository,
	progressRepo learner.ProgressRepository,
	badgeRepo badge.EarnedRepository,
	challengeRepo challenge.Repository,
	bus shared.EventBus,
	boards leaderboard.Cache,
	learnerLocks *keymutex.KeyMutex,
	log *logger.Logger,
	config GamificationFlowConfig,
) *GamificationFlow {
	return &GamificationFlow{
		learnerRepo:   learnerRepo,
		progressRepo:  progressRepo,
		badgeRepo:     badgeRepo,
		challengeRepo: challengeRepo,
		evaluator:     badge.NewEvaluator(),
		bus:           bus,
		boards:        boards,
		learnerLocks:  learnerLocks,
		log:           log.With(logger.Component("gamification_flow")),
		config:        config,
	}
}

// Run executes the follow-up step for one ledger mutation. The returned
// error reports the first hard failure; partial progress before it is
// kept (the ledger mutation already succeeded and derived state is
// recomputable on the next event or read).
func (f *GamificationFlow) Run(ctx context.Context, in FollowUpInput) error {
	f.learnerLocks.Lock(in.LearnerID.String())
	defer f.learnerLocks.Unlock(in.LearnerID.String())

	l, err := f.learnerRepo.GetByID(ctx, in.LearnerID)
	if err != nil {
		return fmt.Errorf("gamification_flow: load learner: %w", err)
	}

	oldLevel := l.Stats.Level()
	oldStreak := l.Stats.CurrentStreak
	oldXP := l.Stats.TotalXP.Int()

	// Gap is measured against the previous activity, so it has to be read
	// before the counters record this event.
	gapDays := l.Counters.GapDays(in.OccurredAt)
	newCategory := l.Counters.ObserveCategory(in.Category)

	switch {
	case in.CompletedNow:
		perfect := in.HasScore && in.Score >= 100
		l.Counters.RecordCompletion(in.OccurredAt, perfect)
		if in.Kind == event.KindQuizCompleted {
			l.Counters.RecordQuiz(in.OccurredAt, in.Score)
		}
	case in.Kind == event.KindQuizCompleted:
		l.Counters.RecordQuiz(in.OccurredAt, in.Score)
	default:
		l.Counters.Touch(in.OccurredAt)
	}

	bonus, err := f.currentBonus(ctx, in.LearnerID)
	if err != nil {
		return fmt.Errorf("gamification_flow: load bonus XP: %w", err)
	}

	entries, err := f.progressRepo.ListByLearner(ctx, in.LearnerID)
	if err != nil {
		return fmt.Errorf("gamification_flow: list progress: %w", err)
	}

	stats := learner.Recompute(entries, bonus)

	if f.config.BadgesEnabled {
		newBonus, badgeErr := f.evaluateBadges(ctx, l, stats, in, gapDays, bonus)
		if badgeErr != nil {
			// Badges are best-effort; the rest of the step still runs.
			f.log.Error("badge evaluation failed",
				logger.LearnerID(in.LearnerID.String()), logger.Err(badgeErr))
		} else {
			bonus = newBonus
		}
	}

	if f.config.ChallengesEnabled {
		newBonus, chErr := f.advanceChallenge(ctx, l, in, newCategory, bonus)
		if chErr != nil {
			f.log.Error("challenge advancement failed",
				logger.LearnerID(in.LearnerID.String()), logger.Err(chErr))
		} else {
			bonus = newBonus
		}
	}

	// Final recompute folds in any XP the badge and challenge steps added,
	// so exactly one level comparison happens per triggering event.
	stats = learner.Recompute(entries, bonus)
	l.Stats = stats
	l.UpdatedAt = in.OccurredAt

	if err := f.learnerRepo.Update(ctx, l); err != nil {
		return fmt.Errorf("gamification_flow: save learner: %w", err)
	}

	// One gain event per trigger, with badge and challenge rewards folded
	// into the amount.
	if gained := stats.TotalXP.Int() - oldXP; gained > 0 {
		source := "activity"
		if in.CompletedNow {
			source = "completion"
		}
		_ = f.bus.Publish(shared.NewXPGainedEvent(
			in.LearnerID.String(), gained, stats.TotalXP.Int(), source))
	}

	if stats.CurrentStreak != oldStreak {
		_ = f.bus.Publish(shared.NewStreakUpdatedEvent(
			in.LearnerID.String(), stats.CurrentStreak, stats.LongestStreak))
	}

	newLevel := stats.Level()
	if newLevel != oldLevel {
		_ = f.bus.Publish(shared.NewLevelChangedEvent(
			in.LearnerID.String(), oldLevel.Int(), newLevel.Int()))
	}

	if f.boards != nil {
		if err := f.boards.Invalidate(ctx); err != nil {
			f.log.Warn("leaderboard cache invalidation failed", logger.Err(err))
		}
	}

	return nil
}

// currentBonus sums badge and challenge XP from their source collections.
func (f *GamificationFlow) currentBonus(ctx context.Context, id shared.LearnerID) (learner.BonusXP, error) {
	badgeXP, err := f.badgeRepo.SumXP(ctx, id)
	if err != nil {
		return learner.BonusXP{}, err
	}
	challengeXP, err := f.challengeRepo.SumCompletedRewards(ctx, id)
	if err != nil {
		return learner.BonusXP{}, err
	}
	return learner.BonusXP{Badges: badgeXP, Challenges: challengeXP}, nil
}

// evaluateBadges runs the badge catalog against the fresh statistics and
// records newly earned badges as one batch. Returns the bonus including
// the newly recorded badge XP.
func (f *GamificationFlow) evaluateBadges(
	ctx context.Context,
	l *learner.Learner,
	stats learner.StatisticsSnapshot,
	in FollowUpInput,
	gapDays int,
	bonus learner.BonusXP,
) (learner.BonusXP, error) {
	earned, err := f.badgeRepo.EarnedSet(ctx, in.LearnerID)
	if err != nil {
		return bonus, err
	}

	evCtx := badge.ContextFromCounters(l.Counters, in.OccurredAt, in.CompletedNow, gapDays)
	newly := f.evaluator.Evaluate(stats, evCtx, earned)
	if len(newly) == 0 {
		return bonus, nil
	}

	batch := make([]badge.EarnedBadge, 0, len(newly))
	for _, b := range newly {
		batch = append(batch, badge.EarnedBadge{
			LearnerID: in.LearnerID.String(),
			BadgeID:   b.ID,
			EarnedAt:  in.OccurredAt,
		})
	}

	// All badges from one event are recorded before any are reported.
	if err := f.badgeRepo.RecordBatch(ctx, in.LearnerID, batch); err != nil {
		return bonus, err
	}

	for _, b := range newly {
		bonus.Badges += b.XPReward
		_ = f.bus.Publish(shared.NewBadgeEarnedEvent(
			in.LearnerID.String(), b.ID, b.Title, b.XPReward))
		f.log.Info("badge earned",
			logger.LearnerID(in.LearnerID.String()),
			logger.BadgeID(b.ID),
			logger.XPAmount(b.XPReward))
	}

	return bonus, nil
}

// advanceChallenge loads or creates today's challenge and applies the
// event's contribution. Returns the bonus including a freshly granted
// challenge reward.
func (f *GamificationFlow) advanceChallenge(
	ctx context.Context,
	l *learner.Learner,
	in FollowUpInput,
	newCategory bool,
	bonus learner.BonusXP,
) (learner.BonusXP, error) {
	day := timeutil.StartOfDay(in.OccurredAt)

	ch, err := f.challengeRepo.GetForDay(ctx, in.LearnerID, day)
	if err != nil {
		if !shared.IsNotFound(err) {
			return bonus, err
		}
		ch = challenge.NewForDay(in.LearnerID, day)
	}

	completedNow := ch.Advance(challenge.Contribution{
		CourseCompleted: in.CompletedNow && in.Kind == event.KindCourseCompleted,
		IsQuiz:          in.Kind == event.KindQuizCompleted,
		QuizPercentage:  in.Score,
		StudyMinutes:    in.StudyMinutes,
		NewCategory:     newCategory,
		At:              in.OccurredAt,
	})

	if err := f.challengeRepo.Save(ctx, ch); err != nil {
		return bonus, err
	}

	if completedNow {
		bonus.Challenges += ch.XPReward
		_ = f.bus.Publish(shared.NewChallengeCompletedEvent(
			in.LearnerID.String(), ch.Title, ch.XPReward))
		f.log.Info("daily challenge completed",
			logger.LearnerID(in.LearnerID.String()),
			logger.String("challenge", ch.TemplateID),
			logger.XPAmount(ch.XPReward))
	}

	return bonus, nil
}
