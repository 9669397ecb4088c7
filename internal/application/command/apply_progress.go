// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/saga"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/content"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
	"github.com/vidya-hub/vidya-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY PROGRESS COMMAND
// The ledger mutation. Upserts the (learner, content) progress entry under
// the merge policy, emits CompletionOccurred on a fresh completion, and
// hands the gamification follow-up to the flow. The ledger write is the
// transactional boundary: the caller sees success once it commits,
// independent of follow-up outcome.
// ══════════════════════════════════════════════════════════════════════════════

// FollowUp runs the gamification step after a committed ledger mutation.
type FollowUp interface {
	Run(ctx context.Context, in saga.FollowUpInput) error
}

// ApplyProgressCommand carries one normalized learning event into the ledger.
type ApplyProgressCommand struct {
	// Event - the canonical learning event to apply.
	Event event.LearningEvent
}

// Validate validates the command. A bare session start is the one kind
// allowed to arrive without content.
func (c ApplyProgressCommand) Validate() error {
	if c.Event.LearnerID.IsEmpty() {
		return shared.ErrMissingUserID
	}
	if !c.Event.Kind.IsValid() {
		return shared.ErrUnknownEventKind
	}
	if c.Event.ContentID == "" && c.Event.Kind != event.KindSessionStarted {
		return shared.ErrMissingContentID
	}
	return nil
}

// ApplyProgressResult reports what the mutation did.
type ApplyProgressResult struct {
	// Entry - the entry after the merge.
	Entry *learner.ProgressEntry

	// Outcome - what the merge changed.
	Outcome learner.MergeOutcome

	// Category - resolved content category, empty for AI sessions.
	Category string
}

// ApplyProgressHandlerConfig contains configuration for the handler.
type ApplyProgressHandlerConfig struct {
	// AsyncFollowUp - run the gamification step in the background instead
	// of inline. The per-learner lock inside the flow still serializes
	// follow-ups, so a later read observes a committed step or none.
	AsyncFollowUp bool

	// FollowUpTimeout bounds a background follow-up.
	FollowUpTimeout time.Duration
}

// DefaultApplyProgressHandlerConfig returns default configuration.
func DefaultApplyProgressHandlerConfig() ApplyProgressHandlerConfig {
	return ApplyProgressHandlerConfig{
		AsyncFollowUp:   false,
		FollowUpTimeout: 30 * time.Second,
	}
}

// ApplyProgressHandler handles the ApplyProgressCommand.
type ApplyProgressHandler struct {
	learnerRepo  learner.Repository
	progressRepo learner.ProgressRepository
	catalog      content.Catalog
	pairLocks    *keymutex.KeyMutex
	retrier      *retry.Retrier
	bus          shared.EventBus
	followUp     FollowUp
	log          *logger.Logger
	config       ApplyProgressHandlerConfig
}

// NewApplyProgressHandler creates a new ApplyProgressHandler.
func NewApplyProgressHandler(
	learnerRepo learner.Repository,
	progressRepo learner.ProgressRepository,
	catalog content.Catalog,
	pairLocks *keymutex.KeyMutex,
	bus shared.EventBus,
	followUp FollowUp,
	log *logger.Logger,
	config ApplyProgressHandlerConfig,
) *ApplyProgressHandler {
	if config.FollowUpTimeout == 0 {
		config = DefaultApplyProgressHandlerConfig()
	}

	return &ApplyProgressHandler{
		learnerRepo:  learnerRepo,
		progressRepo: progressRepo,
		catalog:      catalog,
		pairLocks:    pairLocks,
		retrier:      retry.ConflictRetrier(),
		bus:          bus,
		followUp:     followUp,
		log:          log.With(logger.Component("apply_progress")),
		config:       config,
	}
}

// Handle executes the apply progress command.
func (h *ApplyProgressHandler) Handle(ctx context.Context, cmd ApplyProgressCommand) (*ApplyProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("apply_progress: validation failed: %w", err)
	}

	ev := cmd.Event

	if _, err := h.learnerRepo.GetByID(ctx, ev.LearnerID); err != nil {
		return nil, fmt.Errorf("apply_progress: %w", err)
	}

	// A content-less session start has no ledger entry to merge. Its study
	// minutes and engagement touch still feed the follow-up.
	if ev.ContentID == "" {
		h.runFollowUp(ctx, saga.FollowUpInput{
			LearnerID:    ev.LearnerID,
			Kind:         ev.Kind,
			OccurredAt:   ev.OccurredAt,
			StudyMinutes: ev.TimeSpentMinutes,
		})
		return &ApplyProgressResult{}, nil
	}

	// AI session IDs are ephemeral and never resolve against the catalog;
	// everything else must.
	xpReward := content.DefaultXPReward
	category := ""
	if !ev.ContentID.IsAISession() {
		desc, err := h.catalog.Resolve(ctx, ev.ContentID)
		if err != nil {
			return nil, fmt.Errorf("apply_progress: %w", err)
		}
		xpReward = desc.XPReward
		category = desc.Category.String()
	}

	patch := patchFromEvent(ev)

	// Mutations to the same pair serialize here; different pairs proceed
	// independently.
	key := ev.LearnerID.String() + ":" + ev.ContentID.String()
	h.pairLocks.Lock(key)

	var (
		entry   *learner.ProgressEntry
		outcome learner.MergeOutcome
	)
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		e, err := h.progressRepo.Get(ctx, ev.LearnerID, ev.ContentID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			e = learner.NewProgressEntry(ev.ContentID, ev.OccurredAt)
		}

		outcome = e.Merge(patch, xpReward)

		if err := h.progressRepo.Save(ctx, ev.LearnerID, e); err != nil {
			if errors.Is(err, shared.ErrConcurrentModification) {
				return retry.Retryable(err)
			}
			return err
		}

		entry = e
		return nil
	})
	h.pairLocks.Unlock(key)

	if err != nil {
		return nil, fmt.Errorf("apply_progress: ledger write failed: %w", err)
	}

	if outcome.CompletedNow {
		_ = h.bus.Publish(shared.NewCompletionOccurredEvent(
			ev.LearnerID.String(), ev.ContentID.String(), outcome.XPStamped, entry.Score))
		h.log.Info("completion recorded",
			logger.LearnerID(ev.LearnerID.String()),
			logger.ContentID(ev.ContentID.String()),
			logger.XPAmount(outcome.XPStamped))
	}

	h.runFollowUp(ctx, saga.FollowUpInput{
		LearnerID:    ev.LearnerID,
		ContentID:    ev.ContentID,
		Kind:         ev.Kind,
		OccurredAt:   ev.OccurredAt,
		CompletedNow: outcome.CompletedNow,
		Score:        entry.Score,
		HasScore:     entry.HasScore,
		StudyMinutes: ev.TimeSpentMinutes,
		Category:     category,
	})

	return &ApplyProgressResult{Entry: entry, Outcome: outcome, Category: category}, nil
}

// runFollowUp invokes the gamification step. Follow-up failures are logged
// and never surfaced: the ledger write already succeeded and derived state
// is recomputable.
func (h *ApplyProgressHandler) runFollowUp(ctx context.Context, in saga.FollowUpInput) {
	if h.followUp == nil {
		return
	}

	if !h.config.AsyncFollowUp {
		if err := h.followUp.Run(ctx, in); err != nil {
			h.log.Error("follow-up step failed",
				logger.LearnerID(in.LearnerID.String()), logger.Err(err))
		}
		return
	}

	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.FollowUpTimeout)
		defer cancel()
		if err := h.followUp.Run(bg, in); err != nil {
			h.log.Error("follow-up step failed",
				logger.LearnerID(in.LearnerID.String()), logger.Err(err))
		}
	}()
}

// patchFromEvent derives the ledger patch implied by an event kind.
func patchFromEvent(ev event.LearningEvent) learner.Patch {
	p := learner.Patch{
		CompletionPercentage: nil,
		TimeSpentMinutes:     ev.TimeSpentMinutes,
		Score:                ev.Score,
		ObservedAt:           ev.OccurredAt,
	}

	if ev.CompletionPercentage != nil {
		pct := shared.Percentage(*ev.CompletionPercentage)
		p.CompletionPercentage = &pct
	}

	switch ev.Kind {
	case event.KindContentStarted:
		status := learner.StatusInProgress
		p.Status = &status
	case event.KindCourseCompleted, event.KindQuizCompleted:
		status := learner.StatusCompleted
		p.Status = &status
		if p.CompletionPercentage == nil {
			full := shared.Percentage(100)
			p.CompletionPercentage = &full
		}
	case event.KindAIResourcesGenerated:
		status := learner.StatusCompleted
		p.Status = &status
		p.AIResourcesData = ev.Metadata
	}

	return p
}
