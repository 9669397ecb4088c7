package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
	"github.com/vidya-hub/vidya-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// AI GENERATION TRACKER
// AI resource generation is the one high-latency collaborator. Its progress
// update is queued after the response and processed out-of-band with its
// own retry budget: a tracking failure is logged and retried, never
// surfaced to, and never delays, the AI response itself.
// ══════════════════════════════════════════════════════════════════════════════

// TrackAIGenerationCommand records that AI resources were generated for a
// learner session.
type TrackAIGenerationCommand struct {
	// LearnerID - the requesting learner.
	LearnerID shared.LearnerID

	// SessionID - the AI session identifier, without the "ai-" prefix.
	SessionID string

	// Topic / Subject / Difficulty - what was requested.
	Topic      string
	Subject    string
	Difficulty string

	// Metadata - opaque payload describing the generated resources.
	Metadata map[string]interface{}

	// GeneratedAt - when the generation finished; zero means now.
	GeneratedAt time.Time
}

// Validate validates the command.
func (c TrackAIGenerationCommand) Validate() error {
	if c.LearnerID.IsEmpty() {
		return shared.ErrMissingUserID
	}
	if c.SessionID == "" {
		return shared.NewDomainError("ai_tracker", "Track", shared.ErrEmptyValue, "session ID is required")
	}
	return nil
}

// ContentID returns the ephemeral ledger content ID for the session.
func (c TrackAIGenerationCommand) ContentID() shared.ContentID {
	return shared.ContentID(shared.AISessionPrefix + c.SessionID)
}

// AIGenerationTracker processes tracking commands from a bounded queue.
type AIGenerationTracker struct {
	applyHandler *ApplyProgressHandler
	learnerRepo  learner.Repository
	learnerLocks *keymutex.KeyMutex
	bus          shared.EventBus
	retrier      *retry.Retrier
	log          *logger.Logger

	queue chan TrackAIGenerationCommand

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewAIGenerationTracker creates the tracker and starts its worker.
// queueSize bounds the number of pending tracking tasks; when the queue is
// full new tasks are dropped with a log line rather than blocking the
// caller.
func NewAIGenerationTracker(
	applyHandler *ApplyProgressHandler,
	learnerRepo learner.Repository,
	learnerLocks *keymutex.KeyMutex,
	bus shared.EventBus,
	log *logger.Logger,
	queueSize int,
) *AIGenerationTracker {
	if queueSize <= 0 {
		queueSize = 256
	}

	t := &AIGenerationTracker{
		applyHandler: applyHandler,
		learnerRepo:  learnerRepo,
		learnerLocks: learnerLocks,
		bus:          bus,
		retrier:      retry.BackgroundTaskRetrier(),
		log:          log.With(logger.Component("ai_tracker")),
		queue:        make(chan TrackAIGenerationCommand, queueSize),
		done:         make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// Enqueue submits a tracking command. It never blocks and never returns a
// processing error; validation failures are reported immediately since
// they would never succeed on retry.
func (t *AIGenerationTracker) Enqueue(cmd TrackAIGenerationCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("ai_tracker: validation failed: %w", err)
	}
	if cmd.GeneratedAt.IsZero() {
		cmd.GeneratedAt = time.Now().UTC()
	}

	select {
	case t.queue <- cmd:
		return nil
	default:
		t.log.Warn("tracking queue full, dropping task",
			logger.LearnerID(cmd.LearnerID.String()),
			logger.String("session_id", cmd.SessionID))
		return nil
	}
}

// Close stops the worker after draining queued tasks.
func (t *AIGenerationTracker) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
}

func (t *AIGenerationTracker) run() {
	defer t.wg.Done()

	for {
		select {
		case cmd := <-t.queue:
			t.process(cmd)
		case <-t.done:
			// Drain what is already queued before stopping.
			for {
				select {
				case cmd := <-t.queue:
					t.process(cmd)
				default:
					return
				}
			}
		}
	}
}

// process applies the tracking task with retries. A task that exhausts its
// retry budget is logged and dropped; the AI response it belongs to has
// long since been delivered.
func (t *AIGenerationTracker) process(cmd TrackAIGenerationCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err := t.retrier.Do(ctx, func(ctx context.Context) error {
		if err := t.track(ctx, cmd); err != nil {
			if shared.IsValidation(err) || shared.IsNotFound(err) {
				return retry.Permanent(err)
			}
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		t.log.Error("AI generation tracking failed",
			logger.LearnerID(cmd.LearnerID.String()),
			logger.String("session_id", cmd.SessionID),
			logger.Err(err))
	}
}

func (t *AIGenerationTracker) track(ctx context.Context, cmd TrackAIGenerationCommand) error {
	_, err := t.applyHandler.Handle(ctx, ApplyProgressCommand{
		Event: event.LearningEvent{
			LearnerID:  cmd.LearnerID,
			ContentID:  cmd.ContentID(),
			Kind:       event.KindAIResourcesGenerated,
			OccurredAt: cmd.GeneratedAt,
			Metadata:   cmd.Metadata,
		},
	})
	if err != nil {
		return err
	}

	// Record the interaction in the learner's capped history.
	t.learnerLocks.Lock(cmd.LearnerID.String())
	defer t.learnerLocks.Unlock(cmd.LearnerID.String())

	l, err := t.learnerRepo.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return err
	}

	l.AddAIInteraction(learner.AIInteraction{
		Topic:       cmd.Topic,
		Subject:     cmd.Subject,
		Difficulty:  cmd.Difficulty,
		GeneratedAt: cmd.GeneratedAt,
	})
	l.UpdatedAt = cmd.GeneratedAt

	if err := t.learnerRepo.Update(ctx, l); err != nil {
		return err
	}

	_ = t.bus.Publish(shared.NewAIResourcesTrackedEvent(
		cmd.LearnerID.String(), cmd.SessionID, cmd.Topic))

	return nil
}
