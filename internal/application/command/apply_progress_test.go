package command

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/saga"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/content"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/memory"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

type recordBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordBus) Subscribe(shared.EventType, shared.EventHandler) error { return nil }

func (b *recordBus) countType(t shared.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type applyFixture struct {
	store   *memory.Store
	bus     *recordBus
	handler *ApplyProgressHandler
}

func newApplyFixture(t *testing.T) *applyFixture {
	t.Helper()
	store := memory.NewStore()
	bus := &recordBus{}
	log := logger.New(logger.Options{Output: io.Discard})

	catalog := content.NewStaticCatalog(
		content.Descriptor{ID: "course-1", Title: "Course One", Category: content.CategoryAcademic, XPReward: 20},
		content.Descriptor{ID: "quiz-1", Title: "Quiz One", Category: content.CategoryAcademic, XPReward: 15},
	)

	handler := NewApplyProgressHandler(
		store.Learners(), store.Progress(), catalog, keymutex.New(),
		bus, nil, log, DefaultApplyProgressHandlerConfig())

	l, err := learner.NewLearner("learner-1", "a@b.co", "Learner",
		learner.Grade11th, learner.StreamScience, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.Learners().Create(context.Background(), l))

	return &applyFixture{store: store, bus: bus, handler: handler}
}

func completionEvent(contentID string, at time.Time) event.LearningEvent {
	return event.LearningEvent{
		LearnerID:  "learner-1",
		ContentID:  shared.ContentID(contentID),
		Kind:       event.KindCourseCompleted,
		OccurredAt: at,
	}
}

func TestApplyProgress_CompletionStampsCatalogXP(t *testing.T) {
	f := newApplyFixture(t)
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	res, err := f.handler.Handle(context.Background(), ApplyProgressCommand{
		Event: completionEvent("course-1", at),
	})
	require.NoError(t, err)

	assert.True(t, res.Outcome.CompletedNow)
	assert.Equal(t, 20, res.Outcome.XPStamped)
	assert.Equal(t, learner.StatusCompleted, res.Entry.Status)
	assert.Equal(t, shared.Percentage(100), res.Entry.CompletionPercentage)
	assert.Equal(t, "academic", res.Category)
	assert.Equal(t, 1, f.bus.countType(shared.EventCompletionOccurred))
}

func TestApplyProgress_RepeatedCompletionIsIdempotent(t *testing.T) {
	f := newApplyFixture(t)
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, ApplyProgressCommand{Event: completionEvent("course-1", at)})
	require.NoError(t, err)

	res, err := f.handler.Handle(ctx, ApplyProgressCommand{Event: completionEvent("course-1", at.Add(time.Hour))})
	require.NoError(t, err)

	assert.False(t, res.Outcome.CompletedNow)
	assert.Equal(t, 20, res.Entry.XPEarned)
	assert.Equal(t, 1, f.bus.countType(shared.EventCompletionOccurred))
}

func TestApplyProgress_UnknownContentRejected(t *testing.T) {
	f := newApplyFixture(t)

	_, err := f.handler.Handle(context.Background(), ApplyProgressCommand{
		Event: completionEvent("course-unlisted", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)),
	})
	assert.True(t, shared.IsNotFound(err))

	// Nothing was written for the rejected event.
	_, err = f.store.Progress().Get(context.Background(), "learner-1", "course-unlisted")
	assert.True(t, shared.IsNotFound(err))
}

func TestApplyProgress_UnknownLearnerRejected(t *testing.T) {
	f := newApplyFixture(t)

	ev := completionEvent("course-1", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	ev.LearnerID = "ghost"
	_, err := f.handler.Handle(context.Background(), ApplyProgressCommand{Event: ev})
	assert.True(t, shared.IsNotFound(err))
}

func TestApplyProgress_AISessionBypassesCatalog(t *testing.T) {
	f := newApplyFixture(t)
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	res, err := f.handler.Handle(context.Background(), ApplyProgressCommand{
		Event: event.LearningEvent{
			LearnerID:  "learner-1",
			ContentID:  "ai-session-xyz",
			Kind:       event.KindAIResourcesGenerated,
			OccurredAt: at,
			Metadata:   map[string]interface{}{"topic": "algebra"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, content.DefaultXPReward, res.Outcome.XPStamped)
	assert.Empty(t, res.Category)
	assert.True(t, res.Entry.AIResourcesGenerated)
}

func TestApplyProgress_ContentStartedMarksInProgress(t *testing.T) {
	f := newApplyFixture(t)
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	pct := 30

	res, err := f.handler.Handle(context.Background(), ApplyProgressCommand{
		Event: event.LearningEvent{
			LearnerID:            "learner-1",
			ContentID:            "course-1",
			Kind:                 event.KindContentStarted,
			CompletionPercentage: &pct,
			TimeSpentMinutes:     10,
			OccurredAt:           at,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, learner.StatusInProgress, res.Entry.Status)
	assert.Equal(t, shared.Percentage(30), res.Entry.CompletionPercentage)
	assert.False(t, res.Outcome.CompletedNow)
	assert.Zero(t, f.bus.countType(shared.EventCompletionOccurred))
}

func TestApplyProgress_ConcurrentUpdatesLoseNothing(t *testing.T) {
	f := newApplyFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.handler.Handle(ctx, ApplyProgressCommand{
				Event: event.LearningEvent{
					LearnerID:        "learner-1",
					ContentID:        "course-1",
					Kind:             event.KindContentStarted,
					TimeSpentMinutes: 1,
					OccurredAt:       at.Add(time.Duration(i) * time.Second),
				},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entry, err := f.store.Progress().Get(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, workers, entry.TimeSpentMinutes)
}

type captureFollowUp struct {
	mu     sync.Mutex
	inputs []saga.FollowUpInput
}

func (c *captureFollowUp) Run(_ context.Context, in saga.FollowUpInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, in)
	return nil
}

func TestApplyProgress_BareSessionSkipsLedgerFeedsFollowUp(t *testing.T) {
	f := newApplyFixture(t)
	follow := &captureFollowUp{}
	f.handler.followUp = follow
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	res, err := f.handler.Handle(ctx, ApplyProgressCommand{
		Event: event.LearningEvent{
			LearnerID:        "learner-1",
			Kind:             event.KindSessionStarted,
			TimeSpentMinutes: 25,
			OccurredAt:       at,
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.False(t, res.Outcome.CompletedNow)

	// No phantom ledger entry for the content-less session.
	entries, err := f.store.Progress().ListByLearner(ctx, "learner-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Len(t, follow.inputs, 1)
	assert.Equal(t, event.KindSessionStarted, follow.inputs[0].Kind)
	assert.Equal(t, 25, follow.inputs[0].StudyMinutes)
}

func TestApplyProgress_ValidationFailures(t *testing.T) {
	f := newApplyFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, ApplyProgressCommand{Event: event.LearningEvent{
		ContentID: "course-1", Kind: event.KindCourseCompleted,
	}})
	assert.ErrorIs(t, err, shared.ErrMissingUserID)

	_, err = f.handler.Handle(ctx, ApplyProgressCommand{Event: event.LearningEvent{
		LearnerID: "learner-1", Kind: event.KindCourseCompleted,
	}})
	assert.ErrorIs(t, err, shared.ErrMissingContentID)

	_, err = f.handler.Handle(ctx, ApplyProgressCommand{Event: event.LearningEvent{
		LearnerID: "learner-1", ContentID: "course-1", Kind: event.Kind("bogus"),
	}})
	assert.ErrorIs(t, err, shared.ErrUnknownEventKind)
}
