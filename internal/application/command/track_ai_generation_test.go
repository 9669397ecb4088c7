package command

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

func TestAITracker_TracksSessionAndHistory(t *testing.T) {
	f := newApplyFixture(t)
	log := logger.New(logger.Options{Output: io.Discard})

	tracker := NewAIGenerationTracker(
		f.handler, f.store.Learners(), keymutex.New(), f.bus, log, 16)

	require.NoError(t, tracker.Enqueue(TrackAIGenerationCommand{
		LearnerID:   "learner-1",
		SessionID:   "sess-42",
		Topic:       "algebra",
		Subject:     "math",
		Difficulty:  "medium",
		GeneratedAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}))
	tracker.Close()

	ctx := context.Background()
	entry, err := f.store.Progress().Get(ctx, "learner-1", shared.ContentID("ai-sess-42"))
	require.NoError(t, err)
	assert.True(t, entry.IsCompleted())

	l, err := f.store.Learners().GetByID(ctx, "learner-1")
	require.NoError(t, err)
	require.Len(t, l.AIInteractions, 1)
	assert.Equal(t, "algebra", l.AIInteractions[0].Topic)

	assert.Equal(t, 1, f.bus.countType(shared.EventAIResourcesTracked))
}

func TestAITracker_EnqueueValidation(t *testing.T) {
	f := newApplyFixture(t)
	log := logger.New(logger.Options{Output: io.Discard})
	tracker := NewAIGenerationTracker(
		f.handler, f.store.Learners(), keymutex.New(), f.bus, log, 16)
	defer tracker.Close()

	err := tracker.Enqueue(TrackAIGenerationCommand{SessionID: "sess-1"})
	assert.ErrorIs(t, err, shared.ErrMissingUserID)

	err = tracker.Enqueue(TrackAIGenerationCommand{LearnerID: "learner-1"})
	assert.True(t, shared.IsValidation(err))
}

func TestTrackCommand_ContentID(t *testing.T) {
	cmd := TrackAIGenerationCommand{SessionID: "sess-1"}
	assert.Equal(t, shared.ContentID("ai-sess-1"), cmd.ContentID())
	assert.True(t, cmd.ContentID().IsAISession())
}
