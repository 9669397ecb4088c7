package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

func newSyncBus() *InMemoryEventBus {
	config := DefaultInMemoryEventBusConfig()
	config.AsyncMode = false
	config.Logger = logger.New(logger.Options{Output: io.Discard})
	return NewInMemoryEventBus(config)
}

func TestInMemoryBus_DeliversToSubscribers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []shared.Event

	require.NoError(t, bus.Subscribe(shared.EventBadgeEarned, func(_ context.Context, e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewBadgeEarnedEvent("learner-1", "first_steps", "First Steps", 10)))
	require.NoError(t, bus.Publish(shared.NewLevelChangedEvent("learner-1", 1, 2)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, shared.EventBadgeEarned, received[0].EventType())
	assert.Equal(t, "first_steps", received[0].Payload()["badge_id"])
}

func TestInMemoryBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	count := 0
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelChangedEvent("learner-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("learner-1", 2, 2)))

	assert.Equal(t, 2, count)
}

func TestInMemoryBus_HandlerErrorNeverPropagates(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	second := false
	require.NoError(t, bus.Subscribe(shared.EventLevelChanged, func(context.Context, shared.Event) error {
		return errors.New("handler blew up")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelChanged, func(context.Context, shared.Event) error {
		second = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewLevelChangedEvent("learner-1", 1, 2)))
	assert.True(t, second)
}

func TestInMemoryBus_RejectsNilArguments(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelChanged, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestInMemoryBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewLevelChangedEvent("learner-1", 1, 2))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryBus_Metrics(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLevelChanged, func(context.Context, shared.Event) error {
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelChanged, func(context.Context, shared.Event) error {
		return errors.New("bad handler")
	}))
	require.NoError(t, bus.Publish(shared.NewLevelChangedEvent("learner-1", 1, 2)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 1e-9)
}
