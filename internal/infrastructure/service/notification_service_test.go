package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/notification"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/messaging"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

type fakeDispatcher struct {
	badges     []notification.BadgeEarnedFact
	challenges []notification.ChallengeCompletedFact
	levels     []notification.LevelChangedFact
	err        error
}

func (d *fakeDispatcher) NotifyBadgeEarned(_ context.Context, fact notification.BadgeEarnedFact) error {
	d.badges = append(d.badges, fact)
	return d.err
}

func (d *fakeDispatcher) NotifyChallengeCompleted(_ context.Context, fact notification.ChallengeCompletedFact) error {
	d.challenges = append(d.challenges, fact)
	return d.err
}

func (d *fakeDispatcher) NotifyLevelChanged(_ context.Context, fact notification.LevelChangedFact) error {
	d.levels = append(d.levels, fact)
	return d.err
}

func newServiceFixture(t *testing.T) (*fakeDispatcher, *messaging.InMemoryEventBus) {
	t.Helper()

	log := logger.New(logger.Options{Output: io.Discard})
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	cfg.Logger = log
	bus := messaging.NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	dispatcher := &fakeDispatcher{}
	svc := NewNotificationService(dispatcher, log)
	require.NoError(t, svc.Register(bus))

	return dispatcher, bus
}

func TestNotificationService_ForwardsBadgeEarned(t *testing.T) {
	dispatcher, bus := newServiceFixture(t)

	require.NoError(t, bus.Publish(shared.NewBadgeEarnedEvent("learner-1", "first_steps", "First Steps", 10)))

	require.Len(t, dispatcher.badges, 1)
	fact := dispatcher.badges[0]
	assert.Equal(t, "learner-1", fact.LearnerID)
	assert.Equal(t, "first_steps", fact.BadgeID)
	assert.Equal(t, "First Steps", fact.Title)
	assert.Equal(t, 10, fact.XP)
}

func TestNotificationService_ForwardsChallengeCompleted(t *testing.T) {
	dispatcher, bus := newServiceFixture(t)

	require.NoError(t, bus.Publish(shared.NewChallengeCompletedEvent("learner-2", "Speed Run", 50)))

	require.Len(t, dispatcher.challenges, 1)
	fact := dispatcher.challenges[0]
	assert.Equal(t, "learner-2", fact.LearnerID)
	assert.Equal(t, "Speed Run", fact.Title)
	assert.Equal(t, 50, fact.XP)
}

func TestNotificationService_ForwardsLevelChanged(t *testing.T) {
	dispatcher, bus := newServiceFixture(t)

	require.NoError(t, bus.Publish(shared.NewLevelChangedEvent("learner-3", 2, 3)))

	require.Len(t, dispatcher.levels, 1)
	fact := dispatcher.levels[0]
	assert.Equal(t, "learner-3", fact.LearnerID)
	assert.Equal(t, 2, fact.OldLevel)
	assert.Equal(t, 3, fact.NewLevel)
}

func TestNotificationService_DispatchErrorIsSwallowed(t *testing.T) {
	dispatcher, bus := newServiceFixture(t)
	dispatcher.err = errors.New("downstream unavailable")

	assert.NoError(t, bus.Publish(shared.NewBadgeEarnedEvent("learner-1", "first_steps", "First Steps", 10)))
	assert.Len(t, dispatcher.badges, 1)
}

func TestPayloadInt_HandlesJSONNumbers(t *testing.T) {
	p := map[string]interface{}{
		"native":  7,
		"wide":    int64(9),
		"decoded": float64(12),
		"text":    "nope",
	}

	assert.Equal(t, 7, payloadInt(p, "native"))
	assert.Equal(t, 9, payloadInt(p, "wide"))
	assert.Equal(t, 12, payloadInt(p, "decoded"))
	assert.Equal(t, 0, payloadInt(p, "text"))
	assert.Equal(t, 0, payloadInt(p, "missing"))
}
