// Package service bridges domain events to external collaborators. The
// notification service subscribes to gamification events on the bus and
// forwards them to a notification.Dispatcher.
package service

import (
	"context"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/notification"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationService consumes badge, challenge, and level events from the
// bus and delivers them as facts to the configured dispatcher. Delivery is
// fire-and-forget: dispatch errors are logged and dropped, never propagated
// back to the pipeline that produced the event.
type NotificationService struct {
	dispatcher notification.Dispatcher
	log        *logger.Logger
}

// NewNotificationService creates a notification service backed by the given
// dispatcher.
func NewNotificationService(dispatcher notification.Dispatcher, log *logger.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		log:        log.With(logger.Component("notification_service")),
	}
}

// Register subscribes the service to the gamification event types it handles.
func (s *NotificationService) Register(bus shared.EventBus) error {
	if err := bus.Subscribe(shared.EventBadgeEarned, s.handleBadgeEarned); err != nil {
		return err
	}
	if err := bus.Subscribe(shared.EventChallengeCompleted, s.handleChallengeCompleted); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventLevelChanged, s.handleLevelChanged)
}

func (s *NotificationService) handleBadgeEarned(ctx context.Context, event shared.Event) error {
	p := event.Payload()
	fact := notification.BadgeEarnedFact{
		LearnerID: payloadString(p, "learner_id"),
		BadgeID:   payloadString(p, "badge_id"),
		Title:     payloadString(p, "title"),
		XP:        payloadInt(p, "xp_reward"),
	}

	if err := s.dispatcher.NotifyBadgeEarned(ctx, fact); err != nil {
		s.log.Warn("badge notification dispatch failed",
			logger.LearnerID(fact.LearnerID),
			logger.BadgeID(fact.BadgeID),
			logger.Err(err))
	}
	return nil
}

func (s *NotificationService) handleChallengeCompleted(ctx context.Context, event shared.Event) error {
	p := event.Payload()
	fact := notification.ChallengeCompletedFact{
		LearnerID: payloadString(p, "learner_id"),
		Title:     payloadString(p, "title"),
		XP:        payloadInt(p, "xp_reward"),
	}

	if err := s.dispatcher.NotifyChallengeCompleted(ctx, fact); err != nil {
		s.log.Warn("challenge notification dispatch failed",
			logger.LearnerID(fact.LearnerID),
			logger.Err(err))
	}
	return nil
}

func (s *NotificationService) handleLevelChanged(ctx context.Context, event shared.Event) error {
	p := event.Payload()
	fact := notification.LevelChangedFact{
		LearnerID: payloadString(p, "learner_id"),
		OldLevel:  payloadInt(p, "old_level"),
		NewLevel:  payloadInt(p, "new_level"),
	}

	if err := s.dispatcher.NotifyLevelChanged(ctx, fact); err != nil {
		s.log.Warn("level notification dispatch failed",
			logger.LearnerID(fact.LearnerID),
			logger.Err(err))
	}
	return nil
}

// payloadString extracts a string field from an event payload.
func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// payloadInt extracts an integer field from an event payload. Events that
// crossed a JSON boundary carry numbers as float64.
func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// LogDispatcher is the built-in notification.Dispatcher. It records each fact
// as a structured log line; real delivery channels plug in behind the same
// interface.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher creates a dispatcher that logs every fact.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With(logger.Component("notifications"))}
}

var _ notification.Dispatcher = (*LogDispatcher)(nil)

// NotifyBadgeEarned implements notification.Dispatcher.
func (d *LogDispatcher) NotifyBadgeEarned(_ context.Context, fact notification.BadgeEarnedFact) error {
	d.log.Info("badge earned",
		logger.LearnerID(fact.LearnerID),
		logger.BadgeID(fact.BadgeID),
		logger.String("title", fact.Title),
		logger.XPAmount(fact.XP))
	return nil
}

// NotifyChallengeCompleted implements notification.Dispatcher.
func (d *LogDispatcher) NotifyChallengeCompleted(_ context.Context, fact notification.ChallengeCompletedFact) error {
	d.log.Info("daily challenge completed",
		logger.LearnerID(fact.LearnerID),
		logger.String("title", fact.Title),
		logger.XPAmount(fact.XP))
	return nil
}

// NotifyLevelChanged implements notification.Dispatcher.
func (d *LogDispatcher) NotifyLevelChanged(_ context.Context, fact notification.LevelChangedFact) error {
	d.log.Info("level changed",
		logger.LearnerID(fact.LearnerID),
		logger.Int("old_level", fact.OldLevel),
		logger.Int("new_level", fact.NewLevel))
	return nil
}
