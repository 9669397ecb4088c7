package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Every state change the pipeline reacts to is named here; subscribers
// key off these constants.
const (
	// Learner events
	EventLearnerRegistered EventType = "learner.registered"

	// Progress events
	EventCompletionOccurred EventType = "progress.completion_occurred"
	EventXPGained           EventType = "progress.xp_gained"
	EventLevelChanged       EventType = "progress.level_changed"
	EventStreakUpdated      EventType = "progress.streak_updated"

	// Gamification events
	EventBadgeEarned        EventType = "gamification.badge_earned"
	EventChallengeCompleted EventType = "gamification.challenge_completed"

	// AI resource events
	EventAIResourcesTracked EventType = "ai.resources_tracked"
)

// Event is the interface implemented by all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time

	// AggregateID is the learner whose state change produced the event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single domain event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes domain events to subscribed handlers.
type EventBus interface {
	// Publish delivers the event to all subscribed handlers.
	Publish(event Event) error

	// Subscribe registers a handler for the given event type.
	Subscribe(eventType EventType, handler EventHandler) error
}

// BaseEvent carries the fields every concrete event shares.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps a version-1 event with the current UTC time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Learner Events
// ═══════════════════════════════════════════════════════════════════════════

// LearnerRegisteredEvent is emitted once, after a new learner account has
// been durably created.
type LearnerRegisteredEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

func (e LearnerRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"email":      e.Email,
		"name":       e.Name,
	}
}

func NewLearnerRegisteredEvent(learnerID, email, name string) LearnerRegisteredEvent {
	return LearnerRegisteredEvent{
		BaseEvent: NewBaseEvent(EventLearnerRegistered, learnerID),
		LearnerID: learnerID,
		Email:     email,
		Name:      name,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// CompletionOccurredEvent is emitted exactly once per (learner, content)
// pair, on the fresh transition of a progress entry into the completed state.
type CompletionOccurredEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	ContentID string `json:"content_id"`
	XPEarned  int    `json:"xp_earned"`
	Score     int    `json:"score"`
}

func (e CompletionOccurredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"content_id": e.ContentID,
		"xp_earned":  e.XPEarned,
		"score":      e.Score,
	}
}

func NewCompletionOccurredEvent(learnerID, contentID string, xpEarned, score int) CompletionOccurredEvent {
	return CompletionOccurredEvent{
		BaseEvent: NewBaseEvent(EventCompletionOccurred, learnerID),
		LearnerID: learnerID,
		ContentID: contentID,
		XPEarned:  xpEarned,
		Score:     score,
	}
}

// XPGainedEvent reports the net XP a single triggering event produced,
// with badge and challenge rewards already folded in. One gain event per
// trigger, matching the single level comparison per trigger.
type XPGainedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	Source    string `json:"source"` // "completion" or "activity"
}

func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"source":     e.Source,
	}
}

func NewXPGainedEvent(learnerID string, amount, newTotal int, source string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, learnerID),
		LearnerID: learnerID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelChangedEvent is emitted whenever a change in total XP moves a learner
// across a level boundary. Level = floor(totalXP/100) + 1.
type LevelChangedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
}

func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
	}
}

func NewLevelChangedEvent(learnerID string, oldLevel, newLevel int) LevelChangedEvent {
	return LevelChangedEvent{
		BaseEvent: NewBaseEvent(EventLevelChanged, learnerID),
		LearnerID: learnerID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// StreakUpdatedEvent is emitted when a learner's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

func NewStreakUpdatedEvent(learnerID string, current, longest int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, learnerID),
		LearnerID:     learnerID,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeEarnedEvent is emitted when a learner earns a badge. A given badge
// can be earned by a learner at most once; earning is never revoked.
type BadgeEarnedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	BadgeID   string `json:"badge_id"`
	Title     string `json:"title"`
	XPReward  int    `json:"xp_reward"`
}

func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"badge_id":   e.BadgeID,
		"title":      e.Title,
		"xp_reward":  e.XPReward,
	}
}

func NewBadgeEarnedEvent(learnerID, badgeID, title string, xpReward int) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, learnerID),
		LearnerID: learnerID,
		BadgeID:   badgeID,
		Title:     title,
		XPReward:  xpReward,
	}
}

// ChallengeCompletedEvent is emitted exactly once when a learner's daily
// challenge transitions into the completed state.
type ChallengeCompletedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Title     string `json:"title"`
	XPReward  int    `json:"xp_reward"`
}

func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"title":      e.Title,
		"xp_reward":  e.XPReward,
	}
}

func NewChallengeCompletedEvent(learnerID, title string, xpReward int) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent: NewBaseEvent(EventChallengeCompleted, learnerID),
		LearnerID: learnerID,
		Title:     title,
		XPReward:  xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// AI Resource Events
// ═══════════════════════════════════════════════════════════════════════════

// AIResourcesTrackedEvent is emitted after a best-effort progress update for
// an AI-generated resource has been durably recorded.
type AIResourcesTrackedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
}

func (e AIResourcesTrackedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"session_id": e.SessionID,
		"topic":      e.Topic,
	}
}

func NewAIResourcesTrackedEvent(learnerID, sessionID, topic string) AIResourcesTrackedEvent {
	return AIResourcesTrackedEvent{
		BaseEvent: NewBaseEvent(EventAIResourcesTracked, learnerID),
		LearnerID: learnerID,
		SessionID: sessionID,
		Topic:     topic,
	}
}
