// Package messaging implements the event bus that carries domain events from
// the progress and gamification pipeline to subscribers such as the
// notification dispatcher. It provides an in-memory bus for single-instance
// deployments and a Redis Pub/Sub bus for distributed fan-out.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a worker pool instead of inline in Publish.
	AsyncMode bool

	// WorkerPoolSize caps concurrent handler executions in async mode.
	WorkerPoolSize int

	// HandlerTimeout bounds each handler invocation.
	HandlerTimeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger

	// EnableMetrics enables metrics collection.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		HandlerTimeout: 30 * time.Second,
		EnableMetrics:  true,
	}
}

// InMemoryEventBus is an in-process implementation of shared.EventBus.
// Suitable for single-instance deployments and testing.
type InMemoryEventBus struct {
	mu         sync.RWMutex
	subs       map[shared.EventType][]shared.EventHandler
	globalSubs []shared.EventHandler
	closed     bool

	async   bool
	slots   chan struct{}
	timeout time.Duration
	done    chan struct{}
	wg      sync.WaitGroup

	log     *logger.Logger
	metrics *EventBusMetrics
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	bus := &InMemoryEventBus{
		subs:    make(map[shared.EventType][]shared.EventHandler),
		async:   config.AsyncMode,
		slots:   make(chan struct{}, config.WorkerPoolSize),
		timeout: config.HandlerTimeout,
		done:    make(chan struct{}),
		log:     config.Logger.With(logger.Component("event_bus")),
	}
	if config.EnableMetrics {
		bus.metrics = newEventBusMetrics()
	}
	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.subs[eventType] = append(b.subs[eventType], handler)
	b.log.Debug("subscribed handler", logger.String("event_type", string(eventType)))
	return nil
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.globalSubs = append(b.globalSubs, handler)
	b.log.Debug("subscribed global handler")
	return nil
}

// Publish sends an event to all subscribed handlers. Handler errors are
// logged, never propagated to the publisher; a failed subscriber must not
// roll back the state change that produced the event.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	targets, err := b.snapshotHandlers(event.EventType())
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		b.log.Debug("no handlers for event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	if b.metrics != nil {
		b.metrics.recordPublish()
	}

	for _, h := range targets {
		if b.async {
			b.dispatch(event, h)
			continue
		}
		if err := b.invoke(event, h); err != nil {
			b.log.Error("handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err))
		}
	}
	return nil
}

// snapshotHandlers copies the matching handler lists under the read lock so
// Publish never holds the lock while handlers run.
func (b *InMemoryEventBus) snapshotHandlers(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}

	targets := make([]shared.EventHandler, 0, len(b.subs[t])+len(b.globalSubs))
	targets = append(targets, b.subs[t]...)
	targets = append(targets, b.globalSubs...)
	return targets, nil
}

// dispatch hands the handler to the worker pool.
func (b *InMemoryEventBus) dispatch(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		select {
		case b.slots <- struct{}{}:
			defer func() { <-b.slots }()
		case <-b.done:
			return
		}

		if err := b.invoke(event, handler); err != nil {
			b.log.Error("async handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err))
		}
	}()
}

// invoke runs one handler with a bounded context and records the outcome.
func (b *InMemoryEventBus) invoke(event shared.Event, handler shared.EventHandler) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	err := handler(ctx, event)

	if b.metrics != nil {
		b.metrics.recordExecution(time.Since(start), err == nil)
	}
	return err
}

// Close gracefully shuts down the event bus, waiting for pending handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Metrics returns the current metrics, or nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	// Client is the Redis client to use.
	Client *redis.Client

	// ChannelName is the Redis channel for events (default: "progress-hub:events").
	ChannelName string

	// InstanceID uniquely identifies this instance, used to skip
	// self-published events on the subscription side.
	InstanceID string

	// LocalBusConfig is the config for the local in-memory bus.
	LocalBusConfig InMemoryEventBusConfig

	// Logger for structured logging.
	Logger *logger.Logger
}

// RedisEventBus is a Redis Pub/Sub based implementation of shared.EventBus.
// Suitable for distributed deployments where multiple instances need to share
// events. Local handlers are always invoked, even when the Redis publish
// fails; remote instances re-deliver through the subscription loop.
type RedisEventBus struct {
	client   *redis.Client
	local    *InMemoryEventBus
	channel  string
	instance string
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRedisEventBus creates a new Redis-based event bus and starts its
// subscription listener.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "progress-hub:events"
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:   config.Client,
		local:    NewInMemoryEventBus(config.LocalBusConfig),
		channel:  config.ChannelName,
		instance: config.InstanceID,
		log:      config.Logger.With(logger.Component("redis_event_bus")),
		ctx:      ctx,
		cancel:   cancel,
	}

	sub := bus.client.Subscribe(bus.ctx, bus.channel)
	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		defer func() { _ = sub.Close() }()
		bus.listen(sub.Channel())
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish sends an event to Redis Pub/Sub and to local handlers.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(wireEvent{
		InstanceID:  b.instance,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channel, data).Err(); err != nil {
		// Local delivery still proceeds below.
		b.log.Error("failed to publish to redis", logger.Err(err))
	}

	return b.local.Publish(event)
}

// listen consumes messages from the Redis subscription until Close.
func (b *RedisEventBus) listen(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.deliverRemote(msg.Payload)
		}
	}
}

// deliverRemote decodes a wire message and replays it on the local bus.
func (b *RedisEventBus) deliverRemote(payload string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		b.log.Error("failed to unmarshal event", logger.Err(err))
		return
	}

	// Events from this instance were already delivered locally.
	if w.InstanceID == b.instance {
		return
	}

	if err := b.local.Publish(&remoteEvent{wire: w}); err != nil {
		b.log.Error("failed to process remote event", logger.Err(err))
	}
}

// Close gracefully shuts down the Redis event bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.local.Close(); err != nil {
		b.log.Error("failed to close local bus", logger.Err(err))
	}

	b.log.Info("redis event bus closed")
	return nil
}

// Metrics returns the current metrics from the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.local.Metrics()
}

// wireEvent is the JSON envelope published to the Redis channel.
type wireEvent struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent adapts a received wire message back to shared.Event.
type remoteEvent struct {
	wire wireEvent
}

func (e *remoteEvent) EventType() shared.EventType     { return e.wire.EventType }
func (e *remoteEvent) AggregateID() string             { return e.wire.AggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.wire.OccurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.wire.Payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics accumulates publish and handler execution counters.
type EventBusMetrics struct {
	mu            sync.Mutex
	published     int64
	execs         int64
	successes     int64
	totalDuration time.Duration
}

func newEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{}
}

func (m *EventBusMetrics) recordPublish() {
	m.mu.Lock()
	m.published++
	m.mu.Unlock()
}

func (m *EventBusMetrics) recordExecution(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.execs++
	m.totalDuration += duration
	if success {
		m.successes++
	}
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}

// Snapshot returns a point-in-time copy of the current metrics.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := EventBusMetricsSnapshot{
		TotalPublished:     m.published,
		TotalHandlerExecs:  m.execs,
		HandlerSuccessRate: 1.0,
	}
	if m.execs > 0 {
		snap.HandlerSuccessRate = float64(m.successes) / float64(m.execs)
		snap.AverageHandlerDuration = m.totalDuration / time.Duration(m.execs)
	}
	return snap
}
