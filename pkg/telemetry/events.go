package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted while generating loops.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// LoopID is the associated loop ID, if applicable.
	LoopID string `json:"loop_id,omitempty"`

	// Operator is the associated operator name, if applicable.
	Operator string `json:"operator,omitempty"`

	// BatchID is the associated batch ID, if applicable.
	BatchID string `json:"batch_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeLoopCreated       = "loop.created"
	EventTypeClassCreated      = "class.created"
	EventTypeOperatorCompleted = "operator.completed"
	EventTypeOperatorFailed    = "operator.failed"
	EventTypeBatchStarted      = "batch.started"
	EventTypeBatchCompleted    = "batch.completed"
	EventTypeGraphReloaded     = "graph.reloaded"
	EventTypeLintViolation     = "graph.lint_violation"
	EventTypeIntegrityIssue    = "store.integrity_issue"
	EventTypeError             = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishLoopCreated publishes a loop created event.
func (ep *EventPublisher) PublishLoopCreated(loopID, parentID, outcomeHash string) error {
	return ep.Publish(Event{
		Type:    EventTypeLoopCreated,
		Source:  "store",
		LoopID:  loopID,
		Message: fmt.Sprintf("Loop %s stored (outcome %s)", loopID, outcomeHash),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"parent_id":    parentID,
			"outcome_hash": outcomeHash,
		},
	})
}

// PublishClassCreated publishes a class created event.
func (ep *EventPublisher) PublishClassCreated(classID, representativeID string) error {
	return ep.Publish(Event{
		Type:    EventTypeClassCreated,
		Source:  "store",
		LoopID:  representativeID,
		Message: fmt.Sprintf("Class %s created with representative %s", classID, representativeID),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"class_id": classID,
		},
	})
}

// PublishOperatorCompleted publishes an operator completed event.
func (ep *EventPublisher) PublishOperatorCompleted(operator, loopID, message string, success bool, duration time.Duration) error {
	level := EventLevelInfo
	if !success {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:     EventTypeOperatorCompleted,
		Source:   "operators",
		Operator: operator,
		LoopID:   loopID,
		Message:  fmt.Sprintf("Operator %s: %s", operator, message),
		Level:    level,
		Data: map[string]interface{}{
			"success":  success,
			"duration": duration.Seconds(),
		},
	})
}

// PublishOperatorFailed publishes an operator failed event.
func (ep *EventPublisher) PublishOperatorFailed(operator, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeOperatorFailed,
		Source:   "operators",
		Operator: operator,
		Message:  fmt.Sprintf("Operator %s failed: %s", operator, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishBatchStarted publishes a batch started event.
func (ep *EventPublisher) PublishBatchStarted(batchID string, count int) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchStarted,
		Source:  "generator",
		BatchID: batchID,
		Message: fmt.Sprintf("Batch %s started for %d loops", batchID, count),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"count": count,
		},
	})
}

// PublishBatchCompleted publishes a batch completed event.
func (ep *EventPublisher) PublishBatchCompleted(batchID string, succeeded, failed int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchCompleted,
		Source:  "generator",
		BatchID: batchID,
		Message: fmt.Sprintf("Batch %s completed: %d succeeded, %d failed", batchID, succeeded, failed),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"succeeded": succeeded,
			"failed":    failed,
			"duration":  duration.Seconds(),
		},
	})
}

// PublishGraphReloaded publishes a graph reloaded event.
func (ep *EventPublisher) PublishGraphReloaded(path string, nodes int) error {
	return ep.Publish(Event{
		Type:    EventTypeGraphReloaded,
		Source:  "config",
		Message: fmt.Sprintf("Graph %s reloaded (%d nodes)", path, nodes),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path":  path,
			"nodes": nodes,
		},
	})
}

// PublishLintViolation publishes a graph lint violation event.
func (ep *EventPublisher) PublishLintViolation(subject, policyName, severity, reason string) error {
	level := EventLevelWarning
	if severity == "error" || severity == "critical" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:    EventTypeLintViolation,
		Source:  "policy_engine",
		Message: fmt.Sprintf("Lint violation on %s: %s - %s", subject, policyName, reason),
		Level:   level,
		Data: map[string]interface{}{
			"subject": subject,
			"policy":  policyName,
			"reason":  reason,
		},
	})
}

// PublishIntegrityIssue publishes a store integrity issue event.
func (ep *EventPublisher) PublishIntegrityIssue(loopID, issue string) error {
	return ep.Publish(Event{
		Type:    EventTypeIntegrityIssue,
		Source:  "store",
		LoopID:  loopID,
		Message: issue,
		Level:   EventLevelWarning,
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByLoopID creates a filter that only allows events for a specific loop.
func FilterByLoopID(loopID string) EventFilter {
	return func(event Event) bool {
		return event.LoopID == loopID
	}
}

// FilterByOperator creates a filter that only allows events for a specific operator.
func FilterByOperator(operator string) EventFilter {
	return func(event Event) bool {
		return event.Operator == operator
	}
}
