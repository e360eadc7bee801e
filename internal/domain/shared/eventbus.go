package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// funcHandler adapts a function to EventHandler. It is used through a
// pointer so handlers stay comparable for Unsubscribe.
type funcHandler struct {
	fn         func(ctx context.Context, event DomainEvent) error
	eventTypes []string
}

// NewEventHandlerFunc adapts fn to an EventHandler for eventTypes, or for
// all events when none are given
func NewEventHandlerFunc(fn func(ctx context.Context, event DomainEvent) error, eventTypes ...string) EventHandler {
	return &funcHandler{fn: fn, eventTypes: eventTypes}
}

// Handle implements EventHandler
func (h *funcHandler) Handle(ctx context.Context, event DomainEvent) error {
	return h.fn(ctx, event)
}

// EventTypes implements EventHandler
func (h *funcHandler) EventTypes() []string {
	return h.eventTypes
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber subscribes to domain events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types
	// If no event types are provided, the handler receives all events
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
	// Start starts the event bus
	Start(ctx context.Context) error
	// Stop gracefully stops the event bus
	Stop(ctx context.Context) error
}
