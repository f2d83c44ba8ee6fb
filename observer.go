package serviced

import (
	"context"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of export lifecycle events. Dispatch is synchronous,
// so a slow observer delays the export.
type Observer interface {
	// OnEvent is called for each event the observer subscribed to.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// Subject accepts observer registrations and dispatches export events.
type Subject interface {
	// RegisterObserver adds an observer, optionally filtered to the given
	// event types. An empty filter receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers dispatches an event to all matching observers.
	// Observer errors are logged, never propagated: an auditing failure
	// must not abort an export.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

// Export lifecycle event types, in CloudEvents reverse-domain notation.
const (
	EventTypeExportStarted       = "com.serviced.export.started"
	EventTypeModuleCreated       = "com.serviced.export.module.created"
	EventTypeMetadataApplied     = "com.serviced.export.metadata.applied"
	EventTypeBaseTypeSynthesized = "com.serviced.export.basetype.synthesized"
	EventTypeWrapperGenerated    = "com.serviced.export.wrapper.generated"
	EventTypeModulePersisted     = "com.serviced.export.module.persisted"
	EventTypeRegistrationDone    = "com.serviced.export.registration.completed"
	EventTypeExportFailed        = "com.serviced.export.failed"
)

// eventSource is the CloudEvents source attribute for exporter events.
const eventSource = "serviced/exporter"

// FunctionalObserver wraps a function as an Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by the handler function.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string { return f.id }

// ExportSubject is the standard Subject implementation used by the exporter.
type ExportSubject struct {
	mu        sync.RWMutex
	observers []subjectEntry
	logger    Logger
}

type subjectEntry struct {
	observer   Observer
	eventTypes []string
	registered time.Time
}

// NewExportSubject creates a subject whose observer failures are logged to
// the given logger.
func NewExportSubject(logger Logger) *ExportSubject {
	return &ExportSubject{logger: logger}
}

// RegisterObserver implements Subject.
func (s *ExportSubject) RegisterObserver(observer Observer, eventTypes ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, subjectEntry{
		observer:   observer,
		eventTypes: eventTypes,
		registered: time.Now(),
	})
	return nil
}

// UnregisterObserver implements Subject.
func (s *ExportSubject) UnregisterObserver(observer Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = slices.DeleteFunc(s.observers, func(e subjectEntry) bool {
		return e.observer.ObserverID() == observer.ObserverID()
	})
	return nil
}

// NotifyObservers implements Subject. Dispatch is synchronous and in
// registration order; observer errors are logged and suppressed.
func (s *ExportSubject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	s.mu.RLock()
	entries := slices.Clone(s.observers)
	s.mu.RUnlock()

	for _, entry := range entries {
		if len(entry.eventTypes) > 0 && !slices.Contains(entry.eventTypes, event.Type()) {
			continue
		}
		if err := entry.observer.OnEvent(ctx, event); err != nil {
			s.logger.Error("observer failed to handle event",
				"observer", entry.observer.ObserverID(),
				"eventType", event.Type(),
				"error", err)
		}
	}
	return nil
}
