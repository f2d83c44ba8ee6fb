package serviced

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// NewExportEvent creates a properly formed CloudEvent for an export stage.
func NewExportEvent(eventType string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// generateEventID generates a unique identifier for CloudEvents using UUIDv7,
// which is time-ordered. Falls back to v4 if v7 generation fails.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
