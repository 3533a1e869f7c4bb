// Package notify maintains the push connection to the library service and
// fans inbound notifications out to subscribers.
package notify

import (
	"encoding/json"
	"time"
)

// Event is one server-pushed notification. Message is the conventional
// human-readable field; Fields carries the full decoded payload for anything
// beyond it.
type Event struct {
	Message    string
	Fields     map[string]any
	ReceivedAt time.Time
}

// parseEvent decodes one UTF-8 JSON frame into an Event.
func parseEvent(data []byte, at time.Time) (Event, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, err
	}
	e := Event{Fields: fields, ReceivedAt: at}
	if msg, ok := fields["message"].(string); ok {
		e.Message = msg
	}
	return e, nil
}

// Display returns the message when present, the raw payload otherwise.
func (e Event) Display() string {
	if e.Message != "" {
		return e.Message
	}
	raw, err := json.Marshal(e.Fields)
	if err != nil {
		return ""
	}
	return string(raw)
}
