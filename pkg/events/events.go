package events

import "encoding/json"

// Lifecycle event names, matching what stream consumers key on.
const (
	SyncStart          = "sync_start"
	SyncComplete       = "sync_complete"
	SyncError          = "sync_error"
	ExtractionComplete = "extraction_complete"
	Connected          = "connected"
)

// Event is one lifecycle notification. It serializes flat, with the name
// under the "event" key next to the payload fields.
type Event struct {
	Name   string
	Fields map[string]any
}

// New builds an event with the given payload fields.
func New(name string, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{Name: name, Fields: fields}
}

func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		flat[k] = v
	}
	flat["event"] = e.Name
	return json.Marshal(flat)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if name, ok := flat["event"].(string); ok {
		e.Name = name
	}
	delete(flat, "event")
	e.Fields = flat
	return nil
}
