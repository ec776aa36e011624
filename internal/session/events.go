package session

// Event names published by the session.
const (
	EventEnsureStart   = "ensure_start"
	EventEnsureJoin    = "ensure_join"
	EventAssetProgress = "asset_progress"
	EventEnsureReady   = "ensure_ready"
	EventEnsureError   = "ensure_error"
	EventRunStart      = "run_start"
	EventRunEnd        = "run_end"
	EventRunCancelled  = "run_cancelled"
)

// Event represents a session lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the session. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
