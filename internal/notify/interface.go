// Package notify fans reconciliation events out to chat and webhook
// endpoints.
package notify

import "context"

// Event types.
const (
	EventMirrorFailed    = "mirror_failed"
	EventLinkWriteFailed = "link_write_failed"
	EventBatchCompleted  = "batch_completed"
)

// Event is one notification.
type Event struct {
	Type  string
	Title string
	Body  string
	// Repo is the repository identifier, empty for batch events.
	Repo string
	// Kind is the failure kind, empty unless the event reports a failure.
	Kind     string
	Metadata map[string]any
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
