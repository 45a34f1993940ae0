package output

import (
	"context"
	"time"
)

// TransitionEvent is published after a transition has been saved
type TransitionEvent struct {
	RecordID      string    `json:"record_id"`
	ApplicationID string    `json:"application_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Actor         string    `json:"actor"`
	Note          string    `json:"note,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notifier receives transition events for downstream emailing/SMS.
// Callers treat delivery as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, event TransitionEvent) error
}

// NopNotifier discards events
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(context.Context, TransitionEvent) error { return nil }
