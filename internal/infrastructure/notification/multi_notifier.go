package notification

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// MultiNotifier delivers each event to every sink.
// A failing sink does not stop delivery to the rest.
type MultiNotifier struct {
	sinks []output.Notifier
}

// NewMultiNotifier fans out to sinks in order
func NewMultiNotifier(sinks ...output.Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

// Notify implements output.Notifier
func (m *MultiNotifier) Notify(ctx context.Context, event output.TransitionEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
