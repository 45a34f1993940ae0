package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// LogNotifier writes transition events to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements output.Notifier
func (n *LogNotifier) Notify(ctx context.Context, event output.TransitionEvent) error {
	n.logger.Info("application transitioned",
		zap.String("application_id", event.ApplicationID),
		zap.String("from", event.From),
		zap.String("to", event.To),
		zap.String("actor", event.Actor),
		zap.String("record_id", event.RecordID),
		zap.Time("at", event.Timestamp),
	)
	return nil
}
