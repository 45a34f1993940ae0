package notification

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// ErrQueueFull is returned when the async buffer cannot take another event
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Notify after Close
var ErrClosed = errors.New("notifier closed")

// AsyncNotifier hands events to a background worker so a slow sink
// never holds up the caller. Events that do not fit the buffer are dropped.
type AsyncNotifier struct {
	next   output.Notifier
	logger *zap.Logger
	queue  chan output.TransitionEvent

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncNotifier starts a worker delivering to next with the given buffer size
func NewAsyncNotifier(next output.Notifier, buffer int, logger *zap.Logger) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &AsyncNotifier{
		next:   next,
		logger: logger,
		queue:  make(chan output.TransitionEvent, buffer),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify enqueues the event without blocking
func (n *AsyncNotifier) Notify(ctx context.Context, event output.TransitionEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- event:
		return nil
	default:
		n.logger.Warn("notification dropped", zap.String("application_id", event.ApplicationID))
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		if err := n.next.Notify(context.Background(), event); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("application_id", event.ApplicationID), zap.Error(err))
		}
	}
}
