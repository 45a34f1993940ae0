package notification

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// JournalNotifier appends every transition event as one JSON line.
// Appends are serialized across processes with flock and fsynced before returning.
type JournalNotifier struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ output.Notifier = (*JournalNotifier)(nil)

// NewJournalNotifier creates a journal sink writing to path
func NewJournalNotifier(path string, logger *zap.Logger) *JournalNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalNotifier{path: path, logger: logger}
}

// Notify implements output.Notifier
func (n *JournalNotifier) Notify(ctx context.Context, event output.TransitionEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if err := flockExclusive(f); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer flockUnlock(f)

	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		// The line is written; only durability is in doubt
		n.logger.Warn("failed to fsync journal", zap.String("path", n.path), zap.Error(err))
	}
	return nil
}

// ReadJournal returns the events recorded at path, oldest first.
// A missing journal reads as empty. applicationID filters when non-empty.
func ReadJournal(path, applicationID string) ([]output.TransitionEvent, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var events []output.TransitionEvent
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e output.TransitionEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		if applicationID == "" || e.ApplicationID == applicationID {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return events, nil
}
