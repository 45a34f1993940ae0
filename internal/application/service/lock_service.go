package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// LockServiceConfig holds configuration for lock service
type LockServiceConfig struct {
	TTL               time.Duration // Lifetime of a lease without heartbeats
	WaitTimeout       time.Duration // How long Acquire keeps retrying a held lock
	RetryInterval     time.Duration // Pause between acquisition attempts
	HeartbeatInterval time.Duration // How often held leases are extended (0 disables)
	CleanupSchedule   string        // Cron spec for expired-lock cleanup
}

// DefaultLockServiceConfig returns default configuration
func DefaultLockServiceConfig() LockServiceConfig {
	return LockServiceConfig{
		TTL:               30 * time.Second,
		WaitTimeout:       2 * time.Second,
		RetryInterval:     50 * time.Millisecond,
		HeartbeatInterval: 10 * time.Second,
		CleanupSchedule:   "@every 1m",
	}
}

// LockService implements output.Locker on top of an ApplicationLockRepository.
// Held leases are kept alive by heartbeats; expired leases are swept on a cron schedule.
type LockService struct {
	repo   repository.ApplicationLockRepository
	config LockServiceConfig
	logger *zap.Logger

	mu         sync.Mutex
	heartbeats map[string]context.CancelFunc // owner -> cancel function
	wg         sync.WaitGroup

	cron     *cron.Cron
	stopOnce sync.Once
}

var _ output.Locker = (*LockService)(nil)

// NewLockService creates a new lock service
func NewLockService(repo repository.ApplicationLockRepository, config LockServiceConfig, logger *zap.Logger) *LockService {
	def := DefaultLockServiceConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = def.CleanupSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockService{
		repo:       repo,
		config:     config,
		logger:     logger,
		heartbeats: make(map[string]context.CancelFunc),
	}
}

// Acquire obtains the lock for an application, retrying until WaitTimeout elapses
func (s *LockService) Acquire(ctx context.Context, applicationID string) (output.Lease, error) {
	lockID, err := lock.ForApplication(applicationID)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.config.WaitTimeout)
	for {
		held, err := s.repo.Acquire(ctx, lockID, s.config.TTL)
		if err != nil {
			return nil, fmt.Errorf("acquire application lock: %w", err)
		}
		if held != nil {
			s.startHeartbeat(lockID, held.Owner())
			s.logger.Debug("lock acquired",
				zap.String("application_id", applicationID),
				zap.String("owner", held.Owner()))
			return &lease{service: s, lockID: lockID, owner: held.Owner()}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("application %s: %w", applicationID, lock.ErrLockHeld)
		}

		timer := time.NewTimer(s.config.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// CleanupExpired removes expired locks now
func (s *LockService) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.repo.CleanupExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired locks: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired locks removed", zap.Int("count", n))
	}
	return n, nil
}

// List lists active locks
func (s *LockService) List(ctx context.Context) ([]*lock.ApplicationLock, error) {
	return s.repo.List(ctx)
}

// Start schedules expired-lock cleanup
func (s *LockService) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.config.CleanupSchedule, func() {
		if _, err := s.CleanupExpired(ctx); err != nil {
			s.logger.Warn("scheduled lock cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.config.CleanupSchedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	return nil
}

// Stop stops the cleanup schedule and every heartbeat
func (s *LockService) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		c := s.cron
		for owner, cancel := range s.heartbeats {
			cancel()
			delete(s.heartbeats, owner)
		}
		s.mu.Unlock()

		if c != nil {
			<-c.Stop().Done()
		}
		s.wg.Wait()
	})
	return nil
}

// startHeartbeat keeps a held lock from expiring while its holder works
func (s *LockService) startHeartbeat(lockID lock.LockID, owner string) {
	if s.config.HeartbeatInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.heartbeats[owner] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := s.repo.Extend(ctx, lockID, owner, s.config.HeartbeatInterval)
				if err == nil {
					err = s.repo.UpdateHeartbeat(ctx, lockID, owner)
				}
				if err != nil {
					// Lock might be released or expired, stop heartbeat
					if !errors.Is(err, context.Canceled) {
						s.logger.Warn("lock heartbeat failed",
							zap.String("lock_id", lockID.String()), zap.Error(err))
					}
					s.stopHeartbeat(owner)
					return
				}
			}
		}
	}()
}

// stopHeartbeat stops the heartbeat goroutine for an owner
func (s *LockService) stopHeartbeat(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, exists := s.heartbeats[owner]; exists {
		cancel()
		delete(s.heartbeats, owner)
	}
}

type lease struct {
	service  *LockService
	lockID   lock.LockID
	owner    string
	released sync.Once
	err      error
}

func (l *lease) Owner() string { return l.owner }

func (l *lease) Release(ctx context.Context) error {
	l.released.Do(func() {
		l.service.stopHeartbeat(l.owner)
		err := l.service.repo.Release(ctx, l.lockID, l.owner)
		if err != nil && !errors.Is(err, lock.ErrLockNotFound) {
			l.err = fmt.Errorf("release application lock: %w", err)
			return
		}
		l.service.logger.Debug("lock released", zap.String("lock_id", l.lockID.String()))
	})
	return l.err
}
