// Package redislock grants application leases through Redis, for deployments
// where several hosts share one store.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
)

// Deletes the key only while it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Pushes the expiry only while the key still holds our token
const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// Client is the subset of *redis.Client the locker uses
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Config holds configuration for the Redis locker
type Config struct {
	KeyPrefix       string
	TTL             time.Duration
	WaitTimeout     time.Duration
	RetryInterval   time.Duration
	RefreshInterval time.Duration // 0 disables refresh
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       "loanstage:lock:",
		TTL:             30 * time.Second,
		WaitTimeout:     2 * time.Second,
		RetryInterval:   50 * time.Millisecond,
		RefreshInterval: 10 * time.Second,
	}
}

// Locker implements output.Locker with SET NX PX and token-checked release
type Locker struct {
	client Client
	config Config
	logger *zap.Logger
	wg     sync.WaitGroup
}

var _ output.Locker = (*Locker)(nil)

// NewLocker creates a Redis-backed locker
func NewLocker(client Client, config Config, logger *zap.Logger) *Locker {
	def := DefaultConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{client: client, config: config, logger: logger}
}

// Acquire obtains the lease for an application, retrying until WaitTimeout elapses
func (l *Locker) Acquire(ctx context.Context, applicationID string) (output.Lease, error) {
	lockID, err := lock.ForApplication(applicationID)
	if err != nil {
		return nil, err
	}
	key := l.config.KeyPrefix + lockID.String()
	token := uuid.NewString()

	deadline := time.Now().Add(l.config.WaitTimeout)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire application lock: %w", err)
		}
		if ok {
			return l.newLease(key, token), nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("application %s: %w", applicationID, lock.ErrLockHeld)
		}

		timer := time.NewTimer(l.config.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Wait blocks until every refresh goroutine has exited
func (l *Locker) Wait() {
	l.wg.Wait()
}

func (l *Locker) newLease(key, token string) *lease {
	ctx, cancel := context.WithCancel(context.Background())
	ls := &lease{locker: l, key: key, token: token, cancel: cancel}

	if l.config.RefreshInterval > 0 {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.refresh(ctx, key, token)
		}()
	}
	return ls
}

func (l *Locker) refresh(ctx context.Context, key, token string) {
	ticker := time.NewTicker(l.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.client.Eval(ctx, refreshScript, []string{key}, token, l.config.TTL.Milliseconds()).Int64()
			if ctx.Err() != nil {
				// Released while the refresh was in flight
				return
			}
			if err != nil {
				l.logger.Warn("lock refresh failed", zap.String("key", key), zap.Error(err))
				return
			}
			if n == 0 {
				l.logger.Warn("lock lost before release", zap.String("key", key))
				return
			}
		}
	}
}

type lease struct {
	locker   *Locker
	key      string
	token    string
	cancel   context.CancelFunc
	released sync.Once
	err      error
}

func (ls *lease) Owner() string { return ls.token }

func (ls *lease) Release(ctx context.Context) error {
	ls.released.Do(func() {
		ls.cancel()
		// A key that expired or was taken over counts as released
		if err := ls.locker.client.Eval(ctx, releaseScript, []string{ls.key}, ls.token).Err(); err != nil {
			ls.err = fmt.Errorf("release application lock: %w", err)
		}
	})
	return ls.err
}
