// Package locks provides advisory cross-instance locks on redsync. The
// token manager uses them to avoid concurrent refreshes across instances;
// they are best effort and nothing depends on them for correctness.
package locks

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"coursehub/internal/common/logging"
	redisclient "coursehub/internal/redis"
)

// Manager hands out advisory locks backed by Redis.
type Manager struct {
	rs     *redsync.Redsync
	logger logging.Logger
}

// NewManager creates a lock manager on the shared Redis connection.
func NewManager(client *redisclient.Client, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	pool := goredis.NewPool(client.Underlying())
	return &Manager{rs: redsync.New(pool), logger: logger}
}

// WithLock runs fn under an advisory lock. If the lock cannot be acquired
// (held elsewhere, or Redis unavailable) fn runs anyway; the lock only
// reduces duplicate work, it never gates it.
func (m *Manager) WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error {
	mutex := m.rs.NewMutex("lock:"+name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(3),
		redsync.WithRetryDelay(50*time.Millisecond))

	if err := mutex.LockContext(ctx); err != nil {
		m.logger.Debug("advisory lock not acquired, proceeding without it",
			logging.Field{Key: "lock", Value: name},
			logging.Err(err))
		return fn()
	}

	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			m.logger.Debug("failed to release advisory lock",
				logging.Field{Key: "lock", Value: name},
				logging.Err(err))
		}
	}()

	return fn()
}
