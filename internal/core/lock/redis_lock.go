package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/usecase"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:wallet_tx:"

var (
	ErrLockNotHeld = errors.New("lock was not held or already expired")
	ErrEmptyKey    = errors.New("lock key cannot be empty")
)

type Options struct {
	// Expiry is the lease; a holder that dies frees the key after it.
	Expiry time.Duration
}

// RedisLock is a try-lock over Redis (Redlock via redsync). Every successful
// Acquire returns its own Lease; only that lease can release the key.
type RedisLock struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    logger.Logger
}

// Lease is one acquisition of a key. Release it exactly once.
type Lease struct {
	key   string
	mutex *redsync.Mutex
	log   logger.Logger

	mu       sync.Mutex
	released bool
}

func NewRedisLock(client redis.UniversalClient, opts Options, log logger.Logger) *RedisLock {
	if opts.Expiry <= 0 {
		opts.Expiry = 30 * time.Second
	}

	return &RedisLock{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: opts.Expiry,
		log:    log,
	}
}

// Acquire makes a single attempt. Contention yields (nil, false, nil); anything
// else redsync reports is returned as an error.
func (l *RedisLock) Acquire(ctx context.Context, key string) (usecase.LockHandle, bool, error) {
	lease, ok, err := l.TryLock(ctx, key)
	if !ok {
		return nil, false, err
	}
	return lease, true, nil
}

// TryLock is Acquire with the concrete Lease.
func (l *RedisLock) TryLock(ctx context.Context, key string) (*Lease, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrEmptyKey
	}

	mutex := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			l.log.Debug("Lock already held", logger.StringField("lock_key", key))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	l.log.Debug("Lock acquired", logger.StringField("lock_key", key))
	return &Lease{key: key, mutex: mutex, log: l.log}, true, nil
}

// Release frees the key only while this lease still owns it; otherwise it
// returns ErrLockNotHeld.
func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return ErrLockNotHeld
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.released {
		return ErrLockNotHeld
	}
	ls.released = true

	released, err := ls.mutex.UnlockContext(ctx)
	if err != nil {
		if lostOwnership(err) {
			return ErrLockNotHeld
		}
		return fmt.Errorf("release lock %s: %w", ls.key, err)
	}
	if !released {
		return ErrLockNotHeld
	}

	ls.log.Debug("Lock released", logger.StringField("lock_key", ls.key))
	return nil
}

// isContention matches the ways redsync reports a key held by someone else.
func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}

// lostOwnership matches unlock errors for a key that expired or now belongs
// to another holder.
func lostOwnership(err error) bool {
	if errors.Is(err, redsync.ErrLockAlreadyExpired) || isContention(err) {
		return true
	}
	return strings.Contains(err.Error(), "already expired")
}
