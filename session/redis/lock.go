package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/routemesh/core"
)

// DefaultLockTTL bounds how long a crashed holder can block a session.
const DefaultLockTTL = 30 * time.Second

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

var _ core.SessionLocker = (*Locker)(nil)

// only the holder's token may release the lock
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// only the holder's token may extend the lock
var renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Locker implements core.SessionLocker using Redis SET NX PX. Held locks are
// extended every ttl/3 until released, so a slow turn keeps its session.
type Locker struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL sets the lock expiration.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		l.ttl = ttl
	}
}

// WithPollInterval sets how often a waiting turn retries.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.poll = d
	}
}

// NewLocker creates a new Redis locker. Lock keys live under
// prefix+"lock:", apart from the sessions a Store with the same prefix writes.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: prefix,
		ttl:    DefaultLockTTL,
		poll:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) key(sessionID string) string {
	return l.prefix + lockSpace + sessionID
}

// Lock acquires the session lock, polling until it is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, sessionID string) (core.SessionLock, error) {
	lockKey := l.key(sessionID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			h := &heldLock{
				client: l.client,
				key:    lockKey,
				token:  token,
				ttl:    l.ttl,
				stop:   make(chan struct{}),
				done:   make(chan struct{}),
			}
			go h.keepAlive(context.WithoutCancel(ctx))
			return h, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type heldLock struct {
	client *backend.Client
	key    string
	token  string
	ttl    time.Duration

	lost atomic.Bool
	stop chan struct{}
	done chan struct{}

	once      sync.Once
	unlockErr error
}

func (h *heldLock) keepAlive(ctx context.Context) {
	defer close(h.done)

	interval := h.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(ctx, interval)
			err := h.renew(renewCtx)
			cancel()
			if errors.Is(err, core.ErrLockLost) {
				return
			}
		}
	}
}

// renew extends the lock and marks it lost when the token no longer matches.
func (h *heldLock) renew(ctx context.Context) error {
	if h.lost.Load() {
		return core.ErrLockLost
	}
	n, err := renewScript.Run(ctx, h.client, []string{h.key}, h.token, h.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to renew session lock: %w", err)
	}
	if n == 0 {
		h.lost.Store(true)
		return core.ErrLockLost
	}
	return nil
}

// Held checks ownership against Redis and extends the lock on success.
func (h *heldLock) Held(ctx context.Context) error {
	return h.renew(ctx)
}

// Unlock stops the renewal and deletes the key if it still carries our token.
// It returns core.ErrLockLost when the lock had already expired.
func (h *heldLock) Unlock(ctx context.Context) error {
	h.once.Do(func() {
		close(h.stop)
		<-h.done

		n, err := unlockScript.Run(ctx, h.client, []string{h.key}, h.token).Int64()
		switch {
		case err != nil:
			h.unlockErr = fmt.Errorf("failed to release session lock: %w", err)
		case n == 0:
			h.lost.Store(true)
			h.unlockErr = core.ErrLockLost
		}
	})
	return h.unlockErr
}
