package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/routemesh/core"
)

var _ core.SessionLocker = (*MutexLocker)(nil)

// MutexLocker serializes turns per session inside one process. Idle entries
// are dropped once no turn holds or waits for them.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewMutexLocker creates an empty locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session lock is held or ctx is done.
func (l *MutexLocker) Lock(ctx context.Context, sessionID string) (core.SessionLock, error) {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, sl)
		return nil, ctx.Err()
	}

	return &heldMutex{locker: l, sessionID: sessionID, sl: sl}, nil
}

// heldMutex never expires, so it is held until Unlock.
type heldMutex struct {
	locker    *MutexLocker
	sessionID string
	sl        *sessionLock
	once      sync.Once
	released  atomic.Bool
}

func (h *heldMutex) Held(context.Context) error {
	if h.released.Load() {
		return core.ErrLockLost
	}
	return nil
}

func (h *heldMutex) Unlock(context.Context) error {
	h.once.Do(func() {
		h.released.Store(true)
		<-h.sl.ch
		h.locker.release(h.sessionID, h.sl)
	})
	return nil
}

func (l *MutexLocker) release(sessionID string, sl *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, sessionID)
	}
}
