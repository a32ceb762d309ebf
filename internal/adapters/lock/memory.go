package lock

import (
	"context"
	"sync"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

// keyedLock is a one-slot semaphore shared by every caller locking the same key
type keyedLock struct {
	slot chan struct{}
	refs int
}

// MemoryLocker serialises callers within a single process. Entries are dropped
// once no caller holds or waits on them.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

// NewMemoryLocker creates an in-process keyed locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free or ctx is done
func (m *MemoryLocker) Lock(ctx context.Context, key string) (ports.Unlock, error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{slot: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, domain.WrapError(domain.ErrorCodeLockError, "lock wait cancelled", ctx.Err()).
			WithDetail("key", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.slot
			m.release(key, l)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// size returns the number of tracked keys
func (m *MemoryLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

var _ ports.Locker = (*MemoryLocker)(nil)
