package ports

import "context"

// Unlock releases a lock obtained from Locker.Lock
type Unlock func()

// Locker serialises state transitions for a single transaction across callers.
// Lock blocks until the lock is held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
