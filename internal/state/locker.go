package state

import (
	"github.com/EagleChen/mapmutex"
	"github.com/emrgen/mediakit/internal/identity"
)

// Locker serializes operations per context. Different contexts never
// contend with each other.
type Locker struct {
	mu *mapmutex.Mutex
}

func NewLocker() *Locker {
	// retries up to 800 times with a backoff capped at 0.1s
	return &Locker{mu: mapmutex.NewCustomizedMapMutex(800, 100000000, 10, 1.1, 0.2)}
}

// Lock acquires the context's lock and returns the function releasing it.
// It gives up with ErrContextBusy when the lock stays held.
func (l *Locker) Lock(ref identity.ContextRef) (func(), error) {
	key := ref.String()
	if !l.mu.TryLock(key) {
		return nil, ErrContextBusy
	}

	return func() { l.mu.Unlock(key) }, nil
}

// LockPair acquires two contexts in a fixed order.
func (l *Locker) LockPair(a, b identity.ContextRef) (func(), error) {
	if a.String() > b.String() {
		a, b = b, a
	}

	unlockA, err := l.Lock(a)
	if err != nil {
		return nil, err
	}
	if a == b {
		return unlockA, nil
	}

	unlockB, err := l.Lock(b)
	if err != nil {
		unlockA()
		return nil, err
	}

	return func() {
		unlockB()
		unlockA()
	}, nil
}
