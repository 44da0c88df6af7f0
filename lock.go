package hkv

import "sync"

// LockToken is an opaque handle standing in for "the calling agent" in
// the reentrant-lock discipline of Store. Go has no portable equivalent
// of a current-goroutine identity, so identity is made explicit: a
// Session keeps exactly one LockToken for its lifetime, and an embedded
// caller mints its own via NewLockToken and reuses it across calls that
// must nest without deadlocking.
type LockToken struct{ _ byte }

// NewLockToken allocates a fresh, comparable agent identity.
func NewLockToken() *LockToken { return &LockToken{} }

// reentrantLock is a mutex that may be re-acquired without blocking by
// whoever currently holds it, tracked by LockToken identity and a
// depth counter.
type reentrantLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner *LockToken
	depth int
}

func newReentrantLock() *reentrantLock {
	l := &reentrantLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// lock acquires the lock for owner, blocking while a different owner
// holds it. Reentrant: the same owner may call lock any number of
// times and must call unlock the same number of times.
func (l *reentrantLock) lock(owner *LockToken) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.owner != nil && l.owner != owner {
		l.cond.Wait()
	}
	l.owner = owner
	l.depth++
}

// unlock releases one level of owner's hold. Unlocking with depth
// already at zero, or by a token that is not the current owner, is a
// BADUNLOCK error rather than a panic — the wire protocol needs to
// report this to a misbehaving client without killing the session.
func (l *reentrantLock) unlock(owner *LockToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 || l.owner != owner {
		return ErrBadUnlock
	}
	l.depth--
	if l.depth == 0 {
		l.owner = nil
		l.cond.Signal()
	}
	return nil
}
