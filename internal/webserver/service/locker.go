package service

import "sync"

// A Locker provides a read-write lock per session.
// Chunk writes share the lock, reassembly and cleanup hold it exclusively.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sync.RWMutex
	refs int
}

// NewLocker returns a new Locker.
func NewLocker() *Locker {
	return &Locker{
		locks: map[string]*lockEntry{},
	}
}

// RLock acquires the shared lock of the session and returns its release function.
func (l *Locker) RLock(session string) func() {
	e := l.acquire(session)
	e.RLock()
	return func() {
		e.RUnlock()
		l.release(session)
	}
}

// Lock acquires the exclusive lock of the session and returns its release function.
func (l *Locker) Lock(session string) func() {
	e := l.acquire(session)
	e.Lock()
	return func() {
		e.Unlock()
		l.release(session)
	}
}

// Len returns the number of sessions currently referenced.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) acquire(session string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[session]
	if !ok {
		e = &lockEntry{}
		l.locks[session] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(session string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.locks[session]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, session)
	}
}
