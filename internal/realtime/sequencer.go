package realtime

import "sync"

// Sequencer serializes work per ticket. Keys are reference counted so idle
// tickets do not accumulate locks.
type Sequencer struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{locks: make(map[int64]*keyLock)}
}

// Do runs fn while holding the lock for key. Calls for the same key run one at a
// time in lock acquisition order; calls for different keys run concurrently.
// A nil Sequencer runs fn directly.
func (s *Sequencer) Do(key int64, fn func() error) error {
	if s == nil {
		return fn()
	}
	l := s.acquire(key)
	defer s.release(key, l)
	return fn()
}

func (s *Sequencer) acquire(key int64) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Sequencer) release(key int64, l *keyLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Len returns the number of keys currently held or awaited.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
