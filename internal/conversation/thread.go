package conversation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hragd/hragd/internal/slots"
)

// Thread is one operator conversation. All fields besides the turn lock
// are owned by whichever goroutine holds the lock.
type Thread struct {
	ID           string
	State        State
	Domain       string
	Intent       string
	Slots        slots.SlotSet
	Turns        []Turn
	ClarifyCount int
	LastActive   time.Time
	CreatedAt    time.Time

	turnMu sync.Mutex
}

func newThread(id string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:         id,
		State:      StateIdle,
		Slots:      slots.SlotSet{},
		LastActive: now,
		CreatedAt:  now,
	}
}

// TryAcquire claims the thread for one turn. It never blocks; a busy
// thread is the caller's problem to report.
func (t *Thread) TryAcquire() bool {
	return t.turnMu.TryLock()
}

// Release returns the thread after a turn.
func (t *Thread) Release() {
	t.turnMu.Unlock()
}

// transition moves the thread to a new state, enforcing the table.
func (t *Thread) transition(to State) error {
	if !canTransition(t.State, to) {
		return fmt.Errorf("illegal state transition %s -> %s on thread %s", t.State, to, t.ID)
	}
	t.State = to
	return nil
}

// touch refreshes the TTL clock.
func (t *Thread) touch() {
	t.LastActive = time.Now().UTC()
}

// ThreadStore holds live threads in memory. Threads are ephemeral by
// design: a restart forgets conversations but never knowledge.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	ttl     time.Duration
}

// NewThreadStore creates a store whose threads expire after ttl of
// inactivity.
func NewThreadStore(ttl time.Duration) *ThreadStore {
	return &ThreadStore{
		threads: make(map[string]*Thread),
		ttl:     ttl,
	}
}

// GetOrCreate returns the thread with the given id, creating it when the
// id is empty or unknown. Unknown ids get a fresh thread under a new id so
// stale clients never resurrect expired state.
func (s *ThreadStore) GetOrCreate(id string) (*Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if t, ok := s.threads[id]; ok {
			return t, false
		}
	}

	t := newThread(uuid.NewString())
	s.threads[t.ID] = t
	return t, true
}

// Get returns a thread without creating one.
func (s *ThreadStore) Get(id string) (*Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	return t, ok
}

// ActiveCount reports threads that are neither closed nor expired.
func (s *ThreadStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-s.ttl)
	n := 0
	for _, t := range s.threads {
		if t.State != StateClosed && t.LastActive.After(cutoff) {
			n++
		}
	}
	return n
}

// sweep removes closed and expired threads. A thread mid-turn holds its
// lock, so TryAcquire failing means it is alive regardless of timestamps.
func (s *ThreadStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-s.ttl)
	removed := 0
	for id, t := range s.threads {
		if t.State != StateClosed && t.LastActive.After(cutoff) {
			continue
		}
		if !t.TryAcquire() {
			continue
		}
		t.Release()
		delete(s.threads, id)
		removed++
	}
	return removed
}

// StartSweeper runs periodic expiry until ctx is cancelled.
func (s *ThreadStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					log.Printf("conversation: swept %d expired threads", n)
				}
			}
		}
	}()
}
