package auth

import (
	"sync"
)

// Signal holds the current identity and notifies subscribers when it changes.
// Subscribers always see the latest value; a slow reader never blocks Set.
type Signal struct {
	mu     sync.Mutex
	cur    *Identity
	nextID int
	subs   map[int]chan *Identity
}

func NewSignal(initial *Identity) *Signal {
	s := &Signal{subs: make(map[int]chan *Identity)}
	if initial.Valid() {
		cp := *initial
		s.cur = &cp
	}
	return s
}

// Current returns a copy of the held identity, or nil when logged out or when
// the held credential is no longer valid.
func (s *Signal) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cur.Valid() {
		return nil
	}
	cp := *s.cur
	return &cp
}

// Set replaces the identity; an invalid identity counts as logout.
func (s *Signal) Set(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.Valid() {
		cp := *id
		s.cur = &cp
	} else {
		s.cur = nil
	}
	s.broadcastLocked()
}

func (s *Signal) Clear() { s.Set(nil) }

// UpdateToken swaps the credential of the current user without a transition.
func (s *Signal) UpdateToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || token == "" {
		return
	}
	cp := *s.cur
	cp.Token = token
	s.cur = &cp
	s.broadcastLocked()
}

// Subscribe returns a channel that receives the current identity immediately
// and then every change. cancel closes the channel.
func (s *Signal) Subscribe() (<-chan *Identity, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan *Identity, 1)
	s.subs[id] = ch
	ch <- s.copyLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Signal) copyLocked() *Identity {
	if s.cur == nil {
		return nil
	}
	cp := *s.cur
	return &cp
}

func (s *Signal) broadcastLocked() {
	for _, ch := range s.subs {
		// drop the stale value so the buffer always holds the newest one
		select {
		case <-ch:
		default:
		}
		ch <- s.copyLocked()
	}
}
