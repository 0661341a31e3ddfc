package store

import "sync"

// Memory is a process-local Store with no durability. It backs the "memory"
// driver and doubles as the fake used by handler and hub tests.
type Memory struct {
	mu       sync.RWMutex
	cap      int
	messages []Message
	users    map[string]User
}

// NewMemory creates an empty in-memory store bounded to the given cap.
func NewMemory(cap int) *Memory {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Memory{
		cap:   cap,
		users: make(map[string]User),
	}
}

func (s *Memory) Recent(k int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k < 0 {
		k = 0
	}
	if k > len(s.messages) {
		k = len(s.messages)
	}
	out := make([]Message, k)
	copy(out, s.messages[len(s.messages)-k:])
	return out
}

func (s *Memory) Append(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, m)
	if len(s.messages) > s.cap {
		s.messages = s.messages[len(s.messages)-s.cap:]
	}
	return nil
}

func (s *Memory) RegisterUser(token, username string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[token] = User{Username: username, JoinedAt: now}
	return nil
}

func (s *Memory) LookupUser(token string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[token]
	return u, ok
}

func (s *Memory) Close() error { return nil }
