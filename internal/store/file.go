package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// fileStore keeps the whole chat state in memory and rewrites a single JSON
// file on every mutation. The file is written to a temp path and renamed
// into place so a crash mid-write never leaves a corrupt state file.
type fileStore struct {
	log  *zap.Logger
	path string
	cap  int

	mu    sync.RWMutex
	state persistedState
}

// persistedState is the on-disk shape: the bounded message log plus the
// token-to-user registry.
type persistedState struct {
	Messages []Message       `json:"messages"`
	Users    map[string]User `json:"users"`
}

func openFile(cfg Config, log *zap.Logger) (Store, error) {
	path := cfg.Path
	if path == "" {
		return nil, errors.New("storage path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:  log,
		path: path,
		cap:  cfg.Cap,
		state: persistedState{
			Messages: []Message{},
			Users:    map[string]User{},
		},
	}
	s.load()
	return s, nil
}

// load reads the state file. A missing or unreadable file is not an error:
// the store starts fresh rather than failing the process.
func (s *fileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("could not read state file, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("state file is corrupt, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	if state.Messages == nil {
		state.Messages = []Message{}
	}
	if state.Users == nil {
		state.Users = map[string]User{}
	}
	if len(state.Messages) > s.cap {
		state.Messages = state.Messages[len(state.Messages)-s.cap:]
	}
	s.state = state
	s.log.Info("loaded persisted state",
		zap.Int("messages", len(state.Messages)), zap.Int("users", len(state.Users)))
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Recent(k int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.state.Messages
	if k < 0 {
		k = 0
	}
	if k > len(msgs) {
		k = len(msgs)
	}
	out := make([]Message, k)
	copy(out, msgs[len(msgs)-k:])
	return out
}

func (s *fileStore) Append(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Messages
	next := append(append([]Message{}, prev...), m)
	if len(next) > s.cap {
		next = next[len(next)-s.cap:]
	}
	s.state.Messages = next

	if err := s.persistLocked(); err != nil {
		// Roll back so the in-memory log stays consistent with disk.
		s.state.Messages = prev
		return err
	}
	return nil
}

func (s *fileStore) RegisterUser(token, username string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.state.Users[token]
	s.state.Users[token] = User{Username: username, JoinedAt: now}

	if err := s.persistLocked(); err != nil {
		if existed {
			s.state.Users[token] = prev
		} else {
			delete(s.state.Users, token)
		}
		return err
	}
	return nil
}

func (s *fileStore) LookupUser(token string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.state.Users[token]
	return u, ok
}

// persistLocked writes the full state with a temp-file and rename swap.
// Callers must hold s.mu.
func (s *fileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
