package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("session not found")
)

type Session struct {
	Token     string
	Identity  string
	CreatedAt time.Time
}

// Store keeps authenticated sessions. Implementations must be safe for
// concurrent use.
type Store interface {
	Create(identity string) (Session, error)
	Validate(token string) (Session, bool)
	Destroy(token string) error
	Len() int
}

// MemoryStore keeps sessions in process memory. Sessions never expire and
// are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
	newToken func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]Session{},
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

func (s *MemoryStore) Create(identity string) (Session, error) {
	sess := Session{
		Token:     s.newToken(),
		Identity:  identity,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.Token]; exists {
		return Session{}, errors.New("session token collision")
	}
	s.sessions[sess.Token] = sess
	return sess, nil
}

func (s *MemoryStore) Validate(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

func (s *MemoryStore) Destroy(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
