package session

import "fmt"

// Manager ties credential checks to the session store.
type Manager struct {
	store Store
	auth  Authenticator
}

func NewManager(store Store, auth Authenticator) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store, auth: auth}
}

// Login returns a new session token, or ErrInvalidCredentials.
func (m *Manager) Login(identity string, secret string) (string, error) {
	if m.auth == nil || !m.auth.Authenticate(identity, secret) {
		return "", ErrInvalidCredentials
	}
	sess, err := m.store.Create(identity)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.Token, nil
}

func (m *Manager) IsValid(token string) bool {
	_, ok := m.store.Validate(token)
	return ok
}

func (m *Manager) Identity(token string) (string, bool) {
	sess, ok := m.store.Validate(token)
	return sess.Identity, ok
}

// Logout forgets the session. Unknown tokens are ignored.
func (m *Manager) Logout(token string) {
	_ = m.store.Destroy(token)
}

func (m *Manager) Active() int {
	return m.store.Len()
}
