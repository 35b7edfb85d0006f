package identity

import (
	"fmt"
	"net/http"
	"strconv"
)

// User is one account of a static realm.
type User struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// StaticManager authenticates HTTP Basic credentials against a fixed set
// of bcrypt accounts.
type StaticManager struct {
	realm string
	users map[string]User
}

var _ Manager = (*StaticManager)(nil)

// NewStaticManager creates a manager for realm. Duplicate usernames are
// rejected.
func NewStaticManager(realm string, users []User) (*StaticManager, error) {
	m := &StaticManager{realm: realm, users: make(map[string]User, len(users))}
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("realm %s: empty username", realm)
		}
		if _, dup := m.users[u.Username]; dup {
			return nil, fmt.Errorf("realm %s: duplicate user %q", realm, u.Username)
		}
		m.users[u.Username] = u
	}
	return m, nil
}

func (m *StaticManager) Realm() string { return m.realm }

func (m *StaticManager) Challenge() string {
	return "Basic realm=" + strconv.Quote(m.realm)
}

// Verify checks a username/password pair.
func (m *StaticManager) Verify(username, password string) (*Principal, error) {
	u, ok := m.users[username]
	if !ok || !VerifyPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &Principal{Name: u.Username, Realm: m.realm, Roles: u.Roles}, nil
}

func (m *StaticManager) Authenticate(r *http.Request) (*Principal, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrNoCredentials
	}
	return m.Verify(username, password)
}
