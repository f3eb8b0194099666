package auth

import (
	"sync"
	"time"
)

// UserStore defines the interface for user persistence
type UserStore interface {
	// User CRUD operations
	CreateUser(user *User) error
	GetUser(id string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UpdateUser(user *User) error
	DeleteUser(id string) error
	ListUsers() ([]*User, error)

	// Authentication helpers
	RecordLoginAttempt(username string, success bool) error

	// Refresh token operations
	SaveRefreshToken(token *RefreshToken) error
	GetRefreshToken(id string) (*RefreshToken, error)
	GetRefreshTokensByUserID(userID string) ([]*RefreshToken, error)
	RevokeRefreshToken(id string) error
	DeleteExpiredRefreshTokens() error

	// Audit logging
	SaveAuditLog(log *AuditLog) error
	GetAuditLogs(criteria AuditSearchCriteria) ([]*AuditLog, error)
}

// AuditLogger defines audit logging interface
type AuditLogger interface {
	Log(entry *AuditLog) error
	Query(criteria AuditSearchCriteria) ([]*AuditLog, error)
}

// MemoryStore is an in-memory UserStore for embedded engines and
// tests. A deployment that needs durable principals persists them
// through the engine's own graph instead.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*User
	refreshTokens map[string]*RefreshToken
	auditLogs     []*AuditLog
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		refreshTokens: make(map[string]*RefreshToken),
	}
}

func (s *MemoryStore) CreateUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return ErrUserExists
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetUserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) UpdateUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) ListUsers() ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *MemoryStore) RecordLoginAttempt(username string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username != username {
			continue
		}
		if success {
			user.FailedLogins = 0
		} else {
			user.FailedLogins++
		}
		return nil
	}
	return ErrUserNotFound
}

func (s *MemoryStore) SaveRefreshToken(token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[token.ID] = token
	return nil
}

func (s *MemoryStore) GetRefreshToken(id string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.refreshTokens[id]
	if !ok {
		return nil, ErrInvalidToken
	}
	return token, nil
}

func (s *MemoryStore) GetRefreshTokensByUserID(userID string) ([]*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RefreshToken
	for _, token := range s.refreshTokens {
		if token.UserID == userID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *MemoryStore) RevokeRefreshToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.refreshTokens[id]
	if !ok {
		return ErrInvalidToken
	}
	token.Revoked = true
	return nil
}

func (s *MemoryStore) DeleteExpiredRefreshTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, token := range s.refreshTokens {
		if time.Now().After(token.ExpiresAt) {
			delete(s.refreshTokens, id)
		}
	}
	return nil
}

func (s *MemoryStore) SaveAuditLog(log *AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

func (s *MemoryStore) GetAuditLogs(criteria AuditSearchCriteria) ([]*AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AuditLog
	for _, log := range s.auditLogs {
		if criteria.UserID != "" && log.UserID != criteria.UserID {
			continue
		}
		if criteria.Username != "" && log.Username != criteria.Username {
			continue
		}
		if criteria.Action != "" && log.Action != criteria.Action {
			continue
		}
		if criteria.Success != nil && log.Success != *criteria.Success {
			continue
		}
		out = append(out, log)
	}
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out, nil
}
