package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appforge/connectorhub/pkg/domain"
)

// MemoryConnectionStore is an in-process ConnectionStore used in tests and
// single-node local runs.
type MemoryConnectionStore struct {
	mu sync.RWMutex

	personal map[string]domain.PersonalConnection
	shared   map[string]domain.SharedConnection
	pending  map[string]pendingEntry
}

type pendingEntry struct {
	auth      domain.PendingAuthorization
	expiresAt time.Time
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		personal: make(map[string]domain.PersonalConnection),
		shared:   make(map[string]domain.SharedConnection),
		pending:  make(map[string]pendingEntry),
	}
}

func personalKey(userID string, key domain.ConnectorKey) string {
	return fmt.Sprintf("%s:%s", userID, key)
}

func sharedKey(projectID string, key domain.ConnectorKey) string {
	return fmt.Sprintf("%s:%s", projectID, key)
}

func (s *MemoryConnectionStore) GetPersonalConnection(ctx context.Context, userID string, key domain.ConnectorKey) (domain.PersonalConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.personal[personalKey(userID, key)]
	if !ok {
		return domain.PersonalConnection{}, domain.ErrConnectionNotFound
	}

	return conn, nil
}

func (s *MemoryConnectionStore) PutPersonalConnection(ctx context.Context, conn domain.PersonalConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.personal[personalKey(conn.UserID, conn.ConnectorKey)] = conn

	return nil
}

func (s *MemoryConnectionStore) DeletePersonalConnection(ctx context.Context, userID string, key domain.ConnectorKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.personal, personalKey(userID, key))

	return nil
}

func (s *MemoryConnectionStore) GetSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey) (domain.SharedConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.shared[sharedKey(projectID, key)]
	if !ok {
		return domain.SharedConnection{}, domain.ErrConnectionNotFound
	}

	return conn, nil
}

func (s *MemoryConnectionStore) PutSharedConnection(ctx context.Context, conn domain.SharedConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shared[sharedKey(conn.ProjectID, conn.ConnectorKey)] = conn

	return nil
}

func (s *MemoryConnectionStore) DeleteSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.shared, sharedKey(projectID, key))

	return nil
}

func (s *MemoryConnectionStore) PutPendingAuthorization(ctx context.Context, auth domain.PendingAuthorization, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[auth.State] = pendingEntry{
		auth:      auth,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

func (s *MemoryConnectionStore) TakePendingAuthorization(ctx context.Context, state string) (domain.PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[state]
	if !ok {
		return domain.PendingAuthorization{}, domain.ErrConnectionNotFound
	}

	delete(s.pending, state)

	if time.Now().After(entry.expiresAt) {
		return domain.PendingAuthorization{}, domain.ErrConnectionNotFound
	}

	return entry.auth, nil
}
