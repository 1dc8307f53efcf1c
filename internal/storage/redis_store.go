package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/redis/go-redis/v9"
)

// RedisConnectionStore persists connections in Redis. Every write replaces
// the full serialized record under its composite key, so concurrent
// refreshes degrade to last-write-wins without partial state.
type RedisConnectionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisConnectionStore(client *redis.Client, prefix string) *RedisConnectionStore {
	if prefix == "" {
		prefix = "connectorhub"
	}

	return &RedisConnectionStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisConnectionStore) personalKey(userID string, key domain.ConnectorKey) string {
	return fmt.Sprintf("%s:connections:personal:%s:%s", s.prefix, userID, key)
}

func (s *RedisConnectionStore) sharedKey(projectID string, key domain.ConnectorKey) string {
	return fmt.Sprintf("%s:connections:shared:%s:%s", s.prefix, projectID, key)
}

func (s *RedisConnectionStore) pendingKey(state string) string {
	return fmt.Sprintf("%s:authorizations:%s", s.prefix, state)
}

func (s *RedisConnectionStore) GetPersonalConnection(ctx context.Context, userID string, key domain.ConnectorKey) (domain.PersonalConnection, error) {
	var conn domain.PersonalConnection
	if err := s.get(ctx, s.personalKey(userID, key), &conn); err != nil {
		return domain.PersonalConnection{}, err
	}

	return conn, nil
}

func (s *RedisConnectionStore) PutPersonalConnection(ctx context.Context, conn domain.PersonalConnection) error {
	return s.put(ctx, s.personalKey(conn.UserID, conn.ConnectorKey), conn, 0)
}

func (s *RedisConnectionStore) DeletePersonalConnection(ctx context.Context, userID string, key domain.ConnectorKey) error {
	if err := s.client.Del(ctx, s.personalKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	return nil
}

func (s *RedisConnectionStore) GetSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey) (domain.SharedConnection, error) {
	var conn domain.SharedConnection
	if err := s.get(ctx, s.sharedKey(projectID, key), &conn); err != nil {
		return domain.SharedConnection{}, err
	}

	return conn, nil
}

func (s *RedisConnectionStore) PutSharedConnection(ctx context.Context, conn domain.SharedConnection) error {
	return s.put(ctx, s.sharedKey(conn.ProjectID, conn.ConnectorKey), conn, 0)
}

func (s *RedisConnectionStore) DeleteSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey) error {
	if err := s.client.Del(ctx, s.sharedKey(projectID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete shared connection: %w", err)
	}

	return nil
}

func (s *RedisConnectionStore) PutPendingAuthorization(ctx context.Context, auth domain.PendingAuthorization, ttl time.Duration) error {
	return s.put(ctx, s.pendingKey(auth.State), auth, ttl)
}

func (s *RedisConnectionStore) TakePendingAuthorization(ctx context.Context, state string) (domain.PendingAuthorization, error) {
	data, err := s.client.GetDel(ctx, s.pendingKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingAuthorization{}, domain.ErrConnectionNotFound
		}
		return domain.PendingAuthorization{}, fmt.Errorf("failed to take pending authorization: %w", err)
	}

	var auth domain.PendingAuthorization
	if err := json.Unmarshal(data, &auth); err != nil {
		return domain.PendingAuthorization{}, fmt.Errorf("failed to unmarshal pending authorization: %w", err)
	}

	return auth, nil
}

func (s *RedisConnectionStore) get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrConnectionNotFound
		}
		return fmt.Errorf("failed to get record: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return nil
}

func (s *RedisConnectionStore) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}
