package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore stores sessions as JSON under session:<contact_id>.
func NewSessionStore(client *redis.Client, ttl time.Duration) SessionStore {
	return &sessionStore{client: client, ttl: ttl}
}

// Get returns the stored session or ErrNotFound.
func (s *sessionStore) Get(ctx context.Context, contactID string) (model.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(contactID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return model.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *sessionStore) Save(ctx context.Context, contactID string, session model.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(contactID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting a missing session returns ErrNotFound.
func (s *sessionStore) Delete(ctx context.Context, contactID string) error {
	n, err := s.client.Del(ctx, sessionKey(contactID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
