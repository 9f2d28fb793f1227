package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/mkwei/parlor/backend/internal/model/chat"
)

// RedisStore implements Store on Redis: one JSON value per session and
// one list of JSON-encoded messages per transcript. Messages are only
// ever pushed to the tail, matching the append-only contract.
type RedisStore struct {
	client *backend.Client
	prefix string
}

// NewRedisStore creates a transcript store from an existing client.
func NewRedisStore(client *backend.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "parlor:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *RedisStore) messagesKey(sessionID string) string {
	return s.prefix + "messages:" + sessionID
}

// CreateSession provisions a session bound to a persona.
func (s *RedisStore) CreateSession(ctx context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return chat.Session{}, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(session.ID), data, 0).Err(); err != nil {
		return chat.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return chat.Session{}, ErrSessionNotFound
		}
		return chat.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var session chat.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return chat.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// SaveMessage appends a message to the session transcript.
func (s *RedisStore) SaveMessage(ctx context.Context, message chat.Message) error {
	if _, err := s.GetSession(ctx, message.SessionID); err != nil {
		return err
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := s.client.RPush(ctx, s.messagesKey(message.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// LoadTranscript returns stored messages for the session in insertion
// order.
func (s *RedisStore) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	messages := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
