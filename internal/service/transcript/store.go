// Package transcript manages the durable, human-readable record of
// conversations: sessions and their append-only message logs.
package transcript

import (
	"context"
	"errors"

	"github.com/mkwei/parlor/backend/internal/model/chat"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the durable transcript backend. Messages are append-only;
// sessions are created once and never updated.
type Store interface {
	CreateSession(ctx context.Context, personaID string) (chat.Session, error)
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	SaveMessage(ctx context.Context, message chat.Message) error
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
}
