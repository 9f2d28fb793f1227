// Package checkpoint persists the resumable internal state of an
// agent's conversation, keyed by thread. The checkpoint is distinct
// from the human-readable transcript: it holds the model-facing turns
// an agent replays when a session resumes.
package checkpoint

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ThreadKey derives the checkpoint address for a session. One session
// maps to exactly one thread for its whole life.
func ThreadKey(sessionID string) string {
	return "thread:" + sessionID
}

// Store is the durable checkpoint backend the conversation core
// depends on. Resume returns prior turns in append order, possibly
// none. Append must be durable before it returns.
type Store interface {
	Resume(ctx context.Context, threadKey string) ([]*schema.Message, error)
	Append(ctx context.Context, threadKey string, turns ...*schema.Message) error
}
