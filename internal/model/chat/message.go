package chat

import "time"

// Message roles. The transcript only ever records these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted turn of a session transcript. Messages are
// append-only; the core never edits or deletes one.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
