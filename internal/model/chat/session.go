package chat

import "time"

// Session ties a persona to a durable conversation context. The
// persona binding is fixed for the life of the session.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
