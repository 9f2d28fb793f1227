package stream

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mkwei/parlor/backend/internal/service/conversation"
	"github.com/mkwei/parlor/backend/pkg/utils"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Same policy as the CORS middleware.
		return true
	},
}

// handleWebSocket serves the same fragment stream as the SSE endpoint
// over a WebSocket, one turn per client message.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.transcripts.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	for {
		var payload streamRequest
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}
		if payload.InputMessage == "" {
			h.writeEvent(conn, Event{Event: "error", SessionID: sessionID, Error: "inputMessage is required"})
			continue
		}

		if !h.runTurn(r, conn, sessionID, payload.InputMessage) {
			return
		}
	}
}

// runTurn streams one conversation turn to the socket. It reports
// whether the connection is still usable.
func (h *Handler) runTurn(r *http.Request, conn *websocket.Conn, sessionID, input string) bool {
	session, err := h.transcripts.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeEvent(conn, Event{Event: "error", SessionID: sessionID, Error: "session not found"})
		return false
	}

	fragments, err := h.conversations.Converse(r.Context(), session.PersonaID, sessionID, input)
	if err != nil {
		message := "failed to start generation"
		if errors.Is(err, conversation.ErrSessionBusy) {
			message = "session already has a request in flight"
		}
		return h.writeEvent(conn, Event{Event: "error", SessionID: sessionID, Error: message})
	}
	defer fragments.Close()

	if !h.writeEvent(conn, Event{Event: "start", SessionID: sessionID}) {
		return false
	}

	for {
		fragment, err := fragments.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeEvent(conn, Event{Event: "error", SessionID: sessionID, Error: err.Error()})
			return false
		}
		if !h.writeEvent(conn, Event{Event: "delta", SessionID: sessionID, Content: fragment}) {
			return false
		}
	}

	return h.writeEvent(conn, Event{Event: "end", SessionID: sessionID, Finished: true})
}

func (h *Handler) writeEvent(conn *websocket.Conn, event Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", event.SessionID, err)
		return false
	}
	return true
}
