package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/mkwei/parlor/backend/internal/service/ai"
	"github.com/mkwei/parlor/backend/internal/service/conversation"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
	"github.com/mkwei/parlor/backend/pkg/utils"
)

// Handler streams persona replies to clients over SSE and WebSocket.
type Handler struct {
	conversations *conversation.Service
	transcripts   transcript.Store
}

// New creates a stream handler.
func New(conversations *conversation.Service, transcripts transcript.Store) *Handler {
	return &Handler{conversations: conversations, transcripts: transcripts}
}

// RegisterRoutes registers the streaming routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream/{sessionID}", h.handleStream)
	r.Get("/chat/ws/{sessionID}", h.handleWebSocket)
}

// Event is one frame of the streaming envelope shared by the SSE and
// WebSocket transports.
type Event struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

type streamRequest struct {
	InputMessage string `json:"inputMessage"`
}

// handleStream runs one conversation turn and forwards each fragment
// as an SSE frame the moment it arrives.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var payload streamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.InputMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "inputMessage is required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	fragments, err := h.startTurn(r.Context(), w, sessionID, payload.InputMessage)
	if err != nil {
		return
	}
	defer fragments.Close()

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, Event{Event: "start", SessionID: sessionID})

	for {
		fragment, err := fragments.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			utils.SendSSEChunk(w, flusher, Event{Event: "error", SessionID: sessionID, Error: err.Error()})
			return
		}
		utils.SendSSEChunk(w, flusher, Event{Event: "delta", SessionID: sessionID, Content: fragment})
	}

	utils.SendSSEChunk(w, flusher, Event{Event: "end", SessionID: sessionID, Finished: true})
	log.Printf("[stream] completed response for session=%s", sessionID)
}

// startTurn resolves the session and opens the fragment stream,
// writing the HTTP error itself when anything fails before streaming
// begins.
func (h *Handler) startTurn(ctx context.Context, w http.ResponseWriter, sessionID, input string) (*schema.StreamReader[string], error) {
	session, err := h.transcripts.GetSession(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return nil, err
	}

	fragments, err := h.conversations.Converse(ctx, session.PersonaID, sessionID, input)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrSessionBusy):
			utils.RespondError(w, http.StatusConflict, "session already has a request in flight")
		case errors.Is(err, ai.ErrPersonaNotFound):
			utils.RespondError(w, http.StatusNotFound, "persona not found")
		case errors.Is(err, transcript.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found")
		default:
			log.Printf("[stream] failed to start turn for session=%s: %v", sessionID, err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to start generation")
		}
		return nil, err
	}
	return fragments, nil
}
