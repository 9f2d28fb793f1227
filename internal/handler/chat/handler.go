package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
	"github.com/mkwei/parlor/backend/pkg/utils"
)

// Handler serves session lifecycle and transcript reads.
type Handler struct {
	transcripts transcript.Store
	personas    persona.Store
}

// New creates a chat handler.
func New(transcripts transcript.Store, personas persona.Store) *Handler {
	return &Handler{transcripts: transcripts, personas: personas}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/chat/init/{personaID}", h.handleInit)
	r.Get("/chat/messages/{sessionID}", h.handleMessages)
}

// handleCreateSession provisions a session for the persona named in
// the request body.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	h.createSession(w, r, payload.PersonaID)
}

// handleInit is the path-parameter variant of session creation.
func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	h.createSession(w, r, chi.URLParam(r, "personaID"))
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request, personaID string) {
	p, ok := h.personas.FindByID(personaID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	if !p.IsActive {
		utils.RespondError(w, http.StatusNotFound, "persona is not active")
		return
	}

	session, err := h.transcripts.CreateSession(r.Context(), personaID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleMessages returns the persisted transcript of a session.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.transcripts.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, transcript.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}
