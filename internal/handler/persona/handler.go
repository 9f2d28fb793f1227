package persona

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/pkg/utils"
)

// Handler serves the persona admin surface.
type Handler struct {
	personas persona.AdminStore
}

// New creates a persona handler.
func New(personas persona.AdminStore) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes registers the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
	r.Get("/personas/{personaID}", h.handleGet)
	r.Post("/personas", h.handleCreate)
	r.Put("/personas/{personaID}", h.handleUpdate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := h.personas.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.PublicName == "" {
		utils.RespondError(w, http.StatusBadRequest, "publicName is required")
		return
	}

	p.ID = ""
	utils.RespondJSON(w, http.StatusCreated, h.personas.Put(p))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	existing, ok := h.personas.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}

	var p persona.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	utils.RespondJSON(w, http.StatusOK, h.personas.Put(p))
}
