package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/mkwei/parlor/backend/internal/handler/chat"
	personahandler "github.com/mkwei/parlor/backend/internal/handler/persona"
	streamhandler "github.com/mkwei/parlor/backend/internal/handler/stream"
	"github.com/mkwei/parlor/backend/internal/metrics"
	middlewarePkg "github.com/mkwei/parlor/backend/internal/middleware"
	personaModel "github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/internal/service/conversation"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
	"github.com/mkwei/parlor/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.AdminStore, transcripts transcript.Store, conversations *conversation.Service, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := personahandler.New(personas)
	chatHandler := chathandler.New(transcripts, personas)

	var streamHandler *streamhandler.Handler
	if conversations != nil {
		streamHandler = streamhandler.New(conversations, transcripts)
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		if streamHandler != nil {
			streamHandler.RegisterRoutes(api)
		} else {
			api.Post("/chat/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
			})
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())

	return r
}
