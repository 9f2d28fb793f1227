package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/mkwei/parlor/backend/internal/model/chat"
	"github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
)

func setupRouter() (*chi.Mux, transcript.Store, *persona.MemoryStore) {
	transcripts := transcript.NewMemoryStore()
	store := persona.NewMemoryStore(persona.Seed())
	handler := New(transcripts, store)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, transcripts, store
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _, store := setupRouter()
	personas := store.List()
	payload, _ := json.Marshal(map[string]string{"personaId": personas[0].ID})

	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session chatmodel.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected a session id")
	}
	if session.PersonaID != personas[0].ID {
		t.Fatalf("unexpected persona binding: %s", session.PersonaID)
	}
}

func TestCreateSessionUnknownPersona(t *testing.T) {
	r, _, _ := setupRouter()
	payload, _ := json.Marshal(map[string]string{"personaId": "ghost"})

	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestInitRefusesInactivePersona(t *testing.T) {
	r, _, store := setupRouter()
	store.Put(persona.Persona{ID: "dormant", Username: "dormant", PublicName: "Dormant", IsActive: false})

	req := httptest.NewRequest(http.MethodGet, "/chat/init/dormant", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestInitCreatesSession(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/chat/init/ada-mentor", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestMessagesUnknownSession(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/missing", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMessagesReturnsTranscript(t *testing.T) {
	r, transcripts, _ := setupRouter()

	ctx := context.Background()
	session, err := transcripts.CreateSession(ctx, "ada-mentor")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := transcripts.SaveMessage(ctx, chatmodel.Message{
		SessionID: session.ID, Role: chatmodel.RoleUser, Content: "Hello",
	}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/"+session.ID, nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var messages []chatmodel.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "Hello" {
		t.Fatalf("unexpected transcript: %+v", messages)
	}
}
