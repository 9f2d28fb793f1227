package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/mkwei/parlor/backend/internal/cache"
	"github.com/mkwei/parlor/backend/internal/checkpoint"
	streamhandler "github.com/mkwei/parlor/backend/internal/handler/stream"
	"github.com/mkwei/parlor/backend/internal/metrics"
	"github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/internal/service/ai"
	"github.com/mkwei/parlor/backend/internal/service/conversation"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
)

type fixedModel struct {
	fragments []string
}

func (m *fixedModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(m.fragments, ""), nil), nil
}

func (m *fixedModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	chunks := make([]*schema.Message, 0, len(m.fragments))
	for _, fragment := range m.fragments {
		chunks = append(chunks, schema.AssistantMessage(fragment, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *fixedModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func setup(t *testing.T, fragments ...string) (*chi.Mux, transcript.Store) {
	t.Helper()

	personas := persona.NewMemoryStore(persona.Seed())
	transcripts := transcript.NewMemoryStore()
	m := metrics.New()

	factory := func(context.Context, persona.Persona, string, float64) (einomodel.ChatModel, error) {
		return &fixedModel{fragments: fragments}, nil
	}
	models := ai.NewModels(personas, factory, ai.Defaults{ModelID: "test-model", Temperature: 0.7},
		cache.New[string, *ai.Binding](10, time.Hour), m)
	agents := ai.NewAgents(personas, models, checkpoint.NewMemoryStore(),
		cache.New[string, *ai.Agent](10, time.Hour), 10, m)
	conversations := conversation.NewService(transcripts, agents, m)

	r := chi.NewRouter()
	streamhandler.New(conversations, transcripts).RegisterRoutes(r)
	return r, transcripts
}

func parseEvents(t *testing.T, body string) []streamhandler.Event {
	t.Helper()

	var events []streamhandler.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event streamhandler.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("parse sse frame %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestStreamDeliversFragmentsInOrder(t *testing.T) {
	r, transcripts := setup(t, "Hi", " there", "!")

	session, err := transcripts.CreateSession(context.Background(), "ada-mentor")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"inputMessage": "Hello"})
	req := httptest.NewRequest(http.MethodPost, "/chat/stream/"+session.ID, bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	events := parseEvents(t, resp.Body.String())
	if len(events) != 5 {
		t.Fatalf("expected 5 frames, got %d: %+v", len(events), events)
	}
	if events[0].Event != "start" {
		t.Fatalf("expected start frame, got %+v", events[0])
	}

	var reply string
	for _, event := range events[1:4] {
		if event.Event != "delta" {
			t.Fatalf("expected delta frame, got %+v", event)
		}
		reply += event.Content
	}
	if reply != "Hi there!" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if last := events[len(events)-1]; last.Event != "end" || !last.Finished {
		t.Fatalf("expected finished end frame, got %+v", last)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	r, _ := setup(t, "hi")

	payload, _ := json.Marshal(map[string]string{"inputMessage": "Hello"})
	req := httptest.NewRequest(http.MethodPost, "/chat/stream/missing", bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestStreamRequiresInput(t *testing.T) {
	r, transcripts := setup(t, "hi")

	session, err := transcripts.CreateSession(context.Background(), "ada-mentor")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"inputMessage": ""})
	req := httptest.NewRequest(http.MethodPost, "/chat/stream/"+session.ID, bytes.NewReader(payload))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
