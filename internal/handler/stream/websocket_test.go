package stream_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	streamhandler "github.com/mkwei/parlor/backend/internal/handler/stream"
)

func TestWebSocketStreamsTurn(t *testing.T) {
	r, transcripts := setup(t, "Hi", " there", "!")

	session, err := transcripts.CreateSession(context.Background(), "ada-mentor")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat/ws/" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"inputMessage": "Hello"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var reply string
	for {
		var event streamhandler.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read err: %v", err)
		}

		switch event.Event {
		case "start":
		case "delta":
			reply += event.Content
		case "end":
			if reply != "Hi there!" {
				t.Fatalf("unexpected reply %q", reply)
			}
			return
		case "error":
			t.Fatalf("unexpected error frame: %s", event.Error)
		default:
			t.Fatalf("unexpected frame: %+v", event)
		}
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	r, _ := setup(t, "hi")

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown session")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
