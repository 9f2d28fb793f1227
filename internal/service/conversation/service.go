// Package conversation drives one turn of a persona conversation:
// persist the user's input, stream the agent's reply fragment by
// fragment, and persist the full reply once the stream completes.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/mkwei/parlor/backend/internal/checkpoint"
	"github.com/mkwei/parlor/backend/internal/metrics"
	"github.com/mkwei/parlor/backend/internal/model/chat"
	"github.com/mkwei/parlor/backend/internal/service/ai"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
)

// ErrSessionBusy is returned when a session already has a stream in
// flight. A session is a single-user conversation; concurrent turns on
// one session are a caller error, not something to queue.
var ErrSessionBusy = errors.New("session already has a request in flight")

// Service is the conversation orchestrator.
type Service struct {
	transcripts transcript.Store
	agents      *ai.Agents
	metrics     *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService wires the orchestrator over its dependencies.
func NewService(transcripts transcript.Store, agents *ai.Agents, m *metrics.Metrics) *Service {
	return &Service{
		transcripts: transcripts,
		agents:      agents,
		metrics:     m,
		inFlight:    make(map[string]struct{}),
	}
}

// Converse runs one turn for a session. It persists the user message
// before generation starts, then returns a stream of reply fragments
// in generation order. On natural completion exactly one assistant
// message is persisted and the exchange is checkpointed; if the stream
// fails or the caller stops reading, nothing further is persisted.
//
// The caller must Close the returned stream. The session-to-persona
// mapping is trusted; resolving it is the transport layer's job.
func (s *Service) Converse(ctx context.Context, personaID, sessionID, input string) (*schema.StreamReader[string], error) {
	if !s.acquire(sessionID) {
		if s.metrics != nil {
			s.metrics.SessionBusy.Inc()
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}

	stream, err := s.startTurn(ctx, personaID, sessionID, input)
	if err != nil {
		s.release(sessionID)
		return nil, err
	}
	return stream, nil
}

func (s *Service) startTurn(ctx context.Context, personaID, sessionID, input string) (*schema.StreamReader[string], error) {
	// The user's input must be durable before generation; a crash
	// mid-stream never loses it.
	userMsg := chat.Message{SessionID: sessionID, Role: chat.RoleUser, Content: input}
	if err := s.transcripts.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	agent, err := s.agents.Get(ctx, personaID)
	if err != nil {
		return nil, err
	}

	threadKey := checkpoint.ThreadKey(sessionID)
	upstream, err := agent.Stream(ctx, threadKey, input)
	if err != nil {
		if s.metrics != nil {
			s.metrics.GenerationFailures.Inc()
		}
		return nil, err
	}

	out, writer := schema.Pipe[string](8)
	go s.pump(ctx, agent, upstream, writer, sessionID, threadKey, input)
	return out, nil
}

// pump forwards fragments from the model stream to the caller while
// accumulating the full reply, then runs the completion writes.
func (s *Service) pump(ctx context.Context, agent *ai.Agent, upstream *schema.StreamReader[*schema.Message], writer *schema.StreamWriter[string], sessionID, threadKey, input string) {
	defer upstream.Close()
	defer writer.Close()
	defer s.release(sessionID)

	started := time.Now()
	var full strings.Builder

	for {
		chunk, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.GenerationFailures.Inc()
			}
			log.Printf("[conversation] generation failed for session=%s: %v", sessionID, err)
			writer.Send("", fmt.Errorf("generation failed: %w", err))
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		if closed := writer.Send(chunk.Content, nil); closed {
			// Caller went away. Partial output is dropped, not persisted.
			log.Printf("[conversation] caller closed stream for session=%s after %d bytes", sessionID, full.Len())
			return
		}
	}

	s.complete(ctx, agent, sessionID, threadKey, input, full.String())
	if s.metrics != nil {
		s.metrics.StreamDuration.Observe(time.Since(started).Seconds())
	}
}

// complete persists the assistant reply and checkpoints the exchange.
// The checkpoint append is skipped when the transcript write fails so
// the two stores never diverge. A client disconnect racing the end of
// the stream must not abort these writes, so the request context's
// cancellation is shed here.
func (s *Service) complete(ctx context.Context, agent *ai.Agent, sessionID, threadKey, input, reply string) {
	ctx = context.WithoutCancel(ctx)
	assistantMsg := chat.Message{SessionID: sessionID, Role: chat.RoleAssistant, Content: reply}
	if err := s.transcripts.SaveMessage(ctx, assistantMsg); err != nil {
		if s.metrics != nil {
			s.metrics.TranscriptGaps.Inc()
		}
		log.Printf("[conversation] failed to persist assistant message for session=%s: %v", sessionID, err)
		return
	}

	if err := agent.Checkpoint(ctx, threadKey, input, reply); err != nil {
		log.Printf("[conversation] failed to checkpoint thread=%s: %v", threadKey, err)
		return
	}

	log.Printf("[conversation] completed turn for session=%s persona=%s length=%d", sessionID, agent.PersonaID(), len(reply))
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}
