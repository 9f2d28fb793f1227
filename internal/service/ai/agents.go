package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mkwei/parlor/backend/internal/cache"
	"github.com/mkwei/parlor/backend/internal/checkpoint"
	"github.com/mkwei/parlor/backend/internal/metrics"
	"github.com/mkwei/parlor/backend/internal/model/persona"
)

// Agent composes a model binding with a persona's system instructions
// and the checkpoint store. The system prompt is a construction-time
// snapshot; it does not follow later persona edits.
type Agent struct {
	personaID    string
	systemPrompt string
	chain        compose.Runnable[map[string]any, *schema.Message]
	checkpoints  checkpoint.Store
	historyLimit int
}

// Agents memoizes agent bindings per persona, sharing the bounded
// cache abstraction with the model cache.
type Agents struct {
	personas     persona.Store
	models       *Models
	checkpoints  checkpoint.Store
	cache        *cache.Cache[string, *Agent]
	historyLimit int
	metrics      *metrics.Metrics
}

// NewAgents wires the agent binding cache on top of the model cache.
func NewAgents(personas persona.Store, models *Models, checkpoints checkpoint.Store, c *cache.Cache[string, *Agent], historyLimit int, m *metrics.Metrics) *Agents {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Agents{
		personas:     personas,
		models:       models,
		checkpoints:  checkpoints,
		cache:        c,
		historyLimit: historyLimit,
		metrics:      m,
	}
}

// Get returns the cached agent binding for the persona, constructing
// it on a miss. Construction fails with ErrPersonaNotFound when the
// persona is absent.
func (s *Agents) Get(ctx context.Context, personaID string) (*Agent, error) {
	return s.cache.GetOrBuild(ctx, personaID, func(ctx context.Context) (*Agent, error) {
		return s.build(ctx, personaID)
	})
}

func (s *Agents) build(ctx context.Context, personaID string) (*Agent, error) {
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	binding, err := s.models.Get(ctx, personaID)
	if err != nil {
		return nil, err
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(binding.ChatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain for persona %s: %w", personaID, err)
	}

	log.Printf("[ai] agent cache miss: built binding for persona=%s", personaID)
	if s.metrics != nil {
		s.metrics.AgentBuilds.Inc()
	}

	return &Agent{
		personaID:    personaID,
		systemPrompt: systemPromptFor(p),
		chain:        runnable,
		checkpoints:  s.checkpoints,
		historyLimit: s.historyLimit,
	}, nil
}

// PersonaID returns the persona this agent is bound to.
func (a *Agent) PersonaID() string {
	return a.personaID
}

// SystemPrompt returns the instruction snapshot taken at construction.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Stream resumes the thread's checkpointed turns and streams the
// model's reply to the new input as message chunks.
func (a *Agent) Stream(ctx context.Context, threadKey, input string) (*schema.StreamReader[*schema.Message], error) {
	history, err := a.checkpoints.Resume(ctx, threadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resume thread %s: %w", threadKey, err)
	}

	stream, err := a.chain.Stream(ctx, a.chainInput(history, input))
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain: %w", err)
	}
	return stream, nil
}

// Generate is the non-streaming counterpart of Stream.
func (a *Agent) Generate(ctx context.Context, threadKey, input string) (*schema.Message, error) {
	history, err := a.checkpoints.Resume(ctx, threadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resume thread %s: %w", threadKey, err)
	}

	response, err := a.chain.Invoke(ctx, a.chainInput(history, input))
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}
	return response, nil
}

// Checkpoint records a completed user/assistant exchange on the thread.
func (a *Agent) Checkpoint(ctx context.Context, threadKey, input, reply string) error {
	return a.checkpoints.Append(ctx, threadKey,
		schema.UserMessage(input),
		schema.AssistantMessage(reply, nil),
	)
}

func (a *Agent) chainInput(history []*schema.Message, query string) map[string]any {
	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}
	return map[string]any{
		"system":  a.systemPrompt,
		"history": history,
		"query":   query,
	}
}

// systemPromptFor prefers the persona's stored prompt and falls back
// to one assembled from its profile fields.
func systemPromptFor(p persona.Persona) string {
	if p.Prompt != "" {
		return p.Prompt
	}

	base := fmt.Sprintf("You are %s.", p.PublicName)
	if p.Tagline != "" {
		base += " " + p.Tagline + "."
	}
	if p.Bio != "" {
		base += " " + p.Bio
	}
	return base + " Stay in character and keep replies conversational."
}
