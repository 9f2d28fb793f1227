// Package ai builds and caches the model and agent bindings that turn
// a persona record into a callable conversation engine.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"

	"github.com/mkwei/parlor/backend/internal/cache"
	"github.com/mkwei/parlor/backend/internal/metrics"
	"github.com/mkwei/parlor/backend/internal/model/persona"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrInvalidConfig   = errors.New("invalid persona configuration")
)

// Defaults are applied when a persona leaves a model knob unset.
type Defaults struct {
	ModelID     string
	Temperature float64
}

// ModelFactory constructs the underlying chat model client. Production
// wires this to config.AIConfig.NewChatModel; tests substitute a stub.
type ModelFactory func(ctx context.Context, p persona.Persona, modelID string, temperature float64) (model.ChatModel, error)

// Binding is a cached, ready-to-use handle to a configured model
// client. It snapshots the configuration it was built from, so edits
// to the persona become visible only after the cache entry expires.
type Binding struct {
	PersonaID   string
	ModelID     string
	Temperature float64
	ChatModel   model.ChatModel
}

// Models memoizes model bindings per persona with a bounded lifetime.
type Models struct {
	personas persona.Store
	factory  ModelFactory
	defaults Defaults
	cache    *cache.Cache[string, *Binding]
	metrics  *metrics.Metrics
}

// NewModels wires the model binding cache. The cache is owned by the
// caller so tests can construct isolated instances.
func NewModels(personas persona.Store, factory ModelFactory, defaults Defaults, c *cache.Cache[string, *Binding], m *metrics.Metrics) *Models {
	return &Models{
		personas: personas,
		factory:  factory,
		defaults: defaults,
		cache:    c,
		metrics:  m,
	}
}

// Get returns the cached model binding for the persona, constructing
// it on a miss. A hit never re-reads the persona store; persona edits
// surface only after the entry's TTL.
func (s *Models) Get(ctx context.Context, personaID string) (*Binding, error) {
	return s.cache.GetOrBuild(ctx, personaID, func(ctx context.Context) (*Binding, error) {
		return s.build(ctx, personaID)
	})
}

func (s *Models) build(ctx context.Context, personaID string) (*Binding, error) {
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	modelID := p.LLMModel
	if modelID == "" {
		modelID = s.defaults.ModelID
	}

	temperature := s.defaults.Temperature
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("%w: temperature %.2f out of range [0, 2]", ErrInvalidConfig, temperature)
	}

	log.Printf("[ai] model cache miss: building binding for persona=%s model=%s", personaID, modelID)
	if s.metrics != nil {
		s.metrics.ModelBuilds.Inc()
	}

	chatModel, err := s.factory(ctx, p, modelID, temperature)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for persona %s: %w", personaID, err)
	}

	return &Binding{
		PersonaID:   personaID,
		ModelID:     modelID,
		Temperature: temperature,
		ChatModel:   chatModel,
	}, nil
}
