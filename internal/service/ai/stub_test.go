package ai_test

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mkwei/parlor/backend/internal/model/persona"
)

// stubChatModel implements model.ChatModel without any network use.
// It records every prompt it receives and replies with the configured
// fragments.
type stubChatModel struct {
	mu        sync.Mutex
	fragments []string
	inputs    [][]*schema.Message
}

func newStubChatModel(fragments ...string) *stubChatModel {
	return &stubChatModel{fragments: fragments}
}

func (m *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(input)
	return schema.AssistantMessage(strings.Join(m.fragments, ""), nil), nil
}

func (m *stubChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(input)
	chunks := make([]*schema.Message, 0, len(m.fragments))
	for _, fragment := range m.fragments {
		chunks = append(chunks, schema.AssistantMessage(fragment, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *stubChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func (m *stubChatModel) record(input []*schema.Message) {
	m.mu.Lock()
	copied := make([]*schema.Message, len(input))
	copy(copied, input)
	m.inputs = append(m.inputs, copied)
	m.mu.Unlock()
}

func (m *stubChatModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[len(m.inputs)-1]
}

// countingStore wraps a persona store and counts reads, so tests can
// assert that cache hits skip the store.
type countingStore struct {
	persona.Store
	mu    sync.Mutex
	reads int
}

func (s *countingStore) FindByID(id string) (persona.Persona, bool) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.Store.FindByID(id)
}

func (s *countingStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
