package mock

import (
	"context"
	"sync"
)

// MockTextGenerator is a test double for ai.TextGenerator.
// It allows custom behavior injection via a function field.
type MockTextGenerator struct {
	// GenerateTextFunc is called by GenerateText if set.
	// If nil, the user message is echoed back unchanged.
	GenerateTextFunc func(ctx context.Context, instruction, message string) (string, error)

	mu        sync.Mutex
	callCount int
	messages  []string
}

// NewMockTextGenerator creates a mock text generator with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockTextGenerator() *MockTextGenerator {
	return &MockTextGenerator{}
}

// GenerateText returns the injected behavior's output, or echoes the message.
func (m *MockTextGenerator) GenerateText(ctx context.Context, instruction, message string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.messages = append(m.messages, message)
	m.mu.Unlock()

	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, instruction, message)
	}

	return message, nil
}

// CallCount returns the number of times GenerateText was called.
func (m *MockTextGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Messages returns every user message passed to the generator, in call order.
func (m *MockTextGenerator) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}

// Reset clears the call count and recorded messages.
func (m *MockTextGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.messages = nil
	m.GenerateTextFunc = nil
}
