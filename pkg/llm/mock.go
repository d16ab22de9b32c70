package llm

import (
	"context"
)

// MockClient is a configurable test double for Client.
type MockClient struct {
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)
	CreateEmbeddingFunc  func(ctx context.Context, input string) ([]float32, error)
	PingFunc             func(ctx context.Context) error
	Model                string
	Endpoint             string

	// GenerateCalls and EmbeddingCalls record the inputs of each invocation.
	GenerateCalls  []string
	EmbeddingCalls []string
}

func (m *MockClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.GenerateCalls = append(m.GenerateCalls, prompt)
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.EmbeddingCalls = append(m.EmbeddingCalls, input)
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return make([]float32, 768), nil
}

func (m *MockClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockClient) GetModel() string {
	return m.Model
}

func (m *MockClient) GetEndpoint() string {
	return m.Endpoint
}
