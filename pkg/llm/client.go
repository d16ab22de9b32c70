package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient wraps the go-openai SDK for chat completion and embedding
// calls against any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	endpoint       string
	logger         *zap.Logger
}

// ClientConfig holds the provider connection settings.
type ClientConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	EmbeddingModel string
}

// NewOpenAIClient creates a provider client for the given endpoint.
// Endpoint and embedding model are required; the API key may be empty for
// local OpenAI-compatible servers.
func NewOpenAIClient(cfg ClientConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	openaiCfg.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(openaiCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		endpoint:       cfg.Endpoint,
		logger:         logger.Named("llm"),
	}, nil
}

// GenerateResponse sends a chat completion request and returns the raw
// assistant message content.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(temperature),
	})
	if err != nil {
		c.logger.Warn("Chat completion failed",
			zap.String("model", c.model),
			zap.Error(err))
		return "", ClassifyError(err, "chat completion")
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeServer, Message: "chat completion returned no choices"}
	}

	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding generates an embedding vector for the input text.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "embedding input is empty"}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{input},
	})
	if err != nil {
		c.logger.Warn("Embedding request failed",
			zap.String("model", c.embeddingModel),
			zap.Error(err))
		return nil, ClassifyError(err, "embedding")
	}

	if len(resp.Data) == 0 {
		return nil, &Error{Type: ErrorTypeServer, Message: "embedding response contained no data"}
	}

	return resp.Data[0].Embedding, nil
}

// Ping lists the provider's models as a lightweight reachability check.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return ClassifyError(err, "list models")
	}
	return nil
}

// GetModel returns the configured generative model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *OpenAIClient) GetEndpoint() string {
	return c.endpoint
}
