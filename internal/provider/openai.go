package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aqlhr/askaql/internal/log"
)

// Generation parameters, shared by both vendors.
const (
	maxCompletionTokens = 1000
	temperature         = 0.7
)

// DefaultEmbedModel is used when no embedder model is configured.
const DefaultEmbedModel = "text-embedding-3-small"

// ErrNoAPIKey indicates a provider was configured without a key. It is
// an ordinary attempt failure so the chain moves to the next provider.
var ErrNoAPIKey = errors.New("provider API key not configured")

// Config identifies one OpenAI-compatible vendor endpoint.
type Config struct {
	Name       string // chain label, e.g. "genspark", "openai"
	BaseURL    string // empty = api.openai.com
	APIKey     string
	Model      string
	EmbedModel string // only used by the embedding client
}

// Client is an OpenAI-compatible chat/embeddings client.
type Client struct {
	name       string
	api        *openai.Client
	model      string
	embedModel string
	hasKey     bool
	logger     log.Logger
}

// NewClient creates a client for one vendor endpoint. A missing API key
// is not a constructor error; calls fail with ErrNoAPIKey so the chain
// can fall through.
func NewClient(cfg Config, logger log.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}

	return &Client{
		name:       cfg.Name,
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		embedModel: embedModel,
		hasKey:     cfg.APIKey != "",
		logger:     logger,
	}
}

// Name returns the chain label for this vendor.
func (c *Client) Name() string { return c.name }

func (c *Client) chatRequest(system, user string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxCompletionTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

// Complete runs a synchronous chat completion.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.hasKey {
		return "", ErrNoAPIKey
	}

	resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(system, user, false))
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion, delivering each delta to fn.
// Errors from fn abort the stream and are returned unchanged so the
// caller can tell a broken client apart from a broken provider.
func (c *Client) Stream(ctx context.Context, system, user string, fn func(delta string) error) error {
	if !c.hasKey {
		return ErrNoAPIKey
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, c.chatRequest(system, user, true))
	if err != nil {
		return fmt.Errorf("%s open stream: %w", c.name, err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s stream recv: %w", c.name, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

// Embed generates the embedding vector for text using the configured
// embedder model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.hasKey {
		return nil, ErrNoAPIKey
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", c.name, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s returned empty embedding", c.name)
	}
	return resp.Data[0].Embedding, nil
}
