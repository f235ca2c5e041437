package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible chat backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // empty uses the public endpoint
}

// #region openai-oracle

// OpenAIOracle sends each query as a system + user chat completion.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAIOracle builds a chat-completion backed oracle.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	log.Printf("[ORACLE] openai backend: model=%s", cfg.Model)
	return &OpenAIOracle{client: openai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Ask implements Oracle.
func (o *OpenAIOracle) Ask(ctx context.Context, q Query) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: q.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: q.Input},
		},
		Temperature: q.Temperature,
	}
	if q.MaxTokens > 0 {
		req.MaxTokens = q.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// #endregion
