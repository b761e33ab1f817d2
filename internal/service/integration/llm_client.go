package integration

import (
	"context"
	"errors"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

// LLMClient is an OpenAI-compatible chat completion client.
type LLMClient interface {
	Grade(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

type llmClient struct {
	http    jsonClient
	url     string
	apiKey  string
	options LLMOptions
	logger  zerolog.Logger
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	TopP        float64              `json:"top_p"`
	Stream      bool                 `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewLLMClient(url, apiKey string, options LLMOptions, timeout time.Duration, retryCount int, retryDelay time.Duration, logger zerolog.Logger) LLMClient {
	return &llmClient{
		http:    newJSONClient("llm", timeout, retryCount, retryDelay, logger),
		url:     url,
		apiKey:  apiKey,
		options: options,
		logger:  logger,
	}
}

func (c *llmClient) Grade(ctx context.Context, messages []models.ChatMessage) (string, error) {
	payload := chatRequest{
		Model:       c.options.Model,
		Messages:    messages,
		Temperature: c.options.Temperature,
		MaxTokens:   c.options.MaxTokens,
		TopP:        c.options.TopP,
	}

	var resp chatResponse
	if err := c.http.postJSON(ctx, c.url, map[string]string{"Authorization": "Bearer " + c.apiKey}, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}

	c.logger.Info().
		Str("model", c.options.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion received")

	return resp.Choices[0].Message.Content, nil
}
