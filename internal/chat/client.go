// Package chat talks to an OpenAI-compatible chat completion endpoint.
package chat

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"docchat/internal/config"
	"docchat/internal/session"
)

// Temperature used for all completions.
const Temperature = 0.7

// Client calls a chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a chat client for the configured endpoint and model
// key. The API key is read from the environment variable named in the
// config.
func NewClient(cfg config.ChatConfig, modelKey string) (*Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.APIKeyEnv)
	}

	if modelKey == "" {
		modelKey = cfg.DefaultModel
	}
	model, ok := cfg.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("unsupported model %q", modelKey)
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(apiKey),
	)

	return &Client{client: client, model: model.Name}, nil
}

// Model returns the API model name in use.
func (c *Client) Model() string {
	return c.model
}

func toParams(msgs []session.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case session.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case session.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

// Complete runs a chat completion and returns the full response text.
func (c *Client) Complete(ctx context.Context, msgs []session.Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toParams(msgs),
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a chat completion and invokes onDelta for each content
// fragment as it arrives. It returns the accumulated response text.
func (c *Client) Stream(ctx context.Context, msgs []session.Message, onDelta func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toParams(msgs),
		Temperature: openai.Float(Temperature),
	})

	var full string
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full += delta
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return full, fmt.Errorf("chat stream: %w", err)
	}
	return full, nil
}
