// Package llm wraps the upstream chat-completion provider behind a single
// capability interface: one synchronous completion and one streaming
// completion. Everything else in the service depends on this interface, so
// tests can substitute a fake provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cognivia/ideaflow/internal/config"
)

var (
	// ErrUnavailable means the upstream call could not be established (or
	// failed before the first token was observed).
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrInterrupted means the stream broke after at least one token. The
	// accumulated partial text is still returned alongside it.
	ErrInterrupted = errors.New("upstream stream interrupted")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Client is the upstream LLM capability surface.
//
// Stream invokes onToken for every content fragment as it arrives and
// returns the full accumulated reply. If onToken returns an error, streaming
// stops and the accumulated text so far is returned with that error wrapped.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onToken func(token string) error) (string, error)
}

type OpenAIClient struct {
	client  openai.Client
	timeout time.Duration
}

func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.Provider.APIKey)}
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Provider.BaseURL))
	}
	timeout := time.Duration(cfg.Provider.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultRequestTimeout) * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		timeout: timeout,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, toParams(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Stream deliberately takes no timeout: a slow upstream holds only this
// request, and cancellation arrives through ctx when the caller goes away.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onToken func(string) error) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, toParams(req))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		if onToken != nil {
			if err := onToken(token); err != nil {
				return full.String(), fmt.Errorf("relay token: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		if full.Len() == 0 {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return full.String(), fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	return full.String(), nil
}

func toParams(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
}
