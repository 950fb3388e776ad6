package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadscope/leadscope/pkg/conversation"
	"google.golang.org/genai"
)

type geminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &geminiClient{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

func (g *geminiClient) complete(ctx context.Context, msgs []message, jsonMode bool) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var (
		system   string
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &conversation.BackendTimeoutError{After: g.timeout}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", &conversation.BackendUnavailableError{Err: fmt.Errorf("gemini generate content: %w", err)}
	}

	text := res.Text()
	if text == "" {
		return "", &conversation.BackendUnavailableError{Err: errors.New("gemini returned empty text")}
	}
	return text, nil
}
