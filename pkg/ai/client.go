package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/sirupsen/logrus"
)

// Config controls which model provider is used and how it is reached.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	HTTPClient *http.Client
}

const (
	ProviderXAI    = "xai"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultProvider   = ProviderXAI
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
	defaultRetryWait  = time.Second
)

var providerDefaults = map[string]struct{ model, endpoint string }{
	ProviderXAI:    {"grok-4", "https://api.x.ai/v1/chat/completions"},
	ProviderOpenAI: {"gpt-4.1-mini", "https://api.openai.com/v1/chat/completions"},
	ProviderGemini: {"gemini-2.5-flash", ""},
}

// message is one chat message in provider-neutral form.
type message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// completer sends a conversation to a model and returns its text reply.
type completer interface {
	complete(ctx context.Context, msgs []message, jsonMode bool) (string, error)
}

func newCompleter(ctx context.Context, cfg Config) (completer, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	defaults, ok := providerDefaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s requires an API key (set ai.api_key in config or the provider's environment variable)", cfg.Provider)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaults.model
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaults.endpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Provider {
	case ProviderGemini:
		return newGeminiClient(ctx, cfg)
	default:
		return newChatClient(cfg), nil
	}
}

// chatClient speaks the OpenAI chat-completions protocol, which xAI also
// implements.
type chatClient struct {
	apiKey   string
	model    string
	endpoint string
	timeout  time.Duration
	client   *retryablehttp.Client
}

func newChatClient(cfg Config) *chatClient {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}

	rc := retryablehttp.NewClient()
	rc.Logger = retryLogger{}
	rc.RetryMax = retries
	rc.RetryWaitMin = wait
	rc.RetryWaitMax = 4 * wait
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	}

	return &chatClient{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		client:   rc,
	}
}

func (c *chatClient) complete(ctx context.Context, msgs []message, jsonMode bool) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
	}
	if jsonMode {
		reqBody.Temperature = 0.9
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	utils.Log.Debugf("[ai] POST %s model=%s messages=%d", c.endpoint, c.model, len(msgs))
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErrResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErrResp)
		if apiErrResp.Error.Message != "" {
			return "", &conversation.BackendUnavailableError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErrResp.Error.Message)}
		}
		return "", &conversation.BackendUnavailableError{Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", c.classify(ctx, fmt.Errorf("decoding response: %w", err))
	}
	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return "", &conversation.BackendUnavailableError{Err: errors.New("empty response")}
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

// classify maps a failed call onto the backend error taxonomy.
func (c *chatClient) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &conversation.BackendTimeoutError{After: c.timeout}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return &conversation.BackendUnavailableError{Err: err}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// retryLogger routes retryablehttp's leveled logs into logrus at debug level.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { utils.Log.WithFields(fields(kv)).Debug(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  { utils.Log.WithFields(fields(kv)).Debug(msg) }
func (retryLogger) Debug(msg string, kv ...interface{}) { utils.Log.WithFields(fields(kv)).Debug(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { utils.Log.WithFields(fields(kv)).Debug(msg) }

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
