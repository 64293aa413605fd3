// Package responder generates answers through an OpenAI-compatible chat completions API.
package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 512
)

// Config configures the chat completions client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Responder implements domain.Responder.
type Responder struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
}

// New creates a Responder. The API key is read from the environment variable named by APIKeyEnv.
func New(cfg Config) (*Responder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Responder{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		limiter:     limiter,
	}, nil
}

// Respond sends prompt as a single user message and returns the first choice.
func (r *Responder) Respond(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &domain.CollaboratorError{Kind: domain.KindResponder, Reason: domain.ReasonUnavailable, Op: "respond", Err: err}
	}
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(r.model),
		MaxTokens:   openai.Int(int64(r.maxTokens)),
		Temperature: openai.Float(r.temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &domain.CollaboratorError{
			Kind:   domain.KindResponder,
			Reason: domain.ReasonEmpty,
			Op:     "respond",
			Err:    errors.New("no completion returned"),
		}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	reason := domain.ReasonUnavailable
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		reason = domain.ReasonForStatus(apiErr.StatusCode)
	}
	return &domain.CollaboratorError{Kind: domain.KindResponder, Reason: reason, Op: "respond", Err: err}
}
