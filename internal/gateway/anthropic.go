package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"

	anthropicHint = "Check that ANTHROPIC_API_KEY is valid and has access to the configured models."
	maxTokens     = 2048
)

// AnthropicConfig configures the Anthropic gateway.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	// Models are tried in order; a 404 moves on to the next one.
	Models     []string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Anthropic sends prompts through the Messages API.
type Anthropic struct {
	client  anthropic.Client
	models  []string
	timeout time.Duration
}

var _ Gateway = (*Anthropic)(nil)

// NewAnthropic fails when no API key is configured.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	models := dedupe(cfg.Models)
	if len(models) == 0 {
		models = []string{DefaultAnthropicModel}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Anthropic{client: anthropic.NewClient(opts...), models: models, timeout: timeout}, nil
}

// Send implements Gateway.
func (g *Anthropic) Send(ctx context.Context, prompt string) (string, error) {
	candidates := make([]Candidate, len(g.models))
	for i, m := range g.models {
		candidates[i] = Candidate{Model: m}
	}

	a := attempts{provider: "Anthropic", hint: anthropicHint, timeout: g.timeout}
	return a.run(ctx, candidates, func(ctx context.Context, c Candidate) (string, error) {
		resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.Model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				return "", &StatusError{Status: apiErr.StatusCode, Body: apiErr.Error()}
			}
			return "", err
		}
		text := extractText(resp)
		if text == "" {
			return "", errors.New("anthropic response has no text")
		}
		return text, nil
	})
}

func extractText(resp *anthropic.Message) string {
	var text string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		}
	}
	return text
}
