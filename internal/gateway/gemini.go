package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash-latest"

	geminiHint = "Check that the Generative Language API is enabled in your GCP project, that billing is active and that the key belongs to that project and is not restricted."
)

// DefaultGeminiVersions are tried in order.
var DefaultGeminiVersions = []string{"v1beta2", "v1beta"}

// GeminiConfig configures the Gemini gateway.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Versions []string
	// BaseURL overrides the Generative Language endpoint, mostly for tests.
	BaseURL    string
	Discover   bool
	HTTPClient *http.Client

	GenerateTimeout time.Duration
	DiscoverTimeout time.Duration
}

// Gemini talks to the Generative Language API, one SDK client per API version.
type Gemini struct {
	cfg     GeminiConfig
	clients map[string]*genai.Client
}

var _ Gateway = (*Gemini)(nil)

// NewGemini builds a gateway. It does not contact the network.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cfg.Versions = dedupe(cfg.Versions)
	if len(cfg.Versions) == 0 {
		cfg.Versions = DefaultGeminiVersions
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.DiscoverTimeout <= 0 {
		cfg.DiscoverTimeout = DefaultDiscoverTimeout
	}

	g := &Gemini{cfg: cfg, clients: make(map[string]*genai.Client, len(cfg.Versions))}
	for _, v := range cfg.Versions {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: cfg.HTTPClient,
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    cfg.BaseURL,
				APIVersion: v,
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "creating gemini client for %s", v)
		}
		g.clients[v] = client
	}
	return g, nil
}

// FallbackModels returns the primary model followed by derived fallbacks.
func FallbackModels(model string) []string {
	models := []string{model}
	if strings.HasSuffix(model, "-latest") {
		models = append(models, strings.TrimSuffix(model, "-latest"))
	}
	return models
}

// Candidates returns the (version, model) pairs in attempt order. With discovery enabled the
// best listed model for each version is tried first.
func (g *Gemini) Candidates(ctx context.Context) []Candidate {
	var out []Candidate
	for _, v := range g.cfg.Versions {
		models := FallbackModels(g.cfg.Model)
		if g.cfg.Discover {
			if picked := g.discover(ctx, v); picked != "" {
				models = dedupe(append([]string{picked}, models...))
			}
		}
		for _, m := range models {
			out = append(out, Candidate{Version: v, Model: m})
		}
	}
	return out
}

func (g *Gemini) discover(ctx context.Context, version string) string {
	dctx, cancel := context.WithTimeout(ctx, g.cfg.DiscoverTimeout)
	defer cancel()

	page, err := g.clients[version].Models.List(dctx, &genai.ListModelsConfig{})
	if err != nil {
		slog.Debug("model discovery failed", "version", version, "error", err)
		return ""
	}
	var names []string
	for _, m := range page.Items {
		if m == nil || !supportsGenerate(m.SupportedActions) {
			continue
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	picked := PickModel(g.cfg.Model, names)
	slog.Debug("model discovery", "version", version, "listed", len(names), "picked", picked)
	return picked
}

func supportsGenerate(actions []string) bool {
	if len(actions) == 0 {
		return true
	}
	for _, a := range actions {
		if a == "generateContent" {
			return true
		}
	}
	return false
}

// Send implements Gateway.
func (g *Gemini) Send(ctx context.Context, prompt string) (string, error) {
	a := attempts{provider: "Gemini", hint: geminiHint, timeout: g.cfg.GenerateTimeout}
	return a.run(ctx, g.Candidates(ctx), func(ctx context.Context, c Candidate) (string, error) {
		resp, err := g.clients[c.Version].Models.GenerateContent(ctx, c.Model,
			[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, nil)
		if err != nil {
			return "", geminiError(err)
		}
		return geminiText(resp)
	})
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Status: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Status: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini response has no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response has no text")
	}
	return b.String(), nil
}
