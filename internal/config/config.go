package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"

	defaultScopes = "openid profile offline_access User.Read Mail.Read Mail.Send Contacts.ReadWrite"
)

// Keys lists every variable Load understands. LoadFromEnv reads exactly these.
var Keys = []string{
	"HTTP_ADDR", "DATABASE_PATH", "SECRET_KEY", "JWT_SECRET", "JWT_TTL",
	"MS_TENANT_ID", "MS_CLIENT_ID", "MS_CLIENT_SECRET", "MS_REDIRECT_URI", "MS_SCOPES", "MS_AUTHORITY",
	"GRAPH_BASE_URL", "MODEL_PROVIDER",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_API_VERSIONS", "GEMINI_BASE_URL", "GEMINI_DISCOVER_MODELS",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	"PLANNER_MODE", "CORS_ORIGINS", "LOG_LEVEL",
}

// Config is the process configuration, read once at startup.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	SecretKey    string
	JWTSecret    string
	JWTTTL       time.Duration

	Microsoft    Microsoft
	GraphBaseURL string

	ModelProvider string
	Gemini        Gemini
	Anthropic     Anthropic

	PlannerMode string
	CORSOrigins []string
	LogLevel    slog.Level
}

// Microsoft is the Entra app registration used for OAuth.
type Microsoft struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// Authority overrides the login host, e.g. for sovereign clouds or tests.
	Authority string
}

// Configured reports whether the OAuth app registration is present.
func (m Microsoft) Configured() bool {
	return m.ClientID != "" && m.ClientSecret != ""
}

// Gemini configures the Gemini provider. Versions are tried in order.
type Gemini struct {
	APIKey   string
	Model    string
	Versions []string
	BaseURL  string
	Discover bool
}

// Anthropic configures the Anthropic provider.
type Anthropic struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Load reads config from env map. For production use LoadFromEnv.
func Load(env map[string]string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(env[key]); v != "" {
			return v
		}
		return def
	}

	secret := get("SECRET_KEY", "dev-secret-change-me")

	ttl, err := time.ParseDuration(get("JWT_TTL", "8h"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid JWT_TTL")
	}
	if ttl <= 0 {
		return nil, errors.Errorf("invalid JWT_TTL %q: must be positive", env["JWT_TTL"])
	}

	provider := strings.ToLower(get("MODEL_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderAnthropic {
		return nil, errors.Errorf("invalid MODEL_PROVIDER %q: want gemini or anthropic", provider)
	}

	discover, err := strconv.ParseBool(get("GEMINI_DISCOVER_MODELS", "true"))
	if err != nil {
		return nil, errors.Errorf("invalid GEMINI_DISCOVER_MODELS %q: must be a boolean", env["GEMINI_DISCOVER_MODELS"])
	}

	mode := strings.ToLower(get("PLANNER_MODE", "conversational"))
	if mode != "conversational" && mode != "strict" {
		return nil, errors.Errorf("invalid PLANNER_MODE %q: want conversational or strict", mode)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, errors.Errorf("invalid LOG_LEVEL %q", env["LOG_LEVEL"])
	}

	return &Config{
		HTTPAddr:     get("HTTP_ADDR", ":8080"),
		DatabasePath: get("DATABASE_PATH", "instance/app.db"),
		SecretKey:    secret,
		JWTSecret:    get("JWT_SECRET", secret),
		JWTTTL:       ttl,
		Microsoft: Microsoft{
			TenantID:     get("MS_TENANT_ID", "common"),
			ClientID:     get("MS_CLIENT_ID", ""),
			ClientSecret: get("MS_CLIENT_SECRET", ""),
			RedirectURI:  get("MS_REDIRECT_URI", "http://localhost:8080/auth/callback"),
			Scopes:       strings.Fields(get("MS_SCOPES", defaultScopes)),
			Authority:    strings.TrimRight(get("MS_AUTHORITY", ""), "/"),
		},
		GraphBaseURL:  strings.TrimRight(get("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"), "/"),
		ModelProvider: provider,
		Gemini: Gemini{
			APIKey:   get("GEMINI_API_KEY", ""),
			Model:    get("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			Versions: splitAndTrim(get("GEMINI_API_VERSIONS", "v1beta2,v1beta")),
			BaseURL:  get("GEMINI_BASE_URL", ""),
			Discover: discover,
		},
		Anthropic: Anthropic{
			APIKey:  get("ANTHROPIC_API_KEY", ""),
			Model:   get("ANTHROPIC_MODEL", ""),
			BaseURL: get("ANTHROPIC_BASE_URL", ""),
		},
		PlannerMode: mode,
		CORSOrigins: splitAndTrim(get("CORS_ORIGINS", "*")),
		LogLevel:    level,
	}, nil
}

// LoadFromEnv loads config from os environment variables, layered over the
// YAML file named by GRAPHPILOT_CONFIG when set.
func LoadFromEnv() (*Config, error) {
	env := map[string]string{}
	if path := os.Getenv("GRAPHPILOT_CONFIG"); path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		env = file
	}
	for _, key := range Keys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			env[key] = v
		}
	}
	return Load(env)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
