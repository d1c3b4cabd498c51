package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/TheLazyLemur/graphpilot/internal/auth"
	"github.com/TheLazyLemur/graphpilot/internal/config"
	"github.com/TheLazyLemur/graphpilot/internal/dispatch"
	"github.com/TheLazyLemur/graphpilot/internal/feed"
	"github.com/TheLazyLemur/graphpilot/internal/gateway"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
	"github.com/TheLazyLemur/graphpilot/internal/planner"
	"github.com/TheLazyLemur/graphpilot/internal/server"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	graphTimeout    = 30 * time.Second
)

// setupLogging installs the default logger. With a hub, warnings and errors
// are mirrored to the admin feed.
func setupLogging(level slog.Level, hub *feed.Hub) {
	var h slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if hub != nil {
		h = feed.NewBroadcastHandler(hub, h, slog.LevelWarn)
	}
	slog.SetDefault(slog.New(h))
}

// newGateway picks the model provider. Missing credentials yield a gateway
// that fails every call so the rest of the API still serves.
func newGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.ModelProvider {
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			slog.Warn("ANTHROPIC_API_KEY not set, AI endpoints disabled")
			return gateway.Unconfigured{Reason: "ANTHROPIC_API_KEY is not set"}, nil
		}
		var models []string
		if cfg.Anthropic.Model != "" {
			models = []string{cfg.Anthropic.Model}
		}
		return gateway.NewAnthropic(gateway.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			BaseURL: cfg.Anthropic.BaseURL,
			Models:  models,
		})
	default:
		if cfg.Gemini.APIKey == "" {
			slog.Warn("GEMINI_API_KEY not set, AI endpoints disabled")
			return gateway.Unconfigured{Reason: "GEMINI_API_KEY is not set"}, nil
		}
		return gateway.NewGemini(ctx, gateway.GeminiConfig{
			APIKey:   cfg.Gemini.APIKey,
			Model:    cfg.Gemini.Model,
			Versions: cfg.Gemini.Versions,
			BaseURL:  cfg.Gemini.BaseURL,
			Discover: cfg.Gemini.Discover,
		})
	}
}

func newPlanner(ctx context.Context, cfg *config.Config) (*planner.Planner, error) {
	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating model gateway")
	}
	mode, err := planner.ParseMode(cfg.PlannerMode)
	if err != nil {
		return nil, err
	}
	return planner.New(gw, mode), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	hub := feed.NewHub()
	setupLogging(cfg.LogLevel, hub)

	st, applied, err := openStore(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()
	if len(applied) > 0 {
		slog.Info("migrations applied", "versions", applied)
	}

	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "creating model gateway")
	}
	mode, err := planner.ParseMode(cfg.PlannerMode)
	if err != nil {
		return err
	}

	g := graph.New(cfg.GraphBaseURL, &http.Client{Timeout: graphTimeout})

	var oa *auth.OAuth
	if cfg.Microsoft.Configured() {
		if oa, err = auth.NewOAuth(cfg.Microsoft, nil); err != nil {
			return err
		}
	} else {
		slog.Warn("MS_CLIENT_ID / MS_CLIENT_SECRET not set, Microsoft sign-in disabled")
	}

	srv := server.New(server.Deps{
		Store:       st,
		Graph:       g,
		Gateway:     gw,
		Planner:     planner.New(gw, mode),
		Dispatcher:  dispatch.New(g),
		OAuth:       oa,
		Issuer:      auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Sessions:    auth.NewSessions(cfg.JWTTTL, strings.HasPrefix(cfg.Microsoft.RedirectURI, "https://")),
		Feed:        hub,
		CORSOrigins: cfg.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	group.Go(func() error {
		slog.Info("listening", "addr", cfg.HTTPAddr, "provider", cfg.ModelProvider, "planner", mode)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Wrap(httpSrv.Shutdown(shutdownCtx), "http shutdown")
	})
	return group.Wait()
}
