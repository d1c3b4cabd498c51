// Package gateway sends composed prompts to a generative model and returns its raw text.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/pkg/errors"
)

const (
	DefaultGenerateTimeout = 60 * time.Second
	DefaultDiscoverTimeout = 15 * time.Second

	maxDetail = 500
)

// Gateway turns a prompt into model text.
type Gateway interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Candidate is one (api version, model) pair to try. Version is empty for providers without versioned paths.
type Candidate struct {
	Version string
	Model   string
}

func (c Candidate) String() string {
	if c.Version == "" {
		return c.Model
	}
	return c.Version + ":" + c.Model
}

// StatusError is a non-2xx answer from the model provider.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

type attemptFunc func(ctx context.Context, c Candidate) (string, error)

type attempts struct {
	provider string
	hint     string
	timeout  time.Duration
}

// run tries candidates in order. A 404 moves on to the next candidate; any other
// status is fatal. Transport errors are recorded and the loop continues.
func (a attempts) run(ctx context.Context, candidates []Candidate, attempt attemptFunc) (string, error) {
	var (
		tried   []string
		lastErr error
	)
	for _, c := range candidates {
		tried = append(tried, c.String())

		actx, cancel := context.WithTimeout(ctx, a.timeout)
		text, err := attempt(actx, c)
		cancel()
		if err == nil {
			return text, nil
		}

		var se *StatusError
		if errors.As(err, &se) && se.Status != http.StatusNotFound {
			return "", &apperr.Error{
				Kind:     apperr.KindModelUnavailable,
				Message:  fmt.Sprintf("%s %d", a.provider, se.Status),
				Upstream: se.Status,
				Detail:   apperr.Truncate(se.Body, maxDetail),
				Cause:    err,
			}
		}

		slog.Warn("model candidate failed", "provider", a.provider, "candidate", c.String(), "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return "", &apperr.Error{
		Kind: apperr.KindModelUnavailable,
		Message: fmt.Sprintf("could not reach %s (attempts: %s). %s Last error: %v",
			a.provider, strings.Join(tried, ", "), a.hint, lastErr),
		Cause: lastErr,
	}
}

// Unconfigured fails every call. It stands in when no provider credentials are set.
type Unconfigured struct {
	Reason string
}

// Send always fails with model_unavailable and u.Reason.
func (u Unconfigured) Send(context.Context, string) (string, error) {
	return "", apperr.New(apperr.KindModelUnavailable, u.Reason)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
