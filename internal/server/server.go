// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/auth"
	"github.com/TheLazyLemur/graphpilot/internal/dispatch"
	"github.com/TheLazyLemur/graphpilot/internal/feed"
	"github.com/TheLazyLemur/graphpilot/internal/gateway"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
	"github.com/TheLazyLemur/graphpilot/internal/planner"
	"github.com/TheLazyLemur/graphpilot/internal/store"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

const notAuthenticatedMessage = "Provide Authorization: Bearer <MS_ACCESS_TOKEN> or log in at /auth/login."

// Deps are the collaborators the handlers call. OAuth and Feed may be nil.
type Deps struct {
	Store       *store.Store
	Graph       *graph.Client
	Gateway     gateway.Gateway
	Planner     *planner.Planner
	Dispatcher  *dispatch.Dispatcher
	OAuth       *auth.OAuth
	Issuer      *auth.Issuer
	Sessions    *auth.Sessions
	Feed        *feed.Hub
	CORSOrigins []string
}

type Server struct {
	Deps
}

func New(d Deps) *Server {
	return &Server{Deps: d}
}

// Handler returns the full HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/docs.json", s.handleDocs)

	// Microsoft sign-in
	mux.HandleFunc("GET /auth/login", s.handleMSLogin)
	mux.HandleFunc("GET /auth/callback", s.handleMSCallback)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	// local accounts
	mux.HandleFunc("POST /auth/login", s.handleLocalLogin)
	mux.HandleFunc("POST /auth/local/login", s.handleLocalLogin)
	mux.HandleFunc("POST /auth/set-password", s.handleSetPassword)
	mux.HandleFunc("GET /auth/me", s.handleLocalMe)

	// Graph proxy
	mux.HandleFunc("GET /api/contacts", s.handleListContacts)
	mux.HandleFunc("POST /api/contacts", s.handleCreateContact)
	mux.HandleFunc("GET /api/contacts/{id}", s.handleGetContact)
	mux.HandleFunc("PATCH /api/contacts/{id}", s.handleUpdateContact)
	mux.HandleFunc("DELETE /api/contacts/{id}", s.handleDeleteContact)
	mux.HandleFunc("POST /api/mail/send", s.handleSendMail)
	mux.HandleFunc("GET /api/mail/inbox", s.handleInbox)
	mux.HandleFunc("GET /api/mail/sent", s.handleSent)
	mux.HandleFunc("GET /api/mail/messages/{id}", s.handleMessage)
	mux.HandleFunc("GET /api/me", s.handleProfile)
	mux.HandleFunc("GET /api/me/photo", s.handlePhoto)

	// AI
	mux.HandleFunc("POST /api/ai/chat", s.handleChat)
	mux.HandleFunc("POST /api/ai/plan", s.handlePlan)
	mux.HandleFunc("POST /api/ai/agent", s.handleAgent)

	// admin
	mux.HandleFunc("GET /api/admin/feed", s.handleFeed)
	mux.HandleFunc("GET /api/admin/requests", s.handleRecentRequests)

	return s.logRequests(s.cors(mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Plan    any    `json:"plan,omitempty"`
}

// writeError renders err as the {error, message[, detail][, plan]} envelope.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, err, nil)
}

// writeErrorStatus is writeError with the HTTP status chosen by statusFor
// instead of the kind's default.
func writeErrorStatus(w http.ResponseWriter, err error, statusFor func(apperr.Kind) int) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("unhandled error", "error", err)
		e = apperr.Wrap(apperr.KindInternal, err, "internal server error")
	}
	status := e.Kind.Status()
	if statusFor != nil {
		status = statusFor(e.Kind)
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "kind", e.Kind, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:   string(e.Kind),
		Message: e.Message,
		Detail:  e.Detail,
		Plan:    e.Plan,
	})
}

// readJSON decodes a JSON object body into v. An empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "could not read request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "request body must be a JSON object")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// msToken resolves the caller's Microsoft access token: the bearer header
// first, then the token stored in the cookie session.
func (s *Server) msToken(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return tok
	}
	if s.Sessions == nil {
		return ""
	}
	return s.Sessions.Load(r).AccessToken()
}

func (s *Server) requireMSToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := s.msToken(r)
	if tok == "" {
		writeError(w, apperr.New(apperr.KindNotAuthenticated, notAuthenticatedMessage))
		return "", false
	}
	return tok, true
}

// localClaims verifies the local JWT from the bearer header, or from ?token=
// when allowQuery is set (browsers cannot set headers on websocket upgrades).
func (s *Server) localClaims(r *http.Request, allowQuery bool) (*auth.Claims, error) {
	tok := bearerToken(r)
	if tok == "" && allowQuery {
		tok = r.URL.Query().Get("token")
	}
	if tok == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "missing bearer token")
	}
	claims, err := s.Issuer.Verify(tok)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid or expired token")
	}
	return claims, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "user not found")
	case errors.Is(err, store.ErrInvalidCredentials):
		return apperr.New(apperr.KindInvalidCredentials, err.Error())
	case errors.Is(err, store.ErrEmailTaken):
		return apperr.New(apperr.KindConflict, err.Error())
	case errors.Is(err, store.ErrPasswordTooShort), errors.Is(err, store.ErrPasswordMismatch):
		return apperr.New(apperr.KindValidation, err.Error())
	default:
		return err
	}
}
