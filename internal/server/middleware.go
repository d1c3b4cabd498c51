package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/TheLazyLemur/graphpilot/internal/auth"
	"github.com/TheLazyLemur/graphpilot/internal/feed"
	"github.com/TheLazyLemur/graphpilot/internal/store"
	"github.com/pkg/errors"
)

// cors answers preflights and sets allow headers for /api/* only.
func (s *Server) cors(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(s.CORSOrigins))
	for _, o := range s.CORSOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !strings.HasPrefix(r.URL.Path, "/api/") || origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recorder captures the status and the head of the response body.
type recorder struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (rec *recorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	if room := store.MaxLoggedResponse - len(rec.body); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		rec.body = append(rec.body, p[:room]...)
	}
	return rec.ResponseWriter.Write(p)
}

func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rec *recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// logRequests records every request to request_logs and the admin feed.
// Storage failures are logged and never change the response.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		entry := &store.RequestLog{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: status,
			IP:         clientIP(r),
			MSEmail:    s.requestEmail(r),
			Response:   string(rec.body),
		}

		slog.Debug("request", "method", entry.Method, "path", entry.Path, "status", status, "duration", time.Since(start))

		if s.Store != nil {
			if err := s.Store.LogRequest(context.WithoutCancel(r.Context()), entry); err != nil {
				slog.Warn("request log failed", "path", entry.Path, "error", err)
			}
		}
		if s.Feed != nil {
			s.Feed.Publish(feed.Event{Type: feed.TypeRequest, Data: entry})
		}
	})
}

// requestEmail labels a request with the Microsoft account behind it, if any.
func (s *Server) requestEmail(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return auth.EmailFromToken(tok)
	}
	if s.Sessions == nil {
		return ""
	}
	sess := s.Sessions.Load(r)
	if sess.MSEmail != "" {
		return sess.MSEmail
	}
	return auth.EmailFromToken(sess.AccessToken())
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
