// Package graphtest provides an in-memory Microsoft Graph fake for tests.
package graphtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	GoodToken = "good-token"
	apiPrefix = "/v1.0"
)

// Request is one call the fake received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// Server fakes the subset of Graph the client uses. Fields may be set before the first request.
type Server struct {
	*httptest.Server

	Contacts []map[string]any
	Inbox    []map[string]any
	Sent     []map[string]any
	Profile  map[string]any
	Photo    []byte
	// Fail forces a status for "METHOD /path" keys, e.g. "GET /me/contacts".
	Fail map[string]int

	mu       sync.Mutex
	requests []Request
}

// New starts a fake seeded with a few contacts and messages.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Contacts: []map[string]any{
			contact("c1", "Patrick Souza", "patrick@gmail.com"),
			contact("c2", "Ana Lima", "ana@conecta.com.br", "ana.lima@gmail.com"),
			contact("c3", "bruno", "bruno@conecta.com.br"),
		},
		Inbox: []map[string]any{
			{"id": "m1", "subject": "Hello", "isRead": false},
			{"id": "m2", "subject": "Invoice", "isRead": true},
		},
		Sent:    []map[string]any{{"id": "s1", "subject": "Re: Hello"}},
		Profile: map[string]any{"id": "oid-1", "displayName": "Test User", "mail": "test.user@contoso.com"},
		Photo:   []byte{0xff, 0xd8, 0xff},
		Fail:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func contact(id, name string, emails ...string) map[string]any {
	addrs := make([]any, 0, len(emails))
	for _, e := range emails {
		addrs = append(addrs, map[string]any{"name": name, "address": e})
	}
	return map[string]any{
		"id":             id,
		"displayName":    name,
		"emailAddresses": addrs,
		"businessPhones": []any{},
	}
}

// BaseURL is the value to hand to graph.New.
func (s *Server) BaseURL() string { return s.URL + apiPrefix }

// Requests returns a copy of the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Last returns the most recent call.
func (s *Server) Last() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	req := Request{Method: r.Method, Path: path, Query: r.URL.Query()}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+GoodToken {
		writeError(w, http.StatusUnauthorized, "InvalidAuthenticationToken", "Access token has expired or is not yet valid.")
		return
	}
	if status, ok := s.Fail[r.Method+" "+path]; ok {
		writeError(w, status, "Forced", "forced failure")
		return
	}

	switch {
	case path == "/me" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.Profile)
	case path == "/me/photo/$value" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(s.Photo)
	case path == "/me/contacts" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"value": limit(s.Contacts, req.Query)})
	case path == "/me/contacts" && r.Method == http.MethodPost:
		created := map[string]any{"id": "new-1"}
		for k, v := range req.Body {
			created[k] = v
		}
		writeJSON(w, http.StatusCreated, created)
	case strings.HasPrefix(path, "/me/contacts/"):
		s.handleContact(w, r.Method, strings.TrimPrefix(path, "/me/contacts/"), req.Body)
	case path == "/me/mailFolders/Inbox/messages" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"value": limit(s.Inbox, req.Query)})
	case path == "/me/mailFolders/SentItems/messages" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"value": limit(s.Sent, req.Query)})
	case strings.HasPrefix(path, "/me/messages/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/me/messages/")
		for _, m := range append(append([]map[string]any{}, s.Inbox...), s.Sent...) {
			if m["id"] == id {
				writeJSON(w, http.StatusOK, m)
				return
			}
		}
		writeError(w, http.StatusNotFound, "ErrorItemNotFound", "The specified object was not found in the store.")
	case path == "/me/sendMail" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusNotFound, "ResourceNotFound", "unsupported "+r.Method+" "+path)
	}
}

func (s *Server) handleContact(w http.ResponseWriter, method, id string, body map[string]any) {
	for _, c := range s.Contacts {
		if c["id"] != id {
			continue
		}
		switch method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, c)
		case http.MethodPatch:
			updated := map[string]any{}
			for k, v := range c {
				updated[k] = v
			}
			for k, v := range body {
				updated[k] = v
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", method)
		}
		return
	}
	writeError(w, http.StatusNotFound, "ErrorItemNotFound", "The specified object was not found in the store.")
}

func limit(items []map[string]any, q url.Values) []map[string]any {
	top, err := strconv.Atoi(q.Get("$top"))
	if err != nil || top >= len(items) || top < 0 {
		return items
	}
	return items[:top]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}
