package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/TheLazyLemur/graphpilot/internal/auth"
	"github.com/TheLazyLemur/graphpilot/internal/config"
	"github.com/TheLazyLemur/graphpilot/internal/dispatch"
	"github.com/TheLazyLemur/graphpilot/internal/gateway"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
	"github.com/TheLazyLemur/graphpilot/internal/graph/graphtest"
	"github.com/TheLazyLemur/graphpilot/internal/planner"
	"github.com/TheLazyLemur/graphpilot/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	reply  string
	err    error
	prompt string
}

func (s *stubGateway) Send(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

type fixture struct {
	srv   *Server
	h     http.Handler
	fake  *graphtest.Server
	store *store.Store
	gw    *stubGateway
}

func newFixture(t *testing.T, mode planner.Mode) *fixture {
	t.Helper()
	fake := graphtest.New(t)
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = st.Migrate(context.Background())
	require.NoError(t, err)

	gw := &stubGateway{}
	g := graph.New(fake.BaseURL(), fake.Client())
	srv := New(Deps{
		Store:       st,
		Graph:       g,
		Gateway:     gw,
		Planner:     planner.New(gw, mode),
		Dispatcher:  dispatch.New(g),
		Issuer:      auth.NewIssuer("test-secret", time.Hour),
		Sessions:    auth.NewSessions(time.Hour, false),
		CORSOrigins: []string{"http://app.local"},
	})
	return &fixture{srv: srv, h: srv.Handler(), fake: fake, store: st, gw: gw}
}

func (f *fixture) do(method, target, bearer string, body any) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndDocs(t *testing.T) {
	a := assert.New(t)
	f := newFixture(t, planner.ModeConversational)

	rec := f.do(http.MethodGet, "/api/health", "", nil)
	a.Equal(http.StatusOK, rec.Code)
	a.Equal("ok", decode(t, rec)["status"])

	rec = f.do(http.MethodGet, "/api/docs.json", "", nil)
	a.Equal(http.StatusOK, rec.Code)
	doc := decode(t, rec)
	a.Equal("3.0.3", doc["openapi"])
	a.Contains(doc["paths"], "/api/ai/agent")
}

func TestCORS(t *testing.T) {
	a := assert.New(t)
	f := newFixture(t, planner.ModeConversational)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/contacts", nil)
		req.Header.Set("Origin", "http://app.local")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)

		a.Equal(http.StatusNoContent, rec.Code)
		a.Equal("http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
		a.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.local")
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)

		a.Equal(http.StatusOK, rec.Code)
		a.Empty(rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("non api paths are untouched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Origin", "http://app.local")
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)

		a.Empty(rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestGraphProxy(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		rec := f.do(http.MethodGet, "/api/contacts", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "ms_not_authenticated", body["error"])
		assert.Contains(t, body["message"], "/auth/login")
		assert.Empty(t, f.fake.Requests())
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		rec := f.do(http.MethodGet, "/api/mail/inbox", "stale", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "ms_token_invalid_or_expired", decode(t, rec)["error"])
	})

	t.Run("contacts grouped by domain", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		rec := f.do(http.MethodGet, "/api/contacts?top=5000", graphtest.GoodToken, nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var grouped map[string][]graph.DomainContact
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grouped))
		assert.Len(t, grouped["gmail.com"], 2)
		assert.Len(t, grouped["conecta.com.br"], 2)
		assert.Equal(t, "999", f.fake.Last().Query.Get("$top"))
	})

	t.Run("create contact requires givenName", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		rec := f.do(http.MethodPost, "/api/contacts", graphtest.GoodToken, map[string]any{"surname": "Lima"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decode(t, rec)["error"])
		assert.Empty(t, f.fake.Requests())
	})

	t.Run("create contact", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		rec := f.do(http.MethodPost, "/api/contacts", graphtest.GoodToken, map[string]any{
			"givenName": "Maria", "surname": "Silva", "email": "maria@example.com",
		})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "new-1", decode(t, rec)["id"])
		assert.Equal(t, "Maria", f.fake.Last().Body["givenName"])
	})

	t.Run("get update delete contact", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)

		rec := f.do(http.MethodGet, "/api/contacts/c2?$select=displayName,emailAddresses", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "displayName,emailAddresses", f.fake.Last().Query.Get("$select"))

		rec = f.do(http.MethodPatch, "/api/contacts/c2", graphtest.GoodToken, map[string]any{"jobTitle": "CTO"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "CTO", decode(t, rec)["jobTitle"])

		rec = f.do(http.MethodDelete, "/api/contacts/c2", graphtest.GoodToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(http.MethodGet, "/api/contacts/nope", graphtest.GoodToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decode(t, rec)["error"])
	})

	t.Run("send mail", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)

		rec := f.do(http.MethodPost, "/api/mail/send", graphtest.GoodToken, map[string]any{"subject": "Hi", "to": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(http.MethodPost, "/api/mail/send", graphtest.GoodToken, map[string]any{
			"subject": "Hi", "body_html": "<p>hello</p>", "to": []string{"ana@example.com"},
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "/me/sendMail", f.fake.Last().Path)
	})

	t.Run("mail listings and detail", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)

		rec := f.do(http.MethodGet, "/api/mail/inbox?top=0", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "25", f.fake.Last().Query.Get("$top"))

		rec = f.do(http.MethodGet, "/api/mail/sent?top=500", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", f.fake.Last().Query.Get("$top"))

		rec = f.do(http.MethodGet, "/api/mail/messages/m2?include_body=yes", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Invoice", decode(t, rec)["subject"])
		assert.Contains(t, f.fake.Last().Query.Get("$select"), "body")

		rec = f.do(http.MethodGet, "/api/mail/messages/missing", graphtest.GoodToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.fake.Fail["GET /me/mailFolders/Inbox/messages"] = http.StatusServiceUnavailable

		rec := f.do(http.MethodGet, "/api/mail/inbox", graphtest.GoodToken, nil)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "graph_error", body["error"])
		assert.Equal(t, "could not list Inbox messages", body["message"])
	})

	t.Run("profile and photo", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)

		rec := f.do(http.MethodGet, "/api/me", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Test User", decode(t, rec)["displayName"])

		rec = f.do(http.MethodGet, "/api/me/photo", graphtest.GoodToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, rec.Body.Bytes())
	})
}

func TestAgent(t *testing.T) {
	const gmail = `{"action":"list_contacts","params":{"domain":"gmail.com"},"reason":"gmail contacts","confidence":0.9}`
	prompt := map[string]any{"prompt": "Liste contatos do domínio gmail.com"}

	t.Run("plans and dispatches", func(t *testing.T) {
		// given
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = gmail

		// when
		rec := f.do(http.MethodPost, "/api/ai/agent", graphtest.GoodToken, prompt)

		// then
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		p := body["plan"].(map[string]any)
		assert.Equal(t, "list_contacts", p["action"])
		assert.Equal(t, map[string]any{"domain": "gmail.com", "top": float64(100)}, p["params"])
		assert.EqualValues(t, 2, body["result"].(map[string]any)["count"])
		assert.Contains(t, f.gw.prompt, "Liste contatos do domínio gmail.com")
	})

	t.Run("expired token carries the plan", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = gmail

		rec := f.do(http.MethodPost, "/api/ai/agent", "stale", prompt)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "ms_token_invalid_or_expired", body["error"])
		assert.Equal(t, "list_contacts", body["plan"].(map[string]any)["action"])
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = gmail

		rec := f.do(http.MethodPost, "/api/ai/agent", "", prompt)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "ms_not_authenticated", decode(t, rec)["error"])
		assert.Empty(t, f.fake.Requests())
	})

	t.Run("chat reply needs no token", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = `{"action":"chat_reply","params":{"tone":"friendly"},"reason":"greeting","confidence":1,"message":"Olá!"}`

		rec := f.do(http.MethodPost, "/api/ai/agent", "", map[string]any{"prompt": "oi"})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode(t, rec)["result"].(map[string]any)
		assert.Equal(t, "Olá!", result["message"])
		assert.Empty(t, f.fake.Requests())
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = gmail
		f.fake.Fail["GET /me/contacts"] = http.StatusInternalServerError

		rec := f.do(http.MethodPost, "/api/ai/agent", graphtest.GoodToken, prompt)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "execution_failed", body["error"])
		assert.NotNil(t, body["plan"])
	})

	t.Run("missing resource stays within agent statuses", func(t *testing.T) {
		// given
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = `{"action":"get_contact","params":{"contact_id":"nope"},"reason":"lookup","confidence":0.8}`

		// when
		rec := f.do(http.MethodPost, "/api/ai/agent", graphtest.GoodToken, map[string]any{"prompt": "show contact nope"})

		// then
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "not_found", body["error"])
		assert.Equal(t, "get_contact", body["plan"].(map[string]any)["action"])

		// the direct proxy route keeps its 404
		rec = f.do(http.MethodGet, "/api/contacts/nope", graphtest.GoodToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("model unavailable", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.err = errors.New("all candidates failed")

		rec := f.do(http.MethodPost, "/api/ai/agent", graphtest.GoodToken, prompt)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "model_unavailable", decode(t, rec)["error"])
	})

	t.Run("empty prompt", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)

		rec := f.do(http.MethodPost, "/api/ai/agent", graphtest.GoodToken, map[string]any{"prompt": "  "})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decode(t, rec)["error"])
		assert.Empty(t, f.gw.prompt)
	})
}

func TestPlanAndChat(t *testing.T) {
	t.Run("conversational mode falls back on garbage", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = "I am not JSON"

		rec := f.do(http.MethodPost, "/api/ai/plan", "", map[string]any{"prompt": "hello"})

		require.Equal(t, http.StatusOK, rec.Code)
		p := decode(t, rec)["plan"].(map[string]any)
		assert.Equal(t, "chat_reply", p["action"])
		assert.Equal(t, "error", p["message_type"])
	})

	t.Run("strict mode rejects garbage", func(t *testing.T) {
		f := newFixture(t, planner.ModeStrict)
		f.gw.reply = "I am not JSON"

		rec := f.do(http.MethodPost, "/api/ai/plan", "", map[string]any{"prompt": "hello"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "decode_error", decode(t, rec)["error"])
	})

	t.Run("chat returns the raw reply", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.gw.reply = "OAuth2 is a delegation protocol."

		rec := f.do(http.MethodPost, "/api/ai/chat", "", map[string]any{"prompt": "What is OAuth2?"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OAuth2 is a delegation protocol.", decode(t, rec)["response"])
		assert.Equal(t, "What is OAuth2?", f.gw.prompt)
	})

	t.Run("chat with unconfigured model", func(t *testing.T) {
		f := newFixture(t, planner.ModeConversational)
		f.srv.Gateway = gateway.Unconfigured{Reason: "GEMINI_API_KEY is not set"}
		h := f.srv.Handler()

		req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"prompt":"hi"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestLocalAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, planner.ModeConversational)
	_, err := f.store.CreateUser(ctx, "Ana", "Ana@Example.com", "s3cret-pass")
	require.NoError(t, err)

	t.Run("missing credentials", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_credentials", decode(t, rec)["error"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com", "password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decode(t, rec)["error"])
	})

	t.Run("login then change password", func(t *testing.T) {
		a := assert.New(t)

		rec := f.do(http.MethodPost, "/auth/local/login", "", map[string]any{"email": "ana@example.com", "password": "s3cret-pass"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		token, _ := body["access_token"].(string)
		require.NotEmpty(t, token)
		a.Equal("ana@example.com", body["user"].(map[string]any)["email"])
		a.NotContains(rec.Body.String(), "password_hash")

		rec = f.do(http.MethodGet, "/auth/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		a.Equal("Ana", decode(t, rec)["name"])

		rec = f.do(http.MethodPost, "/auth/set-password", token, map[string]any{"password": "another-pass", "password_confirm": "different"})
		a.Equal(http.StatusBadRequest, rec.Code)

		rec = f.do(http.MethodPost, "/auth/set-password", token, map[string]any{"password": "another-pass", "password_confirm": "another-pass"})
		a.Equal(http.StatusOK, rec.Code)

		_, err := f.store.CheckPassword(ctx, "ana@example.com", "another-pass")
		a.NoError(err)
	})

	t.Run("bad local token", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decode(t, rec)["error"])
	})
}

func TestMicrosoftSignIn(t *testing.T) {
	// given
	var exchanged url.Values
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/common/oauth2/v2.0/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		exchanged = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + graphtest.GoodToken + `","token_type":"Bearer","expires_in":3600,"refresh_token":"r1"}`))
	}))
	defer tokenSrv.Close()

	f := newFixture(t, planner.ModeConversational)
	oa, err := auth.NewOAuth(config.Microsoft{
		TenantID:     "common",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost/auth/callback",
		Scopes:       []string{"User.Read", "Mail.Read"},
		Authority:    tokenSrv.URL,
	}, tokenSrv.Client())
	require.NoError(t, err)
	f.srv.OAuth = oa

	app := httptest.NewServer(f.srv.Handler())
	defer app.Close()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	// when
	resp, err := client.Get(app.URL + "/auth/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "select_account", loc.Query().Get("prompt"))

	t.Run("state mismatch", func(t *testing.T) {
		resp, err := client.Get(app.URL + "/auth/callback?code=abc&state=forged")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp, err = client.Get(app.URL + "/auth/callback?code=abc&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	defer resp.Body.Close()

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		MSAccessToken string         `json:"ms_access_token"`
		Token         tokenInfo      `json:"token"`
		Me            map[string]any `json:"me"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, graphtest.GoodToken, body.MSAccessToken)
	assert.Equal(t, "Bearer", body.Token.TokenType)
	assert.InDelta(t, 3600, body.Token.ExpiresIn, 5)
	assert.Equal(t, "Test User", body.Me["displayName"])
	assert.Equal(t, "abc", exchanged.Get("code"))
	assert.Equal(t, "client-id", exchanged.Get("client_id"))

	user, err := f.store.UserByEmail(context.Background(), "test.user@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "oid-1", user.MSOID)

	// the session now carries the Microsoft token
	resp, err = client.Get(app.URL + "/api/mail/inbox")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(app.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(app.URL + "/api/mail/inbox")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMicrosoftSignIn_NotConfigured(t *testing.T) {
	f := newFixture(t, planner.ModeConversational)
	rec := f.do(http.MethodGet, "/auth/login", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode(t, rec)["error"])
}

func TestRequestLogging(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	f := newFixture(t, planner.ModeConversational)

	// given
	user, err := f.store.CreateUser(ctx, "Admin", "admin@example.com", "admin-pass")
	require.NoError(t, err)
	token, err := f.srv.Issuer.Issue(user.UUID, user.Email, user.Name)
	require.NoError(t, err)

	// when
	f.do(http.MethodGet, "/api/health", "", nil)
	f.do(http.MethodGet, "/api/contacts", "", nil)

	// then
	logs, err := f.store.RecentRequests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	a.Equal("/api/contacts", logs[0].Path)
	a.Equal(http.StatusUnauthorized, logs[0].StatusCode)
	a.Contains(logs[0].Response, "ms_not_authenticated")
	a.Equal("/api/health", logs[1].Path)
	a.NotEmpty(logs[1].IP)

	rec := f.do(http.MethodGet, "/api/admin/requests?limit=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	a.Len(items, 1)

	rec = f.do(http.MethodGet, "/api/admin/requests", "", nil)
	a.Equal(http.StatusUnauthorized, rec.Code)
}
