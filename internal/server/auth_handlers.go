package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/auth"
	"github.com/TheLazyLemur/graphpilot/internal/store"
)

func (s *Server) oauthConfigured(w http.ResponseWriter) bool {
	if s.OAuth == nil {
		writeError(w, apperr.New(apperr.KindInternal, "Microsoft sign-in is not configured (MS_CLIENT_ID / MS_CLIENT_SECRET)"))
		return false
	}
	return true
}

func (s *Server) handleMSLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oauthConfigured(w) {
		return
	}
	sess := s.Sessions.Load(r)
	sess.OAuthState = auth.NewState()
	s.Sessions.Save(w, r, sess)
	http.Redirect(w, r, s.OAuth.AuthURL(sess.OAuthState), http.StatusFound)
}

type tokenInfo struct {
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type callbackResponse struct {
	MSAccessToken string         `json:"ms_access_token"`
	Token         tokenInfo      `json:"token"`
	Me            map[string]any `json:"me"`
}

func (s *Server) handleMSCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oauthConfigured(w) {
		return
	}
	q := r.URL.Query()
	sess := s.Sessions.Load(r)

	if sess.OAuthState == "" || q.Get("state") != sess.OAuthState {
		writeError(w, apperr.New(apperr.KindInvalidState, "state does not match the login request"))
		return
	}
	if code := q.Get("error"); code != "" {
		writeError(w, &apperr.Error{
			Kind:    apperr.KindProvider,
			Message: code,
			Detail:  q.Get("error_description"),
		})
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, apperr.New(apperr.KindMissingCode, "authorization code is missing"))
		return
	}

	tok, err := s.OAuth.Exchange(r.Context(), code)
	if err != nil {
		slog.Warn("token exchange failed", "error", err)
		writeError(w, &apperr.Error{
			Kind:    apperr.KindTokenExchange,
			Message: "could not exchange the authorization code",
			Detail:  apperr.Truncate(err.Error(), 500),
			Cause:   err,
		})
		return
	}

	me, err := s.Graph.Me(r.Context(), tok.AccessToken)
	if err != nil {
		slog.Warn("fetching /me after sign-in", "error", err)
		me = map[string]any{"error_fetching_me": err.Error()}
	}

	id := microsoftIdentity(tok.AccessToken, me)
	sess.OAuthState = ""
	sess.MSToken = tok
	sess.MSEmail = id.Email
	s.Sessions.Save(w, r, sess)

	if s.Store != nil && id.Email != "" {
		if _, err := s.Store.UpsertMicrosoftUser(r.Context(), id.OID, id.Email, id.Name); err != nil {
			slog.Warn("linking microsoft user", "email", id.Email, "error", err)
		}
	}

	info := tokenInfo{TokenType: tok.TokenType}
	if !tok.Expiry.IsZero() {
		info.ExpiresAt = tok.Expiry.Unix()
		info.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	writeJSON(w, http.StatusOK, callbackResponse{MSAccessToken: tok.AccessToken, Token: info, Me: me})
}

// microsoftIdentity prefers the Graph profile and falls back to token claims.
func microsoftIdentity(accessToken string, me map[string]any) auth.Identity {
	id, _ := auth.IdentityFromToken(accessToken)
	str := func(k string) string { v, _ := me[k].(string); return strings.TrimSpace(v) }
	if v := str("id"); v != "" {
		id.OID = v
	}
	if v := str("mail"); v != "" {
		id.Email = v
	} else if v := str("userPrincipalName"); v != "" && id.Email == "" {
		id.Email = v
	}
	if v := str("displayName"); v != "" {
		id.Name = v
	}
	return id
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Sessions.Clear(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        *store.User `json:"user"`
}

func (s *Server) handleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, apperr.New(apperr.KindMissingCredentials, "email and password are required"))
		return
	}

	user, err := s.Store.CheckPassword(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, storeError(err))
		return
	}
	token, err := s.Issuer.Issue(user.UUID, user.Email, user.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("local login", "user", user.UUID)
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, User: user})
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	claims, err := s.localClaims(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Store.UserByUUID(r.Context(), claims.Subject); err != nil {
		writeError(w, storeError(err))
		return
	}

	var body struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Password == "" || body.PasswordConfirm == "" {
		writeError(w, apperr.New(apperr.KindValidation, "fields 'password' and 'password_confirm' are required"))
		return
	}
	if err := s.Store.SetPassword(r.Context(), claims.Subject, body.Password, body.PasswordConfirm); err != nil {
		writeError(w, storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLocalMe(w http.ResponseWriter, r *http.Request) {
	claims, err := s.localClaims(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.Store.UserByUUID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
