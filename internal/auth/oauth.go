// Package auth covers the Microsoft sign-in flow, local JWTs and cookie sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/TheLazyLemur/graphpilot/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// OAuth runs the authorization-code flow against Microsoft identity.
type OAuth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// NewOAuth builds the flow from the app registration. httpClient may be nil.
func NewOAuth(ms config.Microsoft, httpClient *http.Client) (*OAuth, error) {
	if ms.ClientID == "" {
		return nil, errors.New("MS_CLIENT_ID is not configured")
	}
	if ms.ClientSecret == "" {
		return nil, errors.New("MS_CLIENT_SECRET is not configured")
	}
	if ms.RedirectURI == "" {
		return nil, errors.New("MS_REDIRECT_URI is not configured")
	}

	endpoint := microsoft.AzureADEndpoint(ms.TenantID)
	if ms.Authority != "" {
		base := ms.Authority + "/" + ms.TenantID + "/oauth2/v2.0"
		endpoint = oauth2.Endpoint{AuthURL: base + "/authorize", TokenURL: base + "/token"}
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     ms.ClientID,
			ClientSecret: ms.ClientSecret,
			RedirectURL:  ms.RedirectURI,
			Scopes:       ms.Scopes,
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
	}, nil
}

// AuthURL is where the browser is sent to pick an account.
func (o *OAuth) AuthURL(state string) string {
	return o.cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchanging authorization code")
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}
	return tok, nil
}

// NewState returns a random value for CSRF protection of the callback.
func NewState() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
