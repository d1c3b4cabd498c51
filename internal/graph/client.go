// Package graph is a thin bearer-authenticated REST client for Microsoft Graph.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	maxDetail = 500
)

// Error is a non-2xx answer from Graph.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph %s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Body)
}

// Client calls Graph on behalf of whoever owns the access token passed to each call.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. Empty arguments fall back to DefaultBaseURL
// and http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Get fetches path and decodes the JSON object it returns.
func (c *Client) Get(ctx context.Context, token, path string, query url.Values) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, token, path, query, nil)
}

// Post sends payload as JSON. Empty, 202 and 204 answers come back as {"status": code}.
func (c *Client) Post(ctx context.Context, token, path string, payload any) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, token, path, nil, payload)
}

// Patch sends payload as a partial update.
func (c *Client) Patch(ctx context.Context, token, path string, payload any) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPatch, token, path, nil, payload)
}

// Delete removes the resource at path. A 204 comes back as {"status": 204}.
func (c *Client) Delete(ctx context.Context, token, path string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodDelete, token, path, nil, nil)
}

// GetBinary fetches raw bytes, e.g. a profile photo.
func (c *Client) GetBinary(ctx context.Context, token, path string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, token, path, nil, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading graph response")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) getInto(ctx context.Context, token, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, token, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding graph GET %s", path)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, token, path string, query url.Values, payload any) (map[string]any, error) {
	resp, err := c.do(ctx, method, token, path, query, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading graph response")
	}
	if method == http.MethodDelete || resp.StatusCode == http.StatusAccepted ||
		resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{"status": resp.StatusCode}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding graph %s %s", method, path)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, token, path string, query url.Values, payload any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding graph payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "building graph request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "graph %s %s", method, path)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// Classify maps a Graph failure onto the caller-facing error kinds. 401 means the
// Microsoft token must be renewed, 404 means the resource is missing and anything
// else becomes fallback carrying the upstream status and a truncated body.
func Classify(err error, fallback apperr.Kind) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var ge *Error
	if errors.As(err, &ge) {
		switch {
		case ge.Status == http.StatusUnauthorized:
			return &apperr.Error{
				Kind:     apperr.KindUnauthorized,
				Message:  "Microsoft access token is invalid or expired. Get a new one at /auth/login.",
				Upstream: ge.Status,
				Cause:    err,
			}
		case ge.Status == http.StatusNotFound:
			return &apperr.Error{
				Kind:     apperr.KindNotFound,
				Message:  "resource not found in Microsoft Graph",
				Upstream: ge.Status,
				Cause:    err,
			}
		default:
			return &apperr.Error{
				Kind:     fallback,
				Message:  fmt.Sprintf("Microsoft Graph returned %d", ge.Status),
				Upstream: ge.Status,
				Detail:   apperr.Truncate(ge.Body, maxDetail),
				Cause:    err,
			}
		}
	}

	msg := err.Error()
	switch cause := causeMessage(err); {
	case strings.Contains(cause, "401") || strings.Contains(cause, "Unauthorized"):
		return apperr.Wrap(apperr.KindUnauthorized, err, "Microsoft access token is invalid or expired. Get a new one at /auth/login.")
	case strings.Contains(cause, "404") || strings.Contains(cause, "Not Found"):
		return apperr.Wrap(apperr.KindNotFound, err, "resource not found in Microsoft Graph")
	}
	return &apperr.Error{
		Kind:    fallback,
		Message: "Microsoft Graph request failed",
		Detail:  apperr.Truncate(msg, maxDetail),
		Cause:   err,
	}
}

// causeMessage is the innermost error text, without the wrap prefixes or the
// request URL that would otherwise carry ids from the path.
func causeMessage(err error) string {
	root := errors.Cause(err)
	var ue *url.Error
	if errors.As(root, &ue) && ue.Err != nil {
		root = ue.Err
	}
	return root.Error()
}
