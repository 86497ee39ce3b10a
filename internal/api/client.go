// Package api is the HTTP client for the meeting server's JSON endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mm/internal/models"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Code   int
	Status string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s %s", e.Code, e.Status, e.Body)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the server at baseURL. The jar carries the
// session cookie and may be nil.
func New(baseURL string, jar http.CookieJar) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
	}, nil
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Preferences fetches the signed-in user's credentials and moderation state.
// Credentials is nil when the session is anonymous.
func (c *Client) Preferences(ctx context.Context) (*models.Preferences, error) {
	var prefs models.Preferences
	if err := c.do(ctx, http.MethodGet, "/preferences", nil, nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/preferences", url.Values{"logout": {"true"}}, nil, nil)
}

// Manage performs a moderation action.
func (c *Client) Manage(ctx context.Context, req models.MgmtRequest) (*models.Response, error) {
	var resp models.Response
	if err := c.do(ctx, http.MethodPost, "/mgmt", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Post sends a chat message to room.
func (c *Client) Post(ctx context.Context, room, message string) (*models.Response, error) {
	var resp models.Response
	req := models.PostRequest{Room: room, Message: message}
	if err := c.do(ctx, http.MethodPost, "/post", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invite asks the server for a guest invite link for name.
func (c *Client) Invite(ctx context.Context, name string) (*models.InviteResponse, error) {
	var resp models.InviteResponse
	if err := c.do(ctx, http.MethodPost, "/invite", nil, models.InviteRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Proxy registers the caller as proxy for members.
func (c *Client) Proxy(ctx context.Context, members []string) (*models.Response, error) {
	var resp models.Response
	if err := c.do(ctx, http.MethodPost, "/proxy", nil, models.ProxyRequest{Members: members}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Visit loads a page on the server so that any cookies it sets land in the
// jar, following HTTP redirects. It returns the final URL.
func (c *Client) Visit(ctx context.Context, target *url.URL) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(target).String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	return resp.Request.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL()
	u.Path += path
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
			Body:   string(text),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
