package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/models"
	"golang.org/x/oauth2"
)

// Client talks to the MCP registry API. It never retries or caches;
// callers decide when to fetch again.
type Client struct {
	baseURL string
	client  *http.Client
}

// Health is the registry health payload
type Health struct {
	Status         string `json:"status,omitempty"`
	GitHubClientID string `json:"github_client_id,omitempty"`
}

// New creates a registry client for the API rooted at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a registry client using hc for every request
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// BaseURL returns the registry API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListServers fetches the registry catalog. The undecoded body is kept in
// the result's Raw field.
func (c *Client) ListServers(ctx context.Context) (*models.ServerList, error) {
	var raw json.RawMessage
	if err := c.do(ctx, c.client, "list servers", http.MethodGet, "/servers", nil, &raw); err != nil {
		return nil, err
	}

	var result models.ServerList
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &NetworkError{Op: "list servers", Err: err}
	}
	if result.Servers == nil {
		result.Servers = []models.ServerResponse{}
	}
	result.Raw = raw
	return &result, nil
}

// Health fetches the registry health and public configuration
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.do(ctx, c.client, "health", http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeGitHubToken trades a GitHub access token for a registry token
func (c *Client) ExchangeGitHubToken(ctx context.Context, githubToken string) (string, error) {
	body := map[string]string{"github_token": githubToken}

	var result struct {
		RegistryToken string `json:"registry_token"`
	}
	if err := c.do(ctx, c.client, "token exchange", http.MethodPost, "/auth/github-at", body, &result); err != nil {
		return "", err
	}
	return result.RegistryToken, nil
}

// Publish submits a server.json to the registry on behalf of the holder of
// registryToken. The caller must hold a session.
func (c *Client) Publish(ctx context.Context, registryToken string, descriptor *models.Descriptor) error {
	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: registryToken, TokenType: "Bearer"}),
	)
	return c.do(ctx, authed, "publish", http.MethodPost, "/publish", descriptor, nil)
}

// do issues one request and decodes a successful JSON answer into out
func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newResponseError(op, resp, errorMessage(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	return nil
}

// errorMessage pulls the registry's explanation out of an error body
func errorMessage(r io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	for _, msg := range []string{payload.Message, payload.Error, payload.Detail} {
		if msg != "" {
			return msg
		}
	}
	return ""
}
