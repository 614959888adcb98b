package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/models"
	"golang.org/x/oauth2"
)

const (
	deviceGrantType         = "urn:ietf:params:oauth:grant-type:device_code"
	errAuthorizationPending = "authorization_pending"

	// DefaultPollAttempts bounds the poll to five minutes at a 5s interval
	DefaultPollAttempts = 60
)

// GitHubOptions configures a GitHub device-flow client
type GitHubOptions struct {
	// OAuthURL is the root of the device/code and oauth/access_token endpoints
	OAuthURL string
	// APIURL is the root of the REST API serving /user
	APIURL       string
	Scope        string
	PollInterval time.Duration
	PollAttempts int
	HTTPClient   *http.Client
}

// GitHub performs the GitHub side of the device flow
type GitHub struct {
	oauthURL string
	apiURL   string
	scopes   []string
	interval time.Duration
	attempts int
	client   *http.Client
	// wait blocks for d or until ctx is done
	wait func(ctx context.Context, d time.Duration) error
}

// NewGitHub creates a GitHub device-flow client
func NewGitHub(opts GitHubOptions) *GitHub {
	g := &GitHub{
		oauthURL: strings.TrimRight(opts.OAuthURL, "/"),
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		scopes:   strings.Fields(opts.Scope),
		interval: opts.PollInterval,
		attempts: opts.PollAttempts,
		client:   opts.HTTPClient,
		wait:     sleep,
	}
	if g.attempts < 1 {
		g.attempts = DefaultPollAttempts
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: 30 * time.Second}
	}
	return g
}

func (g *GitHub) oauthConfig(clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   g.scopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: g.oauthURL + "/device/code",
			TokenURL:      g.oauthURL + "/oauth/access_token",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// RequestDeviceCode starts a device flow for clientID. Cancelling ctx
// aborts the request and returns ctx's error.
func (g *GitHub) RequestDeviceCode(ctx context.Context, clientID string) (*models.DeviceCodeGrant, error) {
	hc := *g.client
	hc.Transport = contextTransport{ctx: ctx, base: g.client.Transport}

	resp, err := g.oauthConfig(clientID).DeviceAuth(context.WithValue(ctx, oauth2.HTTPClient, &hc))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DeviceCodeError{Err: err}
	}
	if resp.DeviceCode == "" || resp.UserCode == "" {
		return nil, &DeviceCodeError{Err: errors.New("response carries no device code")}
	}

	return &models.DeviceCodeGrant{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
	}, nil
}

// PollAccessToken polls the token endpoint until the user approves the
// device code, GitHub reports a terminal error, or the attempts run out.
// Each attempt is preceded by the fixed poll interval.
func (g *GitHub) PollAccessToken(ctx context.Context, clientID, deviceCode string) (string, error) {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := g.wait(ctx, g.interval); err != nil {
			return "", err
		}

		result, err := g.pollOnce(ctx, clientID, deviceCode)
		if err != nil {
			return "", err
		}

		switch {
		case result.Error == errAuthorizationPending:
			continue
		case result.Error != "":
			return "", &AuthorizationError{Code: result.Error, Description: result.ErrorDescription}
		case result.AccessToken != "":
			return result.AccessToken, nil
		}
	}

	return "", ErrTimeout
}

type tokenPollResult struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (g *GitHub) pollOnce(ctx context.Context, clientID, deviceCode string) (*tokenPollResult, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":   clientID,
		"device_code": deviceCode,
		"grant_type":  deviceGrantType,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.oauthURL+"/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll access token: %w", err)
	}
	defer resp.Body.Close()

	var result tokenPollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode access token response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &result, nil
}

// FetchIdentity returns the login of the user owning accessToken
func (g *GitHub) FetchIdentity(ctx context.Context, accessToken string) (string, error) {
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, g.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/user", nil)
	if err != nil {
		return "", &IdentityFetchError{Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", &IdentityFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &IdentityFetchError{Status: resp.StatusCode}
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", &IdentityFetchError{Status: resp.StatusCode, Err: err}
	}
	if user.Login == "" {
		return "", &IdentityFetchError{Status: resp.StatusCode, Err: errors.New("response carries no login")}
	}

	return user.Login, nil
}

// contextTransport sends every request under ctx. oauth2's DeviceAuth
// builds its request without one.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
