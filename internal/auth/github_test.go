package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenEndpoint answers the nth poll (1-based) with respond(n)
func tokenEndpoint(t *testing.T, calls *atomic.Int32, respond func(n int) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client-1", body["client_id"])
		assert.Equal(t, "dev-1", body["device_code"])
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", body["grant_type"])
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, respond(n))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHub(srv *httptest.Server, attempts int) (*GitHub, *[]time.Duration) {
	g := NewGitHub(GitHubOptions{
		OAuthURL:     srv.URL + "/login",
		APIURL:       srv.URL + "/api",
		Scope:        "read:org read:user",
		PollInterval: 5 * time.Second,
		PollAttempts: attempts,
		HTTPClient:   srv.Client(),
	})
	var waits []time.Duration
	g.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return g, &waits
}

func TestPollAccessToken_PendingThenToken(t *testing.T) {
	for _, k := range []int{0, 1, 7, 59} {
		var calls atomic.Int32
		srv := tokenEndpoint(t, &calls, func(n int) string {
			if n <= k {
				return `{"error":"authorization_pending"}`
			}
			return `{"access_token":"gho_abc","token_type":"bearer"}`
		})
		g, waits := newTestGitHub(srv, 0)

		tok, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")
		require.NoError(t, err)
		assert.Equal(t, "gho_abc", tok)
		assert.EqualValues(t, k+1, calls.Load(), "k=%d", k)
		assert.Len(t, *waits, k+1)
	}
}

func TestPollAccessToken_TimesOutAfterExactlySixtyAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(int) string {
		return `{"error":"authorization_pending"}`
	})
	g, waits := newTestGitHub(srv, 0)

	_, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 60, calls.Load())
	require.Len(t, *waits, 60)
	for _, d := range *waits {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestPollAccessToken_TerminalErrorStopsPolling(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(n int) string {
		if n == 3 {
			return `{"error":"expired_token","error_description":"The device code has expired."}`
		}
		return `{"error":"authorization_pending"}`
	})
	g, _ := newTestGitHub(srv, 0)

	_, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")

	var authErr *AuthorizationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "expired_token", authErr.Code)
	assert.EqualError(t, err, "github authorization failed: expired_token")
	assert.EqualValues(t, 3, calls.Load())
}

func TestPollAccessToken_EmptyResponseKeepsPolling(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(n int) string {
		if n < 3 {
			return `{}`
		}
		return `{"access_token":"gho_abc"}`
	})
	g, _ := newTestGitHub(srv, 0)

	tok, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "gho_abc", tok)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPollAccessToken_CancelBetweenAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(int) string {
		return `{"error":"authorization_pending"}`
	})
	g, _ := newTestGitHub(srv, 0)

	ctx, cancel := context.WithCancel(context.Background())
	waits := 0
	g.wait = func(ctx context.Context, d time.Duration) error {
		waits++
		if waits == 3 {
			cancel()
		}
		return ctx.Err()
	}

	_, err := g.PollAccessToken(ctx, "client-1", "dev-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 2, calls.Load())
}

func TestPollAccessToken_ConfiguredAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(int) string {
		return `{"error":"authorization_pending"}`
	})
	g, _ := newTestGitHub(srv, 4)

	_, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 4, calls.Load())
}

func TestPollAccessToken_UndecodableResponse(t *testing.T) {
	var calls atomic.Int32
	srv := tokenEndpoint(t, &calls, func(int) string { return `<html>` })
	g, _ := newTestGitHub(srv, 0)

	_, err := g.PollAccessToken(context.Background(), "client-1", "dev-1")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRequestDeviceCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/device/code", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "read:org read:user", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"device_code":"dev-1","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":5}`)
	}))
	t.Cleanup(srv.Close)
	g, _ := newTestGitHub(srv, 0)

	grant, err := g.RequestDeviceCode(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", grant.DeviceCode)
	assert.Equal(t, "ABCD-1234", grant.UserCode)
	assert.Equal(t, "https://github.com/login/device", grant.VerificationURI)
}

func TestRequestDeviceCode_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized_client"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	g, _ := newTestGitHub(srv, 0)

	_, err := g.RequestDeviceCode(context.Background(), "client-1")
	var dcErr *DeviceCodeError
	assert.True(t, errors.As(err, &dcErr))
}

func TestRequestDeviceCode_CancelAbortsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			_, _ = io.WriteString(w, `{"device_code":"dev-1","user_code":"ABCD-1234"}`)
		}
	}))
	t.Cleanup(srv.Close)
	g, _ := newTestGitHub(srv, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := g.RequestDeviceCode(ctx, "client-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer gho_abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"login":"octocat","id":1}`)
	}))
	t.Cleanup(srv.Close)
	g, _ := newTestGitHub(srv, 0)

	login, err := g.FetchIdentity(context.Background(), "gho_abc")
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)

	_, err = g.FetchIdentity(context.Background(), "gho_wrong")
	var idErr *IdentityFetchError
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, http.StatusUnauthorized, idErr.Status)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}
