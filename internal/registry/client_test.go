package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v0/", 5*time.Second)
}

const listing = `{"servers":[
	{"server":{"name":"acme/calc","title":"Calc","version":"1.0.0","websiteUrl":"https://acme.example",
	  "repository":{"url":"https://github.com/acme/calc","source":"github"},
	  "remotes":[{"type":"sse","url":"https://calc.example","headers":[{"name":"X-Api-Key","isRequired":true}]}]},
	 "_meta":{"io.modelcontextprotocol.registry/official":{"status":"active","publishedAt":"2025-09-29T10:00:00Z","isLatest":true,"serverId":"b7f1"}}},
	{"server":{"name":"acme/files","packages":[{"registryType":"npm","identifier":"@acme/files","transport":{"type":"stdio"}}]}}
],"metadata":{"nextCursor":"acme/files:1.0.0","count":2}}`

func TestListServers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v0/servers", r.URL.Path)
		_, _ = io.WriteString(w, listing)
	})

	list, err := c.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Servers, 2)
	assert.Equal(t, "acme/files:1.0.0", list.Metadata.NextCursor)

	first := list.Servers[0]
	assert.Equal(t, "acme/calc", first.Server.Name)
	assert.Equal(t, "https://acme.example", first.Server.WebsiteURL)
	assert.Equal(t, "active", first.Status())
	assert.True(t, first.Meta.Official.IsLatest)
	assert.Equal(t, 2025, first.Meta.Official.PublishedAt.Year())
	require.Len(t, first.Server.Remotes, 1)
	assert.Len(t, first.Server.Remotes[0].Headers, 1)
	ep, ok := models.EndpointOf(first.Server).(models.RemoteEndpoint)
	require.True(t, ok)
	assert.Equal(t, "https://calc.example", ep.Remote.URL)

	second := list.Servers[1]
	assert.Equal(t, "unknown", second.Status())
	assert.Equal(t, "@acme/files", second.Server.Packages[0].Identifier)
}

func TestListServers_KeepsRawBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, listing)
	})

	list, err := c.ListServers(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, listing, string(list.Raw))
}

func TestListServers_BadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"servers":"nope"}`)
	})

	_, err := c.ListServers(context.Background())
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestListServers_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	list, err := c.ListServers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list.Servers)
	assert.Empty(t, list.Servers)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ok","github_client_id":"Iv1.abc"}`)
	})

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Iv1.abc", h.GitHubClientID)
}

func TestExchangeGitHubToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/auth/github-at", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gho_123", body["github_token"])

		_, _ = io.WriteString(w, `{"registry_token":"reg-token","expires_at":1}`)
	})

	tok, err := c.ExchangeGitHubToken(context.Background(), "gho_123")
	require.NoError(t, err)
	assert.Equal(t, "reg-token", tok)
}

func TestPublish_SendsBearer(t *testing.T) {
	var got models.Descriptor
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/publish", r.URL.Path)
		assert.Equal(t, "Bearer reg-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	d := &models.Descriptor{Schema: models.ServerSchemaURL, Name: "acme/tool", Version: "1.0.0"}
	require.NoError(t, c.Publish(context.Background(), "reg-token", d))
	assert.Equal(t, "acme/tool", got.Name)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantErr string
	}{
		{"message field", http.StatusForbidden, `{"message":"namespace not owned"}`, "namespace not owned", "registry publish: namespace not owned"},
		{"detail field", http.StatusBadRequest, `{"title":"Bad Request","detail":"invalid version"}`, "invalid version", "registry publish: invalid version"},
		{"error field", http.StatusForbidden, `{"error":"namespace not allowed"}`, "namespace not allowed", "registry publish: namespace not allowed"},
		{"no json", http.StatusInternalServerError, `oops`, "", "registry publish: HTTP 500: Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.Publish(context.Background(), "tok", &models.Descriptor{})
			var respErr *ResponseError
			require.True(t, errors.As(err, &respErr))
			assert.Equal(t, tt.status, respErr.Status)
			assert.Equal(t, tt.wantMsg, respErr.Message)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Health(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "health", netErr.Op)
}

func TestDecodeErrorIsNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"servers":`)
	})

	_, err := c.ListServers(context.Background())
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}
