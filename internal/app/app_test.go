package app

import (
	"context"
	"errors"
	"testing"

	"github.com/mcpcollection/mcpcollection/internal/descriptor"
	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	list       *models.ServerList
	listErr    error
	listCalls  int
	publishErr error
	published  []*models.Descriptor
	gotToken   string
}

func (f *fakeRegistry) ListServers(context.Context) (*models.ServerList, error) {
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeRegistry) Publish(_ context.Context, tok string, d *models.Descriptor) error {
	f.gotToken = tok
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, d)
	return nil
}

type staticSessions struct{ s *models.Session }

func (s staticSessions) Session() *models.Session { return s.s }

func loggedIn() staticSessions {
	return staticSessions{&models.Session{Token: "reg-token", Username: "octocat"}}
}

func form() descriptor.Form {
	return descriptor.Form{
		Name: "acme/tool", Title: "Tool", Description: "d", Version: "1.0.0",
		Type: "remote", RemoteType: "sse", URL: "https://x",
	}
}

func listing(names ...string) *models.ServerList {
	l := &models.ServerList{Servers: []models.ServerResponse{}}
	for _, n := range names {
		l.Servers = append(l.Servers, models.ServerResponse{Server: models.ServerEntry{
			Name: n, Title: n, Remotes: []models.Remote{{Type: "streamable-http", URL: "https://" + n}},
		}})
	}
	return l
}

func TestRefresh(t *testing.T) {
	reg := &fakeRegistry{list: listing("a", "b")}
	a := New(reg, staticSessions{}, logging.Discard())

	_, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Catalog().All(), 2)

	reg.list, reg.listErr = nil, errors.New("down")
	_, err = a.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, a.Catalog().All(), 2, "failed refresh keeps the previous catalog")
}

func TestSearch_SetsActiveQuery(t *testing.T) {
	a := New(&fakeRegistry{list: listing("acme/weather", "acme/files")}, staticSessions{}, logging.Discard())
	_, err := a.Refresh(context.Background())
	require.NoError(t, err)

	got := a.Search("WEATHER")
	require.Len(t, got, 1)
	assert.Equal(t, "acme/weather", got[0].Server.Name)
	assert.Equal(t, "WEATHER", a.Catalog().Query())

	_, err = a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Catalog().Filtered(), 1, "refresh re-applies the active query")
}

func TestBuildDraft(t *testing.T) {
	a := New(&fakeRegistry{}, staticSessions{}, logging.Discard())

	d, err := a.BuildDraft(form())
	require.NoError(t, err)
	assert.Same(t, d, a.Draft())

	bad := form()
	bad.Version = ""
	_, err = a.BuildDraft(bad)
	var vErr *descriptor.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Same(t, d, a.Draft(), "validation errors have no side effects")

	a.DiscardDraft()
	assert.Nil(t, a.Draft())
}

func TestPublish_Preconditions(t *testing.T) {
	a := New(&fakeRegistry{}, staticSessions{}, logging.Discard())
	_, err := a.BuildDraft(form())
	require.NoError(t, err)

	_, err = a.Publish(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	a = New(&fakeRegistry{}, loggedIn(), logging.Discard())
	_, err = a.Publish(context.Background())
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestPublish_FailureKeepsDraft(t *testing.T) {
	boom := errors.New("forbidden")
	reg := &fakeRegistry{publishErr: boom}
	a := New(reg, loggedIn(), logging.Discard())
	d, err := a.BuildDraft(form())
	require.NoError(t, err)

	_, err = a.Publish(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Same(t, d, a.Draft())
	assert.Equal(t, 0, reg.listCalls)

	reg.publishErr = nil
	reg.list = listing("acme/tool")
	published, err := a.Publish(context.Background())
	require.NoError(t, err)
	assert.Same(t, d, published)
	assert.Equal(t, "reg-token", reg.gotToken)
	assert.Nil(t, a.Draft())
	assert.Equal(t, 1, reg.listCalls)
	assert.Len(t, a.Catalog().All(), 1)
}

func TestPublish_RefreshFailureIsNotAPublishFailure(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("down")}
	a := New(reg, loggedIn(), logging.Discard())
	_, err := a.BuildDraft(form())
	require.NoError(t, err)

	_, err = a.Publish(context.Background())
	assert.NoError(t, err)
	assert.Len(t, reg.published, 1)
}

func TestIntegration(t *testing.T) {
	a := New(&fakeRegistry{list: listing("acme/x")}, staticSessions{}, logging.Discard())
	_, err := a.Refresh(context.Background())
	require.NoError(t, err)

	cfg, snippet, err := a.Integration("acme/x")
	require.NoError(t, err)
	assert.Equal(t, "sse", cfg.Transport)
	assert.Contains(t, snippet, `"transport": "sse"`)

	_, _, err = a.Integration("missing")
	assert.ErrorIs(t, err, ErrServerNotFound)
}
