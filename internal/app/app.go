// Package app owns the application state shared by the web UI, the JSON
// API and the MCP endpoint: the catalog, the session and the draft
// descriptor.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcpcollection/mcpcollection/internal/catalog"
	"github.com/mcpcollection/mcpcollection/internal/descriptor"
	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/models"
)

var (
	// ErrNotAuthenticated means the action needs a registry session
	ErrNotAuthenticated = errors.New("please login with GitHub first")
	// ErrNoDraft means there is no generated server.json to publish
	ErrNoDraft = errors.New("please generate server.json first")
	// ErrServerNotFound means no catalog entry has the requested name
	ErrServerNotFound = errors.New("server not found")
)

// Registry is the part of the registry API the application calls
type Registry interface {
	ListServers(ctx context.Context) (*models.ServerList, error)
	Publish(ctx context.Context, registryToken string, d *models.Descriptor) error
}

// Sessions exposes the current session
type Sessions interface {
	Session() *models.Session
}

// App is the single owner of catalog, session lookups and draft state
type App struct {
	registry Registry
	sessions Sessions
	catalog  *catalog.Catalog
	logger   logging.Logger

	mu    sync.Mutex
	draft *models.Descriptor
}

// New creates an App with an empty catalog
func New(reg Registry, sessions Sessions, logger logging.Logger) *App {
	return &App{
		registry: reg,
		sessions: sessions,
		catalog:  catalog.New(),
		logger:   logger.With("component", "app"),
	}
}

// Catalog returns the server catalog
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Session returns the current session or nil
func (a *App) Session() *models.Session {
	return a.sessions.Session()
}

// Refresh fetches the registry listing and replaces the catalog with it.
// On failure the previous catalog stays.
func (a *App) Refresh(ctx context.Context) (*models.ServerList, error) {
	list, err := a.registry.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load servers: %w", err)
	}

	a.catalog.SetCatalog(list.Servers)
	a.logger.Info(ctx, "catalog refreshed", "servers", len(list.Servers))
	return list, nil
}

// Search makes query the active search and returns the matching servers
func (a *App) Search(query string) []models.ServerResponse {
	a.catalog.SetQuery(query)
	return a.catalog.Filtered()
}

// BuildDraft validates form and keeps the result as the current draft.
// A validation error leaves the previous draft untouched.
func (a *App) BuildDraft(form descriptor.Form) (*models.Descriptor, error) {
	d, err := descriptor.Build(form)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.draft = d
	a.mu.Unlock()
	return d, nil
}

// Draft returns the current draft or nil
func (a *App) Draft() *models.Descriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draft
}

// DiscardDraft drops the current draft
func (a *App) DiscardDraft() {
	a.mu.Lock()
	a.draft = nil
	a.mu.Unlock()
}

// Publish sends the draft to the registry. A failed publish keeps the
// draft so it can be retried; a successful one drops it and refreshes the
// catalog.
func (a *App) Publish(ctx context.Context) (*models.Descriptor, error) {
	session := a.sessions.Session()
	if !session.Valid() {
		return nil, ErrNotAuthenticated
	}

	d := a.Draft()
	if d == nil {
		return nil, ErrNoDraft
	}

	if err := a.registry.Publish(ctx, session.Token, d); err != nil {
		a.logger.Warn(ctx, "publish failed", "server", d.Name, "error", err)
		return nil, fmt.Errorf("publishing failed: %w", err)
	}
	a.logger.Info(ctx, "server published", "server", d.Name, "version", d.Version, "user", session.Username)

	a.mu.Lock()
	if a.draft == d {
		a.draft = nil
	}
	a.mu.Unlock()

	if _, err := a.Refresh(ctx); err != nil {
		a.logger.Warn(ctx, "refresh after publish failed", "error", err)
	}
	return d, nil
}

// Integration returns the client configuration for the server named name
func (a *App) Integration(name string) (descriptor.ClientConfig, string, error) {
	item, ok := a.catalog.Find(name)
	if !ok {
		return descriptor.ClientConfig{}, "", ErrServerNotFound
	}

	snippet, err := descriptor.Snippet(item.Server)
	if err != nil {
		return descriptor.ClientConfig{}, "", err
	}
	return descriptor.Integration(item.Server), snippet, nil
}
