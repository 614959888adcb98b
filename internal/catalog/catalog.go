// Package catalog holds the registry listing and its search-filtered view.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

// Stats summarises the full catalog
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Catalog is the full server list plus the subsequence matching the
// current query. Both are replaced wholesale, never edited in place.
type Catalog struct {
	mu       sync.RWMutex
	all      []models.ServerResponse
	filtered []models.ServerResponse
	query    string
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		all:      []models.ServerResponse{},
		filtered: []models.ServerResponse{},
	}
}

// SetCatalog replaces the full list and re-applies the current query
func (c *Catalog) SetCatalog(entries []models.ServerResponse) {
	all := make([]models.ServerResponse, len(entries))
	copy(all, entries)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = all
	c.filtered = Filter(all, c.query)
}

// SetQuery changes the query and recomputes the filtered view without
// re-fetching
func (c *Catalog) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.filtered = Filter(c.all, query)
}

// Query returns the active query
func (c *Catalog) Query() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// All returns a copy of the full list
func (c *Catalog) All() []models.ServerResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.all)
}

// Filtered returns a copy of the entries matching the active query
func (c *Catalog) Filtered() []models.ServerResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.filtered)
}

// Search filters the full list with query without touching the active one
func (c *Catalog) Search(query string) []models.ServerResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.all, query)
}

// Find returns the entry named name
func (c *Catalog) Find(name string) (models.ServerResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.all {
		if item.Server.Name == name {
			return item, true
		}
	}
	return models.ServerResponse{}, false
}

// Stats counts all and active servers
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := Stats{Total: len(c.all)}
	for _, item := range c.all {
		if item.Active() {
			stats.Active++
		}
	}
	return stats
}

// Filter returns the entries whose name, title or description contains
// query, ignoring case. A blank query matches everything. Input order is
// kept and the input is never modified.
func Filter(entries []models.ServerResponse, query string) []models.ServerResponse {
	out := make([]models.ServerResponse, 0, len(entries))
	if strings.TrimSpace(query) == "" {
		return append(out, entries...)
	}

	q := strings.ToLower(query)
	for _, item := range entries {
		if matches(item.Server, q) {
			out = append(out, item)
		}
	}
	return out
}

func matches(s models.ServerEntry, lowerQuery string) bool {
	for _, field := range []string{s.Name, s.Title, s.Description} {
		if strings.Contains(strings.ToLower(field), lowerQuery) {
			return true
		}
	}
	return false
}
