// Package descriptor turns form input into a publishable server.json and
// servers into client integration snippets.
package descriptor

import (
	"strings"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

const (
	// TypeRemote selects a network-reachable server
	TypeRemote = "remote"

	defaultRemoteType    = "streamable-http"
	defaultTransportType = "stdio"
)

// Form is the raw submit-form input
type Form struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
	// Type is "remote" or a package registry such as npm, pypi or nuget
	Type string `json:"type"`

	RemoteType string `json:"remoteType"`
	URL        string `json:"url"`

	PackageIdentifier string `json:"packageIdentifier"`
	PackageVersion    string `json:"packageVersion"`
	TransportType     string `json:"transportType"`
}

// ValidationError lists the form fields that are missing
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Build validates f and returns the descriptor it describes. On any
// violation nothing is built.
func Build(f Form) (*models.Descriptor, error) {
	f = trimmed(f)

	var missing []string
	require := func(field, value string) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	require("name", f.Name)
	require("title", f.Title)
	require("description", f.Description)
	require("version", f.Version)
	require("type", f.Type)
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	if f.Type == TypeRemote {
		require("url", f.URL)
	} else {
		require("packageIdentifier", f.PackageIdentifier)
		require("packageVersion", f.PackageVersion)
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	d := &models.Descriptor{
		Schema:      models.ServerSchemaURL,
		Name:        f.Name,
		Title:       f.Title,
		Description: f.Description,
		Version:     f.Version,
	}

	if f.Type == TypeRemote {
		d.Remotes = []models.Remote{{
			Type: orDefault(f.RemoteType, defaultRemoteType),
			URL:  f.URL,
		}}
		return d, nil
	}

	d.Packages = []models.Package{{
		RegistryType: f.Type,
		Identifier:   f.PackageIdentifier,
		Version:      f.PackageVersion,
		Transport:    models.Transport{Type: orDefault(f.TransportType, defaultTransportType)},
	}}
	return d, nil
}

func trimmed(f Form) Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Version = strings.TrimSpace(f.Version)
	f.Type = strings.TrimSpace(f.Type)
	f.RemoteType = strings.TrimSpace(f.RemoteType)
	f.URL = strings.TrimSpace(f.URL)
	f.PackageIdentifier = strings.TrimSpace(f.PackageIdentifier)
	f.PackageVersion = strings.TrimSpace(f.PackageVersion)
	f.TransportType = strings.TrimSpace(f.TransportType)
	return f
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
