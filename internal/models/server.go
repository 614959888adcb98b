package models

import (
	"encoding/json"

	apiv0 "github.com/modelcontextprotocol/registry/pkg/api/v0"
	"github.com/modelcontextprotocol/registry/pkg/model"
)

// OfficialMetaKey is the _meta key under which the registry publishes its own metadata
const OfficialMetaKey = "io.modelcontextprotocol.registry/official"

// StatusActive is the registry status of a server that is currently listed
const StatusActive = "active"

// ServerEntry represents an MCP server as published in the registry
type ServerEntry = apiv0.ServerJSON

// Remote is a network endpoint of a server
type Remote = model.Transport

// Package is an installable distribution of a server
type Package = model.Package

// Transport describes how a packaged server talks to its client
type Transport = model.Transport

// OfficialMeta is the registry-managed metadata of a server
type OfficialMeta = apiv0.RegistryExtensions

// ResponseMeta wraps the namespaced _meta object of a listing item
type ResponseMeta struct {
	Official *apiv0.RegistryExtensions `json:"io.modelcontextprotocol.registry/official,omitempty"`
}

// ServerResponse is one item of a registry listing
type ServerResponse struct {
	Server apiv0.ServerJSON `json:"server"`
	Meta   ResponseMeta     `json:"_meta"`
}

// Status returns the registry status or "unknown" when absent
func (r ServerResponse) Status() string {
	if r.Meta.Official == nil || r.Meta.Official.Status == "" {
		return "unknown"
	}
	return string(r.Meta.Official.Status)
}

// Active reports whether the registry lists the server as active
func (r ServerResponse) Active() bool {
	return r.Status() == StatusActive
}

// ServerList is the registry listing payload. Raw holds the listing
// exactly as the registry sent it, when it came from the registry.
type ServerList struct {
	Servers  []ServerResponse `json:"servers"`
	Metadata apiv0.Metadata   `json:"metadata"`
	Raw      json.RawMessage  `json:"-"`
}
