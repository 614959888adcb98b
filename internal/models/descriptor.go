package models

// ServerSchemaURL is the JSON schema every published server.json refers to
const ServerSchemaURL = "https://static.modelcontextprotocol.io/schemas/2025-09-29/server.schema.json"

// Descriptor is a server.json document ready for publishing. Exactly one
// of Remotes and Packages is set.
type Descriptor struct {
	Schema      string    `json:"$schema"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Remotes     []Remote  `json:"remotes,omitempty"`
	Packages    []Package `json:"packages,omitempty"`
}
