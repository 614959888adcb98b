package descriptor

import (
	"encoding/json"
	"strings"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

// ClientConfig is one server entry of an MCP client configuration file
type ClientConfig struct {
	Name      string   `json:"name"`
	Transport string   `json:"transport"`
	URL       string   `json:"url,omitempty"`
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	Enabled   bool     `json:"enabled"`
}

// ClientFile is the whole client configuration file
type ClientFile struct {
	Servers []ClientConfig `json:"servers"`
}

// Integration returns the client configuration for s. Remotes win over
// packages. The streamable-http remote type is written as sse here only;
// published descriptors keep the original type.
func Integration(s models.ServerEntry) ClientConfig {
	cfg := ClientConfig{
		Name:    s.Title,
		Enabled: true,
	}
	if cfg.Name == "" {
		cfg.Name = "MCP Server"
	}

	switch ep := models.EndpointOf(s).(type) {
	case models.RemoteEndpoint:
		cfg.Transport = ep.Remote.Type
		if cfg.Transport == "" || cfg.Transport == "streamable-http" {
			cfg.Transport = "sse"
		}
		cfg.URL = ep.Remote.URL

	case models.PackageEndpoint:
		pkg := ep.Package
		cfg.Transport = orDefault(pkg.Transport.Type, defaultTransportType)
		cfg.Command, cfg.Args = launchCommand(s.Name, pkg)

	default:
		cfg.Transport = defaultTransportType
		cfg.Command = "python"
		cfg.Args = []string{"path/to/server.py"}
	}

	return cfg
}

// launchCommand derives how to start a packaged server locally
func launchCommand(serverName string, pkg models.Package) (string, []string) {
	identifier := orDefault(pkg.Identifier, "package-name")

	switch pkg.RegistryType {
	case "npm":
		return "npx", []string{"-y", identifier}
	case "pypi":
		return "python", []string{"-m", strings.ReplaceAll(identifier, "-", "_")}
	default:
		base := serverName[strings.LastIndex(serverName, "/")+1:]
		return "python", []string{"path/to/" + base + ".py"}
	}
}

// Snippet renders the client configuration file for s as indented JSON
func Snippet(s models.ServerEntry) (string, error) {
	data, err := json.MarshalIndent(ClientFile{Servers: []ClientConfig{Integration(s)}}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
