// Package mcpserver exposes the catalog to MCP clients over streamable HTTP.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/catalog"
	"github.com/mcpcollection/mcpcollection/internal/descriptor"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const maxResults = 50

// SearchParams are the arguments of search_servers
type SearchParams struct {
	Query string `json:"query,omitempty" jsonschema:"Text matched against server name, title and description; empty lists everything"`
}

// IntegrationParams are the arguments of get_integration
type IntegrationParams struct {
	Name string `json:"name" jsonschema:"Exact server name, for example io.github.user/weather"`
}

// Tools answers MCP tool calls from the catalog
type Tools struct {
	catalog *catalog.Catalog
}

// NewServer creates an MCP server with the catalog tools registered
func NewServer(c *catalog.Catalog, version string, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mcpcollection",
		Version: version,
	}, &mcp.ServerOptions{Logger: logger})

	tools := &Tools{catalog: c}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_servers",
		Description: "Search the MCP server catalog by name, title or description.",
	}, tools.SearchServers)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_integration",
		Description: "Get the client configuration JSON for one catalog server.",
	}, tools.GetIntegration)

	return server
}

// Handler serves server over streamable HTTP
func Handler(server *mcp.Server, logger *slog.Logger) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		Logger:         logger,
		SessionTimeout: 30 * time.Minute,
	})
}

// SearchServers lists catalog entries matching the query. The active
// search of the web UI is not changed.
func (t *Tools) SearchServers(ctx context.Context, req *mcp.CallToolRequest, params *SearchParams) (*mcp.CallToolResult, any, error) {
	matches := t.catalog.Search(params.Query)
	if len(matches) == 0 {
		return textResult("No servers found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d servers:\n\n", len(matches))
	for i, item := range matches {
		if i == maxResults {
			fmt.Fprintf(&b, "... and %d more\n", len(matches)-maxResults)
			break
		}
		s := item.Server
		fmt.Fprintf(&b, "- %s (%s) v%s [%s]", s.Name, orDefault(s.Title, "Untitled Server"), orDefault(s.Version, "1.0.0"), item.Status())
		if s.Description != "" {
			fmt.Fprintf(&b, ": %s", s.Description)
		}
		b.WriteString("\n")
	}

	return textResult(b.String()), nil, nil
}

// GetIntegration renders the client configuration of one server
func (t *Tools) GetIntegration(ctx context.Context, req *mcp.CallToolRequest, params *IntegrationParams) (*mcp.CallToolResult, any, error) {
	item, ok := t.catalog.Find(params.Name)
	if !ok {
		res := textResult(fmt.Sprintf("Server %q not found.", params.Name))
		res.IsError = true
		return res, nil, nil
	}

	snippet, err := descriptor.Snippet(item.Server)
	if err != nil {
		return nil, nil, err
	}
	return textResult(snippet), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
