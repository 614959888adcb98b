package web

import (
	"html/template"
	"strings"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

var funcs = template.FuncMap{
	"icon":      serverIcon,
	"transport": transportLabel,
	"date":      formatDate,
	"orDefault": orDefault,
}

var icons = []struct {
	keywords []string
	icon     string
}{
	{[]string{"calculator"}, "🔢"},
	{[]string{"weather"}, "🌤️"},
	{[]string{"file"}, "📁"},
	{[]string{"database", "sql"}, "🗄️"},
	{[]string{"api"}, "🔌"},
	{[]string{"git"}, "🔧"},
	{[]string{"docker"}, "🐳"},
	{[]string{"kubernetes", "k8s"}, "☸️"},
	{[]string{"analytics"}, "📊"},
	{[]string{"search"}, "🔍"},
}

// serverIcon picks a card icon from keywords in the server name
func serverIcon(name string) string {
	name = strings.ToLower(name)
	for _, candidate := range icons {
		for _, kw := range candidate.keywords {
			if strings.Contains(name, kw) {
				return candidate.icon
			}
		}
	}
	return "⚙️"
}

// transportLabel is the badge text for how a server is reached; empty
// when it declares no endpoint
func transportLabel(s models.ServerEntry) string {
	switch ep := models.EndpointOf(s).(type) {
	case models.RemoteEndpoint:
		return orDefault(ep.Remote.Type, "remote")
	case models.PackageEndpoint:
		return orDefault(ep.Package.Transport.Type, "stdio")
	default:
		return ""
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
