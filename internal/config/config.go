package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds all application configuration. Every option can be set with
// a command-line flag or the matching MCPCOLLECTION_* environment variable;
// flags win.
type Config struct {
	// HTTP Server
	HTTPAddr string `long:"http-addr" env:"MCPCOLLECTION_HTTP_ADDR" default:":5000" description:"address the UI and API listen on"`

	// Registry
	RegistryURL     string        `long:"registry-url" env:"MCPCOLLECTION_REGISTRY_URL" default:"http://localhost:8080/v0" description:"base URL of the registry API"`
	RefreshInterval time.Duration `long:"refresh-interval" env:"MCPCOLLECTION_REFRESH_INTERVAL" default:"0s" description:"periodic catalog refresh, 0 disables"`
	RequestTimeout  time.Duration `long:"request-timeout" env:"MCPCOLLECTION_REQUEST_TIMEOUT" default:"30s" description:"timeout of a single outbound HTTP request"`

	// GitHub device flow
	GitHubOAuthURL string        `long:"github-oauth-url" env:"MCPCOLLECTION_GITHUB_OAUTH_URL" default:"https://github.com/login" description:"base URL of the GitHub device and token endpoints"`
	GitHubAPIURL   string        `long:"github-api-url" env:"MCPCOLLECTION_GITHUB_API_URL" default:"https://api.github.com" description:"base URL of the GitHub REST API"`
	GitHubScope    string        `long:"github-scope" env:"MCPCOLLECTION_GITHUB_SCOPE" default:"read:org read:user" description:"scope requested with the device code"`
	PollInterval   time.Duration `long:"poll-interval" env:"MCPCOLLECTION_POLL_INTERVAL" default:"5s" description:"delay between token polls"`
	PollAttempts   int           `long:"poll-attempts" env:"MCPCOLLECTION_POLL_ATTEMPTS" default:"60" description:"token polls before the login times out"`

	// Session storage
	SessionFile string `long:"session-file" env:"MCPCOLLECTION_SESSION_FILE" default:".mcpcollection/session.json" description:"file holding the persisted session"`
	DatabaseURL string `long:"db-url" env:"MCPCOLLECTION_DB_URL" description:"Postgres URL; when set the session is stored there instead of the file"`

	// MCP endpoint
	EnableMCP bool `long:"enable-mcp" env:"MCPCOLLECTION_ENABLE_MCP" description:"serve the catalog as MCP tools on /mcp"`

	// Logging
	LogLevel  string `long:"log-level" env:"MCPCOLLECTION_LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"log level"`
	LogFormat string `long:"log-format" env:"MCPCOLLECTION_LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"log output format"`
}

// Load reads configuration from args and the environment
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that flag parsing cannot
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"registry-url":     c.RegistryURL,
		"github-oauth-url": c.GitHubOAuthURL,
		"github-api-url":   c.GitHubAPIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.PollAttempts < 1 {
		return fmt.Errorf("poll-attempts must be positive, got %d", c.PollAttempts)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll-interval must not be negative, got %s", c.PollInterval)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh-interval must not be negative, got %s", c.RefreshInterval)
	}
	if c.DatabaseURL == "" && c.SessionFile == "" {
		return fmt.Errorf("either session-file or db-url is required")
	}

	return nil
}

// IsHelp reports whether err is the result of a -h/--help request
func IsHelp(err error) bool {
	flagsErr, ok := err.(*flags.Error)
	return ok && flagsErr.Type == flags.ErrHelp
}
