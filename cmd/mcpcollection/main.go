package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mcpcollection/mcpcollection/internal/api"
	"github.com/mcpcollection/mcpcollection/internal/app"
	"github.com/mcpcollection/mcpcollection/internal/auth"
	"github.com/mcpcollection/mcpcollection/internal/config"
	"github.com/mcpcollection/mcpcollection/internal/database"
	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/mcpserver"
	"github.com/mcpcollection/mcpcollection/internal/registry"
	"github.com/mcpcollection/mcpcollection/internal/scheduler"
	"github.com/mcpcollection/mcpcollection/internal/tokenstore"
	"github.com/mcpcollection/mcpcollection/internal/web"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Println(err)
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "mcpcollection failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.SlogLogger) error {
	ctx := context.Background()
	logger.Info(ctx, "mcpcollection starting", "version", version)

	checks := map[string]api.HealthCheck{}

	// Session storage: Postgres when configured, a local file otherwise
	var store tokenstore.Store
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		store = tokenstore.NewPostgresStore(db)
		checks["database"] = db.Health
		logger.Info(ctx, "database connected")
	} else {
		store = tokenstore.NewFileStore(cfg.SessionFile)
		logger.Info(ctx, "using session file", "path", cfg.SessionFile)
	}

	reg := registry.New(cfg.RegistryURL, cfg.RequestTimeout)
	checks["registry"] = func(ctx context.Context) error {
		_, err := reg.Health(ctx)
		return err
	}

	github := auth.NewGitHub(auth.GitHubOptions{
		OAuthURL:     cfg.GitHubOAuthURL,
		APIURL:       cfg.GitHubAPIURL,
		Scope:        cfg.GitHubScope,
		PollInterval: cfg.PollInterval,
		PollAttempts: cfg.PollAttempts,
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
	})

	authenticator := auth.NewAuthenticator(reg, github, store, logger)
	if _, err := authenticator.Restore(ctx); err != nil {
		logger.Warn(ctx, "could not restore session", "error", err)
	}

	flows := auth.NewFlows(authenticator, logger)
	defer flows.Close()

	application := app.New(reg, authenticator, logger)

	// Start scheduler in background
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	loadCatalog(schedCtx, application, cfg.RefreshInterval, logger)

	// Initialize API
	apiHandler := api.New(application, flows, authenticator, checks)

	// Initialize web UI
	webHandler, err := web.New(application, flows, authenticator, logger)
	if err != nil {
		return fmt.Errorf("initialize web handler: %w", err)
	}

	// Setup router
	r := chi.NewRouter()
	r.Mount("/api", apiHandler.Router())
	if cfg.EnableMCP {
		mcpLogger := logger.Slog().With("component", "mcp")
		r.Handle("/mcp", mcpserver.Handler(mcpserver.NewServer(application.Catalog(), version, mcpLogger), mcpLogger))
		logger.Info(ctx, "MCP endpoint enabled", "path", "/mcp")
	}
	r.Mount("/", webHandler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info(ctx, "shutdown signal received, stopping")
		schedCancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "shutdown incomplete", "error", err)
		}
	}()

	logger.Info(ctx, "mcpcollection listening", "addr", cfg.HTTPAddr, "registry", reg.BaseURL(), "refresh_interval", cfg.RefreshInterval.String())

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info(ctx, "mcpcollection stopped")
	return nil
}

// loadCatalog fills the catalog. With a refresh interval the scheduler does
// the first load and keeps refreshing until ctx is done; without one the
// catalog is loaded once. The returned channel closes when loading stops.
func loadCatalog(ctx context.Context, refresher scheduler.Refresher, interval time.Duration, logger logging.Logger) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		defer close(done)
		if _, err := refresher.Refresh(ctx); err != nil {
			logger.Warn(ctx, "initial catalog load failed", "error", err)
		}
		return done
	}

	sched := scheduler.New(refresher, interval, logger)
	go func() {
		defer close(done)
		if err := sched.Start(ctx); err != nil {
			logger.Error(ctx, "scheduler error", "error", err)
		}
	}()
	return done
}
