package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mcpcollection/mcpcollection/internal/app"
	"github.com/mcpcollection/mcpcollection/internal/auth"
	"github.com/mcpcollection/mcpcollection/internal/descriptor"
	"github.com/mcpcollection/mcpcollection/internal/models"
	"github.com/mcpcollection/mcpcollection/internal/registry"
)

// Logins runs device-flow logins in the background
type Logins interface {
	Start(ctx context.Context) auth.FlowStatus
	Get(id uuid.UUID) (auth.FlowStatus, error)
	Cancel(id uuid.UUID) error
}

// Accounts exposes and ends the current session
type Accounts interface {
	Session() *models.Session
	Logout(ctx context.Context) error
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// API handles HTTP API requests
type API struct {
	app      *app.App
	logins   Logins
	accounts Accounts
	checks   map[string]HealthCheck
}

// New creates a new API handler
func New(a *app.App, logins Logins, accounts Accounts, checks map[string]HealthCheck) *API {
	return &API{app: a, logins: logins, accounts: accounts, checks: checks}
}

// Router creates the API router
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Get("/servers", a.listServers)
	r.Get("/catalog", a.searchCatalog)
	r.Get("/stats", a.getStats)
	r.Get("/integration", a.getIntegration)
	r.Get("/health", a.health)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", a.getSession)
		r.Post("/login", a.startLogin)
		r.Get("/login/{id}", a.getLogin)
		r.Delete("/login/{id}", a.cancelLogin)
		r.Post("/logout", a.logout)
	})

	r.Post("/descriptor", a.buildDescriptor)
	r.Get("/descriptor", a.getDescriptor)
	r.Delete("/descriptor", a.discardDescriptor)
	r.Post("/publish", a.publish)

	return r
}

// Response wraps API responses
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Meta  *Meta       `json:"meta,omitempty"`
	Error *ErrorMsg   `json:"error,omitempty"`
}

// Meta describes a catalog view
type Meta struct {
	Total int    `json:"total"`
	Query string `json:"query,omitempty"`
	Time  string `json:"timestamp"`
}

// ErrorMsg represents an error response
type ErrorMsg struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// SessionInfo is the public view of the session; the token never leaves
// the server
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// IntegrationInfo is the client configuration for one server
type IntegrationInfo struct {
	Config  descriptor.ClientConfig `json:"config"`
	Snippet string                  `json:"snippet"`
}

// listServers handles GET /servers. It forwards the registry listing
// byte for byte and refreshes the catalog as a side effect.
func (a *API) listServers(w http.ResponseWriter, r *http.Request) {
	list, err := a.app.Refresh(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	if len(list.Raw) == 0 {
		respondJSON(w, http.StatusOK, list)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(list.Raw)
}

// searchCatalog handles GET /catalog?q=query
func (a *API) searchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	servers := a.app.Catalog().Search(query)

	respondJSON(w, http.StatusOK, Response{
		Data: servers,
		Meta: &Meta{
			Total: len(servers),
			Query: query,
			Time:  time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// getStats handles GET /stats
func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, Response{Data: a.app.Catalog().Stats()})
}

// getIntegration handles GET /integration?name=server
func (a *API) getIntegration(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing_name", "Query parameter 'name' is required")
		return
	}

	cfg, snippet, err := a.app.Integration(name)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{Data: IntegrationInfo{Config: cfg, Snippet: snippet}})
}

// health handles GET /health
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	result := map[string]string{}
	for name, check := range a.checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}

	if status != http.StatusOK {
		respondJSON(w, status, Response{
			Data:  result,
			Error: &ErrorMsg{Code: "unhealthy", Message: "One or more dependencies are unavailable"},
		})
		return
	}
	respondJSON(w, status, Response{Data: result})
}

// getSession handles GET /auth/session
func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, Response{Data: sessionInfo(a.accounts.Session())})
}

// startLogin handles POST /auth/login
func (a *API) startLogin(w http.ResponseWriter, r *http.Request) {
	status := a.logins.Start(r.Context())
	respondJSON(w, http.StatusAccepted, Response{Data: status})
}

// getLogin handles GET /auth/login/{id}
func (a *API) getLogin(w http.ResponseWriter, r *http.Request) {
	id, ok := flowID(w, r)
	if !ok {
		return
	}

	status, err := a.logins.Get(id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Data: status})
}

// cancelLogin handles DELETE /auth/login/{id}
func (a *API) cancelLogin(w http.ResponseWriter, r *http.Request) {
	id, ok := flowID(w, r)
	if !ok {
		return
	}

	if err := a.logins.Cancel(id); err != nil {
		respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logout handles POST /auth/logout
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildDescriptor handles POST /descriptor
func (a *API) buildDescriptor(w http.ResponseWriter, r *http.Request) {
	var form descriptor.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON form")
		return
	}

	d, err := a.app.BuildDraft(form)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Data: d})
}

// getDescriptor handles GET /descriptor
func (a *API) getDescriptor(w http.ResponseWriter, r *http.Request) {
	d := a.app.Draft()
	if d == nil {
		respondFailure(w, app.ErrNoDraft)
		return
	}
	respondJSON(w, http.StatusOK, Response{Data: d})
}

// discardDescriptor handles DELETE /descriptor
func (a *API) discardDescriptor(w http.ResponseWriter, r *http.Request) {
	a.app.DiscardDraft()
	w.WriteHeader(http.StatusNoContent)
}

// publish handles POST /publish
func (a *API) publish(w http.ResponseWriter, r *http.Request) {
	d, err := a.app.Publish(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Data: d})
}

func sessionInfo(s *models.Session) SessionInfo {
	if !s.Valid() {
		return SessionInfo{}
	}
	return SessionInfo{Authenticated: true, Username: s.Username}
}

// flowID parses the {id} URL parameter, answering 400 when it is invalid
func flowID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid login flow ID")
		return uuid.Nil, false
	}
	return id, true
}

// respondFailure maps an application error to its HTTP status
func respondFailure(w http.ResponseWriter, err error) {
	var (
		vErr   *descriptor.ValidationError
		resErr *registry.ResponseError
		netErr *registry.NetworkError
	)

	switch {
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, Response{Error: &ErrorMsg{
			Code:    "validation_failed",
			Message: vErr.Error(),
			Fields:  vErr.Fields,
		}})
	case errors.Is(err, app.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "not_authenticated", err.Error())
	case errors.Is(err, app.ErrNoDraft):
		respondError(w, http.StatusConflict, "no_draft", err.Error())
	case errors.Is(err, app.ErrServerNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Server not found")
	case errors.Is(err, auth.ErrFlowNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Login flow not found")
	case errors.As(err, &resErr), errors.As(err, &netErr):
		respondError(w, http.StatusBadGateway, "registry_error", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, Response{
		Error: &ErrorMsg{
			Code:    code,
			Message: message,
		},
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
