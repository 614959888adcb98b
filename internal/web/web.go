package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mcpcollection/mcpcollection/internal/app"
	"github.com/mcpcollection/mcpcollection/internal/auth"
	"github.com/mcpcollection/mcpcollection/internal/descriptor"
	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/models"
	"github.com/mcpcollection/mcpcollection/internal/registry"
)

//go:embed templates/*.html
var templateFS embed.FS

// loginRefreshSeconds is how often the login status page reloads
const loginRefreshSeconds = 3

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

// Web handles web UI requests
type Web struct {
	app       *app.App
	logins    Logins
	accounts  Accounts
	logger    logging.Logger
	templates *template.Template
}

// New creates a new web handler
func New(a *app.App, logins Logins, accounts Accounts, logger logging.Logger) (*Web, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Web{
		app:       a,
		logins:    logins,
		accounts:  accounts,
		logger:    logger.With("component", "web"),
		templates: tmpl,
	}, nil
}

// Router creates the web router
func (w *Web) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", w.home)
	r.Post("/refresh", w.refresh)
	r.Get("/servers/integration", w.integration)

	r.Get("/submit", w.submitForm)
	r.Post("/submit", w.submit)
	r.Post("/submit/publish", w.publish)
	r.Post("/submit/discard", w.discard)

	r.Post("/login", w.login)
	r.Get("/login/{id}", w.loginStatus)
	r.Post("/login/{id}/cancel", w.cancelLogin)
	r.Post("/logout", w.logout)

	return r
}

// home renders the catalog. A q parameter replaces the active search.
func (w *Web) home(wr http.ResponseWriter, r *http.Request) {
	catalog := w.app.Catalog()
	servers := catalog.Filtered()
	if r.URL.Query().Has("q") {
		servers = w.app.Search(r.URL.Query().Get("q"))
	}

	data := map[string]interface{}{
		"Query":   catalog.Query(),
		"Servers": servers,
		"Stats":   catalog.Stats(),
	}

	w.render(wr, r, http.StatusOK, "home.html", data)
}

// refresh re-fetches the catalog from the registry
func (w *Web) refresh(wr http.ResponseWriter, r *http.Request) {
	if _, err := w.app.Refresh(r.Context()); err != nil {
		w.renderError(wr, r, err)
		return
	}
	http.Redirect(wr, r, "/", http.StatusSeeOther)
}

// integration renders the client configuration for one server
func (w *Web) integration(wr http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	cfg, snippet, err := w.app.Integration(name)
	if err != nil {
		w.renderError(wr, r, err)
		return
	}

	item, _ := w.app.Catalog().Find(name)
	data := map[string]interface{}{
		"Server":  item.Server,
		"Config":  cfg,
		"Snippet": snippet,
	}

	w.render(wr, r, http.StatusOK, "integration.html", data)
}

// submitForm renders an empty form and the current draft, if any
func (w *Web) submitForm(wr http.ResponseWriter, r *http.Request) {
	w.renderSubmit(wr, r, http.StatusOK, descriptor.Form{Type: descriptor.TypeRemote}, "", "")
}

// submit builds a draft server.json from the posted form
func (w *Web) submit(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(wr, "Invalid form", http.StatusBadRequest)
		return
	}

	form := descriptor.Form{
		Name:              r.PostFormValue("name"),
		Title:             r.PostFormValue("title"),
		Description:       r.PostFormValue("description"),
		Version:           r.PostFormValue("version"),
		Type:              r.PostFormValue("type"),
		RemoteType:        r.PostFormValue("remoteType"),
		URL:               r.PostFormValue("url"),
		PackageIdentifier: r.PostFormValue("packageIdentifier"),
		PackageVersion:    r.PostFormValue("packageVersion"),
		TransportType:     r.PostFormValue("transportType"),
	}

	if _, err := w.app.BuildDraft(form); err != nil {
		w.renderSubmit(wr, r, statusFor(err), form, err.Error(), "")
		return
	}
	w.renderSubmit(wr, r, http.StatusOK, form, "", "")
}

// publish sends the draft to the registry
func (w *Web) publish(wr http.ResponseWriter, r *http.Request) {
	d, err := w.app.Publish(r.Context())
	if err != nil {
		w.renderSubmit(wr, r, statusFor(err), descriptor.Form{Type: descriptor.TypeRemote}, err.Error(), "")
		return
	}
	w.renderSubmit(wr, r, http.StatusOK, descriptor.Form{Type: descriptor.TypeRemote}, "",
		"Server "+d.Name+" published successfully!")
}

// discard drops the draft
func (w *Web) discard(wr http.ResponseWriter, r *http.Request) {
	w.app.DiscardDraft()
	http.Redirect(wr, r, "/submit", http.StatusSeeOther)
}

// login starts a device flow and sends the browser to its status page
func (w *Web) login(wr http.ResponseWriter, r *http.Request) {
	status := w.logins.Start(r.Context())
	http.Redirect(wr, r, "/login/"+status.ID.String(), http.StatusSeeOther)
}

// loginStatus renders the device code and progress of a login flow; the
// page reloads itself until the flow ends
func (w *Web) loginStatus(wr http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(wr, "Invalid login flow ID", http.StatusBadRequest)
		return
	}

	status, err := w.logins.Get(id)
	if err != nil {
		w.renderError(wr, r, err)
		return
	}

	data := map[string]interface{}{"Flow": status}
	if !status.Done {
		data["Refresh"] = loginRefreshSeconds
	}
	w.render(wr, r, http.StatusOK, "login.html", data)
}

// cancelLogin stops a running login flow
func (w *Web) cancelLogin(wr http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(wr, "Invalid login flow ID", http.StatusBadRequest)
		return
	}

	if err := w.logins.Cancel(id); err != nil {
		w.renderError(wr, r, err)
		return
	}
	http.Redirect(wr, r, "/login/"+id.String(), http.StatusSeeOther)
}

// logout ends the session
func (w *Web) logout(wr http.ResponseWriter, r *http.Request) {
	if err := w.accounts.Logout(r.Context()); err != nil {
		w.renderError(wr, r, err)
		return
	}
	http.Redirect(wr, r, "/", http.StatusSeeOther)
}

func (w *Web) renderSubmit(wr http.ResponseWriter, r *http.Request, status int, form descriptor.Form, errMsg, message string) {
	data := map[string]interface{}{
		"Form":    form,
		"Error":   errMsg,
		"Message": message,
	}

	if draft := w.app.Draft(); draft != nil {
		raw, err := json.MarshalIndent(draft, "", "  ")
		if err != nil {
			w.renderError(wr, r, err)
			return
		}
		data["Draft"] = string(raw)
	}

	w.render(wr, r, status, "submit.html", data)
}

func (w *Web) renderError(wr http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		w.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	w.render(wr, r, status, "error.html", map[string]interface{}{"Error": err.Error()})
}

// render executes a page template with the session bar data added. The
// page is buffered so a template failure never sends half a page.
func (w *Web) render(wr http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	data["Session"] = w.accounts.Session()

	var buf bytes.Buffer
	if err := w.templates.ExecuteTemplate(&buf, name, data); err != nil {
		w.logger.Error(r.Context(), "template failed", "template", name, "error", err)
		http.Error(wr, "Internal server error", http.StatusInternalServerError)
		return
	}

	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	wr.WriteHeader(status)
	_, _ = buf.WriteTo(wr)
}

func statusFor(err error) int {
	var (
		vErr   *descriptor.ValidationError
		resErr *registry.ResponseError
		netErr *registry.NetworkError
	)

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, app.ErrServerNotFound), errors.Is(err, auth.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.As(err, &resErr), errors.As(err, &netErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
