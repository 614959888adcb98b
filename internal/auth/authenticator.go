// Package auth signs the operator in to the registry with the GitHub OAuth
// device flow and owns the resulting session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/models"
	"github.com/mcpcollection/mcpcollection/internal/registry"
	"github.com/mcpcollection/mcpcollection/internal/tokenstore"
)

// State is a step of the device flow
type State string

const (
	StateIdle                   State = "idle"
	StateClientIDResolved       State = "client_id_resolved"
	StateDeviceCodeRequested    State = "device_code_requested"
	StatePollingForToken        State = "polling_for_token"
	StateGitHubUserFetched      State = "github_user_fetched"
	StateRegistryTokenExchanged State = "registry_token_exchanged"
	StateComplete               State = "complete"
	StateFailed                 State = "failed"
	StateCancelled              State = "cancelled"
)

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// Progress is reported to an Observer on every transition
type Progress struct {
	State   State
	Message string
	// Grant is set from StateDeviceCodeRequested on
	Grant *models.DeviceCodeGrant
	// Username is set from StateGitHubUserFetched on
	Username string
	Err      error
}

// Observer receives flow progress. It must not block.
type Observer func(Progress)

// Registry is the part of the registry API the flow needs
type Registry interface {
	Health(ctx context.Context) (*registry.Health, error)
	ExchangeGitHubToken(ctx context.Context, githubToken string) (string, error)
}

// Provider is the upstream identity provider side of the flow
type Provider interface {
	RequestDeviceCode(ctx context.Context, clientID string) (*models.DeviceCodeGrant, error)
	PollAccessToken(ctx context.Context, clientID, deviceCode string) (string, error)
	FetchIdentity(ctx context.Context, accessToken string) (string, error)
}

// Authenticator runs the device flow and is the only writer of the session
type Authenticator struct {
	registry Registry
	provider Provider
	store    tokenstore.Store
	logger   logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	session *models.Session
}

// NewAuthenticator creates an Authenticator with no session
func NewAuthenticator(reg Registry, provider Provider, store tokenstore.Store, logger logging.Logger) *Authenticator {
	return &Authenticator{
		registry: reg,
		provider: provider,
		store:    store,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

// Session returns a copy of the current session, or nil
func (a *Authenticator) Session() *models.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

// Restore loads the persisted session. An expired registry token is
// cleared and treated as no session.
func (a *Authenticator) Restore(ctx context.Context) (*models.Session, error) {
	session, err := a.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if tokenExpired(session.Token, a.now()) {
		a.logger.Info(ctx, "stored registry token expired", "user", session.Username)
		if err := a.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear expired session: %w", err)
		}
		return nil, nil
	}

	a.setSession(session)
	a.logger.Info(ctx, "session restored", "user", session.Username)
	return a.Session(), nil
}

// Logout forgets the session in memory and in the store
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.setSession(nil)
	a.logger.Info(ctx, "logged out")
	return nil
}

func (a *Authenticator) setSession(s *models.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

// ResolveClientID asks the registry for its public GitHub OAuth client ID
func (a *Authenticator) ResolveClientID(ctx context.Context) (string, error) {
	health, err := a.registry.Health(ctx)
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	if health.GitHubClientID == "" {
		return "", &ConfigError{Err: errMissingClientID}
	}
	return health.GitHubClientID, nil
}

// ExchangeForRegistryToken trades the GitHub token for a registry token
func (a *Authenticator) ExchangeForRegistryToken(ctx context.Context, accessToken string) (string, error) {
	token, err := a.registry.ExchangeGitHubToken(ctx, accessToken)
	if err != nil {
		var respErr *registry.ResponseError
		if errors.As(err, &respErr) {
			return "", &ExchangeError{
				Status:     respErr.Status,
				StatusText: respErr.StatusText,
				Message:    respErr.Message,
			}
		}
		return "", &ExchangeError{Err: err}
	}
	if token == "" {
		return "", &ExchangeError{Err: errors.New("registry returned no token")}
	}
	return token, nil
}

// Login runs the whole device flow. Steps run strictly in sequence; the
// first failure aborts the flow and leaves the session untouched. On
// success the session is persisted, then published in memory.
func (a *Authenticator) Login(ctx context.Context, observe Observer) (*models.Session, error) {
	if observe == nil {
		observe = func(Progress) {}
	}
	p := Progress{State: StateIdle, Message: "Starting GitHub login..."}
	report := func(state State, msg string) {
		p.State, p.Message = state, msg
		observe(p)
	}
	fail := func(err error) (*models.Session, error) {
		p.Err = err
		if errors.Is(err, context.Canceled) {
			report(StateCancelled, "Login cancelled")
		} else {
			report(StateFailed, "Login failed: "+err.Error())
		}
		a.logger.Warn(ctx, "device flow aborted", "error", err)
		return nil, err
	}
	report(StateIdle, p.Message)

	clientID, err := a.ResolveClientID(ctx)
	if err != nil {
		return fail(err)
	}
	report(StateClientIDResolved, "Requesting device code...")

	grant, err := a.provider.RequestDeviceCode(ctx, clientID)
	if err != nil {
		return fail(err)
	}
	p.Grant = grant
	report(StateDeviceCodeRequested, "Enter the code at "+grant.VerificationURI)

	report(StatePollingForToken, "Waiting for authorization...")
	accessToken, err := a.provider.PollAccessToken(ctx, clientID, grant.DeviceCode)
	if err != nil {
		return fail(err)
	}

	username, err := a.provider.FetchIdentity(ctx, accessToken)
	if err != nil {
		return fail(err)
	}
	p.Username = username
	report(StateGitHubUserFetched, "Signed in to GitHub as "+username)

	registryToken, err := a.ExchangeForRegistryToken(ctx, accessToken)
	if err != nil {
		return fail(err)
	}
	report(StateRegistryTokenExchanged, "Saving session...")

	session := &models.Session{Token: registryToken, Username: username}
	if err := a.store.Save(ctx, session); err != nil {
		return fail(fmt.Errorf("save session: %w", err))
	}
	a.setSession(session)

	report(StateComplete, "Successfully authorized!")
	a.logger.Info(ctx, "logged in", "user", username)
	return a.Session(), nil
}

// tokenExpired reports whether token is a JWT whose exp has passed.
// Opaque tokens never expire from our point of view.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
