package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcpcollection/mcpcollection/internal/logging"
)

// FlowStatus is a snapshot of a login flow, as shown in the login dialog
type FlowStatus struct {
	ID              uuid.UUID `json:"id"`
	State           State     `json:"state"`
	Message         string    `json:"message"`
	UserCode        string    `json:"user_code,omitempty"`
	VerificationURI string    `json:"verification_uri,omitempty"`
	Username        string    `json:"username,omitempty"`
	Error           string    `json:"error,omitempty"`
	Done            bool      `json:"done"`
}

type flow struct {
	id     uuid.UUID
	cancel context.CancelFunc
	ready  chan struct{}
	once   sync.Once

	mu     sync.Mutex
	status FlowStatus
}

func (f *flow) snapshot() FlowStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *flow) update(p Progress) {
	f.mu.Lock()
	f.status.State = p.State
	f.status.Message = p.Message
	f.status.Done = p.State.Terminal()
	if p.Grant != nil {
		f.status.UserCode = p.Grant.UserCode
		f.status.VerificationURI = p.Grant.VerificationURI
	}
	if p.Username != "" {
		f.status.Username = p.Username
	}
	if p.Err != nil {
		f.status.Error = p.Err.Error()
	}
	f.mu.Unlock()

	if p.Grant != nil || p.State.Terminal() {
		f.once.Do(func() { close(f.ready) })
	}
}

// Flows runs login flows in the background so the UI stays responsive.
// At most one flow is live: starting a new one cancels the previous.
type Flows struct {
	auth   *Authenticator
	logger logging.Logger

	mu      sync.Mutex
	current *flow
	wg      sync.WaitGroup
}

// NewFlows creates a flow runner for auth
func NewFlows(auth *Authenticator, logger logging.Logger) *Flows {
	return &Flows{auth: auth, logger: logger.With("component", "flows")}
}

// Start launches a login flow and waits until the device code is available
// for display, the flow ends, or ctx is done. The flow itself outlives ctx.
func (m *Flows) Start(ctx context.Context) FlowStatus {
	flowCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := uuid.New()
	f := &flow{
		id:     id,
		cancel: cancel,
		ready:  make(chan struct{}),
		status: FlowStatus{ID: id, State: StateIdle},
	}

	m.mu.Lock()
	if m.current != nil {
		m.current.cancel()
	}
	m.current = f
	m.mu.Unlock()

	m.logger.Info(ctx, "login flow started", "flow", id)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		_, _ = m.auth.Login(flowCtx, f.update)
	}()

	select {
	case <-f.ready:
	case <-ctx.Done():
	}
	return f.snapshot()
}

// Get returns the status of flow id
func (m *Flows) Get(id uuid.UUID) (FlowStatus, error) {
	f, err := m.lookup(id)
	if err != nil {
		return FlowStatus{}, err
	}
	return f.snapshot(), nil
}

// Cancel stops flow id between poll attempts. Cancelling a finished flow
// is a no-op.
func (m *Flows) Cancel(id uuid.UUID) error {
	f, err := m.lookup(id)
	if err != nil {
		return err
	}
	f.cancel()
	m.logger.Info(context.Background(), "login flow cancelled", "flow", id)
	return nil
}

// Close cancels the live flow and waits for it to stop
func (m *Flows) Close() {
	m.mu.Lock()
	if m.current != nil {
		m.current.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Flows) lookup(id uuid.UUID) (*flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.id != id {
		return nil, ErrFlowNotFound
	}
	return m.current, nil
}
