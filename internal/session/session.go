package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/auth"
	"iprescribe-console/internal/model"
)

const (
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"
)

var (
	ErrDisposed         = errors.New("session: manager disposed")
	ErrEmptyCredential  = errors.New("session: empty credential")
	ErrNoAuthenticator  = errors.New("session: no authenticator configured")
	ErrNotAuthenticated = errors.New("user not authenticated")
)

// State is an immutable snapshot of the session.
type State struct {
	Credential      string
	Identity        *model.Identity
	IsLoading       bool
	IsAuthenticated bool
	IsAdmin         bool
	// ExpiresAt is read from the credential when it is a JWT; zero otherwise.
	ExpiresAt time.Time
}

func IsAuthenticated(credential string, identity *model.Identity) bool {
	return credential != "" && identity != nil
}

func IsAdmin(credential string, identity *model.Identity) bool {
	return IsAuthenticated(credential, identity) && identity.HasRole(model.RoleSlugAdmin)
}

func newState(credential string, identity *model.Identity) State {
	st := State{
		Credential:      credential,
		Identity:        identity,
		IsAuthenticated: IsAuthenticated(credential, identity),
		IsAdmin:         IsAdmin(credential, identity),
	}
	if exp, ok := auth.PeekExpiry(credential); ok {
		st.ExpiresAt = exp
	}
	return st
}

type Store interface {
	Save(credential string, identity model.Identity) error
	Load() (string, *model.Identity)
	Clear() error
}

type Navigator interface {
	Navigate(ctx context.Context, route string, replace bool)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.LoginData, error)
}

// Cache is the query cache dropped whenever the session ends.
type Cache interface {
	Reset()
}

type Option func(*Manager)

func WithAuthenticator(a Authenticator) Option {
	return func(m *Manager) { m.auth = a }
}

func WithCache(c Cache) Option {
	return func(m *Manager) { m.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithLoginRoute(route string) Option {
	return func(m *Manager) { m.loginRoute = route }
}

// Manager owns the in-memory session and keeps it in step with the store.
// Every transition happens under one lock, so readers never observe a
// credential without its identity.
type Manager struct {
	mu          sync.RWMutex
	state       State
	initialized bool
	disposed    bool

	store      Store
	nav        Navigator
	auth       Authenticator
	cache      Cache
	logger     *slog.Logger
	loginRoute string

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

func New(store Store, nav Navigator, opts ...Option) *Manager {
	m := &Manager{
		state:      State{IsLoading: true},
		store:      store,
		nav:        nav,
		logger:     slog.Default(),
		loginRoute: RouteLogin,
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach subscribes the manager to credential rejections reported by client.
func (m *Manager) Attach(client *apiclient.Client) {
	client.OnInvalidated(m.HandleInvalidation)
}

// Init restores the session from the store. Only the first call has any
// effect.
func (m *Manager) Init() {
	m.mu.Lock()
	if m.initialized || m.disposed {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	credential, identity := m.store.Load()
	m.state = newState(credential, identity)
	st := m.state
	m.mu.Unlock()

	m.logger.Info("session restored", "authenticated", st.IsAuthenticated, "admin", st.IsAdmin)
	m.notify(st)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated
}

// RequireAuthenticated returns ErrNotAuthenticated when there is no session.
func (m *Manager) RequireAuthenticated() error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// Login persists the credential and identity and then publishes the new
// state. Nothing changes if persisting fails.
func (m *Manager) Login(ctx context.Context, credential string, identity model.Identity) error {
	if credential == "" {
		return ErrEmptyCredential
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	if err := m.store.Save(credential, identity); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("session: save: %w", err)
	}
	m.initialized = true
	m.state = newState(credential, &identity)
	st := m.state
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session started", "user_id", identity.ID, "admin", st.IsAdmin)
	m.notify(st)
	return nil
}

// SignIn exchanges email and password for a credential and logs in with it.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	if m.auth == nil {
		return nil, ErrNoAuthenticator
	}
	data, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.Login(ctx, data.Token, data.User); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// Logout ends the session and sends the browser to the login page. The
// in-memory session ends even when clearing the store fails; that error is
// returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	clearErr := m.store.Clear()
	m.state = State{}
	m.mu.Unlock()

	m.end(ctx, State{})
	m.logger.InfoContext(ctx, "session ended", "reason", "logout")
	if clearErr != nil {
		return fmt.Errorf("session: clear: %w", clearErr)
	}
	return nil
}

// HandleInvalidation ends the session after the API rejected its
// credential. The store has already been cleared by the API client. Events
// for a credential other than the current one are ignored.
func (m *Manager) HandleInvalidation(ctx context.Context, ev apiclient.Invalidation) {
	m.mu.Lock()
	if m.disposed || ev.Credential == "" || m.state.Credential != ev.Credential {
		m.mu.Unlock()
		return
	}
	m.state = State{}
	m.mu.Unlock()

	m.logger.WarnContext(ctx, "session ended", "reason", "credential rejected", "path", ev.Path)
	m.end(ctx, State{})
}

func (m *Manager) end(ctx context.Context, st State) {
	if m.cache != nil {
		m.cache.Reset()
	}
	m.notify(st)
	if m.nav != nil {
		m.nav.Navigate(ctx, m.loginRoute, true)
	}
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Manager) notify(st State) {
	m.subsMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Dispose stops the manager. Later transitions return ErrDisposed or do
// nothing.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()

	m.subsMu.Lock()
	m.subs = make(map[int]func(State))
	m.subsMu.Unlock()
}
