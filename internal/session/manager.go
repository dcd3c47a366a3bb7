package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/model"
	"water-monitoring/internal/observability"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session is one signed-in client. Nothing about it is persisted.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	gate *Gate
}

// Identity returns the session's identity
func (s *Session) Identity() (model.Identity, bool) { return s.gate.Identity() }

// View returns the session's current navigation view
func (s *Session) View() View { return s.gate.View() }

// State returns the session's gate state
func (s *Session) State() State { return s.gate.State() }

// LoginResult is handed back to the client after a successful sign-in
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Identity  model.Identity `json:"identity"`
	View      View           `json:"view"`
}

// Manager signs clients in and out and resolves bearer tokens to sessions
type Manager struct {
	auth    Authenticator
	tokens  *TokenIssuer
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*Gate
	hooks    []func(sessionID string)
}

// NewManager creates a session manager
func NewManager(auth Authenticator, tokens *TokenIssuer, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, timeout time.Duration) *Manager {
	return &Manager{
		auth:     auth,
		tokens:   tokens,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
		sessions: map[string]*Session{},
		pending:  map[string]*Gate{},
	}
}

// OnLogout registers fn to run whenever a session ends
func (m *Manager) OnLogout(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Login checks the credentials and opens a session. A second attempt for
// the same identifier while one is being checked is rejected.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return nil, apperr.NewValidationError("identifier and secret are required", nil)
	}

	gate := NewGate()
	if err := gate.Begin(); err != nil {
		return nil, apperr.NewInternalError("could not start authentication", err)
	}
	m.mu.Lock()
	if _, busy := m.pending[identifier]; busy {
		m.mu.Unlock()
		return nil, apperr.NewConflictError("a sign-in for this identifier is already in progress", ErrAuthenticationInProgress)
	}
	m.pending[identifier] = gate
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, identifier)
		m.mu.Unlock()
	}()

	identity, err := m.authenticate(ctx, identifier, secret)
	if err != nil {
		gate.Fail()
		outcome := "error"
		if apperr.IsAuth(err) {
			outcome = "failure"
		}
		m.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
		m.logger.Warn("sign-in rejected",
			"identifier", identifier,
			"error", err.Error(),
		)
		return nil, err
	}
	if err := gate.Succeed(*identity); err != nil {
		return nil, apperr.NewInternalError("could not complete authentication", err)
	}

	sessionID := uuid.NewString()
	token, expires, err := m.tokens.Issue(sessionID, identity.UserID)
	if err != nil {
		return nil, apperr.NewInternalError("could not issue session token", err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = &Session{
		ID:        sessionID,
		CreatedAt: m.clock.Now(),
		ExpiresAt: expires,
		gate:      gate,
	}
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.LoginAttempts.WithLabelValues("success").Inc()
	m.metrics.ActiveSessions.Set(float64(active))
	m.logger.Info("session opened",
		"session_id", sessionID,
		"user_id", identity.UserID,
		"role", string(identity.Role),
	)
	return &LoginResult{Token: token, ExpiresAt: expires, Identity: *identity, View: gate.View()}, nil
}

func (m *Manager) authenticate(ctx context.Context, identifier, secret string) (*model.Identity, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	identity, err := m.auth.Authenticate(cctx, identifier, secret)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, ErrInvalidCredentials):
		return nil, apperr.NewAuthError("invalid credentials", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded):
		return nil, apperr.NewNetworkError(fmt.Sprintf("identity provider timed out after %s", m.timeout), err)
	}
	return nil, apperr.NewNetworkError("identity provider unavailable", err)
}

// Resolve maps a bearer token to its live session
func (m *Manager) Resolve(token string) (*Session, error) {
	sessionID, err := m.tokens.Verify(token)
	if err != nil {
		return nil, apperr.NewAuthError("invalid or expired session token", err)
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NewAuthError("session has ended", nil)
	}
	if !m.clock.Now().Before(s.ExpiresAt) {
		m.end(sessionID, "expired")
		return nil, apperr.NewAuthError("session has expired", nil)
	}
	return s, nil
}

// Logout ends the session and runs the logout hooks
func (m *Manager) Logout(sessionID string) error {
	if !m.end(sessionID, "logout") {
		return apperr.NewAuthError("session has ended", nil)
	}
	return nil
}

// Navigate switches the session's view
func (m *Manager) Navigate(sessionID string, v View) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return apperr.NewAuthError("session has ended", nil)
	}

	err := s.gate.Navigate(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownView):
		return apperr.NewValidationError(err.Error(), err)
	case errors.Is(err, ErrViewForbidden):
		return apperr.NewAuthorizationError(err.Error(), err)
	}
	return apperr.NewAuthError(err.Error(), err)
}

// Active reports whether the session is still open. A session that has not
// been swept yet counts as open; its logout hooks run when it is.
func (m *Manager) Active(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// ActiveCount returns the number of open sessions
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep ends every expired session and returns how many were removed
func (m *Manager) Sweep() int {
	now := m.clock.Now()
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, id := range expired {
		if m.end(id, "expired") {
			n++
		}
	}
	return n
}

// Run sweeps expired sessions every interval until ctx ends
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := m.Sweep(); n > 0 {
				m.logger.Info("swept expired sessions", "count", n)
			}
		}
	}
}

// end removes the session and fires hooks outside the lock
func (m *Manager) end(sessionID, reason string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	active := len(m.sessions)
	hooks := append([]func(string){}, m.hooks...)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.gate.Logout()
	for _, fn := range hooks {
		fn(sessionID)
	}
	m.metrics.ActiveSessions.Set(float64(active))
	m.logger.Info("session closed", "session_id", sessionID, "reason", reason)
	return true
}
