// Package session implements the sign-in gate and the in-memory session store.
package session

import (
	"errors"
	"fmt"
	"sync"

	"water-monitoring/internal/model"
)

// State is a position in the sign-in state machine
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// View is a navigation target of the client
type View string

const (
	ViewHome          View = "home"
	ViewDashboard     View = "dashboard"
	ViewWaterEntry    View = "water-entry"
	ViewRainfallEntry View = "rainfall-entry"
	ViewHourlyReports View = "hourly-reports"
	ViewReports       View = "reports"
)

// DefaultView is shown after sign-in and after logout
const DefaultView = ViewHome

var (
	ErrAuthenticationInProgress = errors.New("authentication already in progress")
	ErrAlreadyAuthenticated     = errors.New("already authenticated")
	ErrNotAuthenticating        = errors.New("no authentication in progress")
	ErrNotAuthenticated         = errors.New("not authenticated")
	ErrUnknownView              = errors.New("unknown view")
	ErrViewForbidden            = errors.New("view not available for role")
)

// ParseView validates a view name
func ParseView(raw string) (View, error) {
	switch v := View(raw); v {
	case ViewHome, ViewDashboard, ViewWaterEntry, ViewRainfallEntry, ViewHourlyReports, ViewReports:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, raw)
}

// CanView reports whether role may open v. Entry views need a recording role.
func CanView(role model.Role, v View) bool {
	switch v {
	case ViewWaterEntry, ViewRainfallEntry:
		return role.CanRecord()
	}
	return role.Valid()
}

// Gate is the Anonymous -> Authenticating -> Authenticated state machine
// of one client. The identity exists only while Authenticated.
type Gate struct {
	mu       sync.Mutex
	state    State
	identity *model.Identity
	view     View
}

// NewGate returns an anonymous gate on the default view
func NewGate() *Gate {
	return &Gate{state: StateAnonymous, view: DefaultView}
}

// Begin moves Anonymous to Authenticating. A second submission while one
// is pending is rejected.
func (g *Gate) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateAuthenticating:
		return ErrAuthenticationInProgress
	case StateAuthenticated:
		return ErrAlreadyAuthenticated
	}
	g.state = StateAuthenticating
	return nil
}

// Succeed completes a pending authentication with the resolved identity
func (g *Gate) Succeed(identity model.Identity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticating {
		return ErrNotAuthenticating
	}
	g.state = StateAuthenticated
	g.identity = &identity
	g.view = DefaultView
	return nil
}

// Fail returns a pending authentication to Anonymous
func (g *Gate) Fail() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateAuthenticating {
		g.state = StateAnonymous
	}
}

// Logout clears the identity and resets navigation
func (g *Gate) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateAnonymous
	g.identity = nil
	g.view = DefaultView
}

// Navigate switches the current view if the identity's role allows it
func (g *Gate) Navigate(v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if !CanView(g.identity.Role, v) {
		return fmt.Errorf("%w: %s cannot open %s", ErrViewForbidden, g.identity.Role, v)
	}
	g.view = v
	return nil
}

// State returns the current state
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Identity returns the authenticated identity, if any
func (g *Gate) Identity() (model.Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return model.Identity{}, false
	}
	return *g.identity, true
}

// View returns the current navigation view
func (g *Gate) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view
}
