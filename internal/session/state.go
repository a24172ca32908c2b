// Package session is the console's session provider: it follows identity
// events, resolves the caller's profile and keeps the access state machine.
package session

import "github.com/livia-app/livia/internal/auth"

// State is the resolved access state of the console's caller.
type State string

const (
	Unknown         State = "UNKNOWN"
	Unauthenticated State = "UNAUTHENTICATED"
	Active          State = "AUTHENTICATED_ACTIVE"
	Inactive        State = "AUTHENTICATED_INACTIVE"
)

// Transition returns the state reached from s when ev arrives with the
// profile resolved for its session (nil when there is none or the lookup
// failed). Inactive is transient: the provider terminates the session and
// lands on Unauthenticated.
func Transition(s State, ev auth.Event, p *auth.Principal) State {
	switch ev {
	case auth.EventSignedOut:
		return Unauthenticated
	case auth.EventInitialSession, auth.EventSignedIn, auth.EventTokenRefreshed:
		if p == nil {
			return Unauthenticated
		}
		if !p.IsActive {
			return Inactive
		}
		return Active
	}
	return s
}
