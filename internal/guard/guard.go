// Package guard is the last access check before a protected console
// subtree runs. It never assumes the server already filtered the caller.
package guard

import (
	"context"
	"errors"

	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/session"
)

// Decision is the outcome of evaluating a snapshot against a class.
type Decision int

const (
	Loading Decision = iota
	Deny
	Allow
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Deny:
		return "deny"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// ErrDenied is returned by Render when children were not run.
var ErrDenied = errors.New("access denied")

// Evaluate decides whether a subtree of class c may run for s. Anything
// short of an active principal whose role the table allows is denied.
func Evaluate(t *route.Table, s session.Snapshot, c route.Class) Decision {
	if s.Loading {
		return Loading
	}
	if !c.Protected() {
		return Allow
	}
	if s.State != session.Active || s.Principal == nil || !s.Principal.IsActive {
		return Deny
	}
	if !t.Allows(s.Principal.Role, c) {
		return Deny
	}
	return Allow
}

// Source is the session provider as seen by the guard.
type Source interface {
	Snapshot() session.Snapshot
	Wait(ctx context.Context) (session.Snapshot, error)
}

// Guard wraps a subtree of one class.
type Guard struct {
	source    Source
	table     *route.Table
	class     route.Class
	indicator func()
}

// New creates a guard for class c. indicator, when non-nil, is called
// while the session is still loading.
func New(source Source, table *route.Table, c route.Class, indicator func()) *Guard {
	return &Guard{source: source, table: table, class: c, indicator: indicator}
}

// Decide evaluates the current snapshot.
func (g *Guard) Decide() Decision {
	return Evaluate(g.table, g.source.Snapshot(), g.class)
}

// Render runs children only on Allow. While loading it shows the
// indicator and waits for the provider, which is bounded by its timeout.
func (g *Guard) Render(ctx context.Context, children func(context.Context) error) error {
	d := g.Decide()
	if d == Loading {
		if g.indicator != nil {
			g.indicator()
		}
		snap, err := g.source.Wait(ctx)
		if err != nil {
			return err
		}
		d = Evaluate(g.table, snap, g.class)
	}
	if d != Allow {
		return ErrDenied
	}
	return children(ctx)
}
