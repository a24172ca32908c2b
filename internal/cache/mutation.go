package cache

import (
	"context"

	"github.com/livia-app/livia/internal/apperr"
)

// Outcome is the terminal state of a mutation.
type Outcome int

const (
	Committed Outcome = iota + 1
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	}
	return "pending"
}

// Mutation describes a write against the server and its effect on the cache.
//
// Run cancels in-flight reads for Keys, snapshots them, applies Optimistic,
// sends Do and on failure restores the snapshot. Whatever the result, the
// Invalidate keys (Keys when nil) are marked stale afterwards. Writes are
// never retried.
type Mutation[In, Out any] struct {
	Keys       func(In) []Key
	Optimistic func(c *Client, in In)
	Do         func(ctx context.Context, in In) (Out, error)
	Invalidate func(in In, out Out, err error) []Key
	OnSuccess  func(in In, out Out)
	OnError    func(in In, err *apperr.Error)
}

// Run executes the mutation against c.
func (m Mutation[In, Out]) Run(ctx context.Context, c *Client, in In) (Out, Outcome, error) {
	var keys []Key
	if m.Keys != nil {
		keys = m.Keys(in)
	}

	var snap Snapshot
	if m.Optimistic != nil {
		c.Cancel(keys...)
		snap = c.Snapshot(keys...)
		m.Optimistic(c, in)
	}

	out, err := m.Do(ctx, in)

	if err != nil {
		if m.Optimistic != nil {
			c.Restore(snap)
		}
		c.Invalidate(m.invalidate(keys, in, out, err)...)
		ae := apperr.Normalize(err)
		if m.OnError != nil {
			m.OnError(in, ae)
		}
		var zero Out
		return zero, RolledBack, ae
	}

	c.Invalidate(m.invalidate(keys, in, out, nil)...)
	if m.OnSuccess != nil {
		m.OnSuccess(in, out)
	}
	return out, Committed, nil
}

func (m Mutation[In, Out]) invalidate(keys []Key, in In, out Out, err error) []Key {
	if m.Invalidate != nil {
		return m.Invalidate(in, out, err)
	}
	return keys
}
