// Package data binds each server entity to the cache: reads through
// cache.Fetch and writes through cache.Mutation.
package data

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/cache"
	"github.com/livia-app/livia/internal/client"
	"github.com/livia-app/livia/internal/notify"
)

// Patch is a partial update that can be merged into T locally.
type Patch[T any] interface {
	Apply(T) T
}

// Remote is the server surface of one entity.
type Remote[T, C, P any] interface {
	Name() string
	List(ctx context.Context, scope client.Scope) ([]T, error)
	Get(ctx context.Context, id uuid.UUID) (T, error)
	Create(ctx context.Context, in C) (T, error)
	Update(ctx context.Context, id uuid.UUID, patch P) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Resource is the cached, optimistic view of one entity type.
type Resource[T any, C any, P Patch[T]] struct {
	cache  *cache.Client
	remote Remote[T, C, P]
	id     func(T) uuid.UUID
	label  string
	notify notify.Notifier
	area   func() string
}

// NewResource binds remote to c. label names one record in notifications
// ("Agent"); id extracts a record's identifier.
func NewResource[T any, C any, P Patch[T]](c *cache.Client, remote Remote[T, C, P], label string, id func(T) uuid.UUID, n notify.Notifier) *Resource[T, C, P] {
	return &Resource[T, C, P]{cache: c, remote: remote, id: id, label: label, notify: n}
}

// bind keys every entry of r under the area returned by area, so the
// admin and tenant views of an entity never share a cache entry.
func (r *Resource[T, C, P]) bind(area func() string) *Resource[T, C, P] {
	r.area = area
	return r
}

func (r *Resource[T, C, P]) root() string {
	if r.area == nil {
		return ""
	}
	return r.area()
}

// ListPrefix matches every cached listing of the entity in the current area.
func (r *Resource[T, C, P]) ListPrefix() cache.Key {
	return cache.Key{r.root(), r.remote.Name(), "list"}
}

// ListKey is the cache key of one listing.
func (r *Resource[T, C, P]) ListKey(scope client.Scope) cache.Key {
	return cache.Key{r.root(), r.remote.Name(), "list", scope.Key()}
}

// DetailKey is the cache key of one record.
func (r *Resource[T, C, P]) DetailKey(id uuid.UUID) cache.Key {
	return cache.Key{r.root(), r.remote.Name(), "detail", id.String()}
}

// List returns the records in scope.
func (r *Resource[T, C, P]) List(ctx context.Context, scope client.Scope) ([]T, error) {
	return cache.Fetch(ctx, r.cache, r.ListKey(scope), func(ctx context.Context) ([]T, error) {
		return r.remote.List(ctx, scope)
	})
}

// Get returns one record. A missing record is a KindNotFound error.
func (r *Resource[T, C, P]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return cache.Fetch(ctx, r.cache, r.DetailKey(id), func(ctx context.Context) (T, error) {
		return r.remote.Get(ctx, id)
	})
}

// Create stores a new record. Nothing is inserted locally; every listing
// is invalidated.
func (r *Resource[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	m := cache.Mutation[C, T]{
		Keys: func(C) []cache.Key { return []cache.Key{r.ListPrefix()} },
		Do:   r.remote.Create,
		OnSuccess: func(C, T) {
			r.notify.Success(r.label + " created")
		},
		OnError: func(_ C, err *apperr.Error) { r.report("create", err) },
	}
	out, _, err := m.Run(ctx, r.cache, in)
	return out, err
}

type update[P any] struct {
	id    uuid.UUID
	patch P
}

// Update merges patch into the cached record and every listing holding it
// before the server answers.
func (r *Resource[T, C, P]) Update(ctx context.Context, id uuid.UUID, patch P) (T, error) {
	m := cache.Mutation[update[P], T]{
		Keys: func(in update[P]) []cache.Key {
			return []cache.Key{r.ListPrefix(), r.DetailKey(in.id)}
		},
		Optimistic: func(c *cache.Client, in update[P]) {
			cache.Update(c, r.DetailKey(in.id), in.patch.Apply)
			cache.UpdateAll(c, r.ListPrefix(), func(_ cache.Key, items []T) []T {
				out := make([]T, len(items))
				for i, it := range items {
					if r.id(it) == in.id {
						it = in.patch.Apply(it)
					}
					out[i] = it
				}
				return out
			})
		},
		Do: func(ctx context.Context, in update[P]) (T, error) {
			return r.remote.Update(ctx, in.id, in.patch)
		},
		OnSuccess: func(update[P], T) {
			r.notify.Success(r.label + " updated")
		},
		OnError: func(_ update[P], err *apperr.Error) { r.report("update", err) },
	}
	out, _, err := m.Run(ctx, r.cache, update[P]{id: id, patch: patch})
	return out, err
}

// Delete removes the record from the cache before the server answers.
func (r *Resource[T, C, P]) Delete(ctx context.Context, id uuid.UUID) error {
	m := cache.Mutation[uuid.UUID, struct{}]{
		Keys: func(id uuid.UUID) []cache.Key {
			return []cache.Key{r.ListPrefix(), r.DetailKey(id)}
		},
		Optimistic: func(c *cache.Client, id uuid.UUID) {
			c.Remove(r.DetailKey(id))
			cache.UpdateAll(c, r.ListPrefix(), func(_ cache.Key, items []T) []T {
				out := make([]T, 0, len(items))
				for _, it := range items {
					if r.id(it) != id {
						out = append(out, it)
					}
				}
				return out
			})
		},
		Do: func(ctx context.Context, id uuid.UUID) (struct{}, error) {
			return struct{}{}, r.remote.Delete(ctx, id)
		},
		OnSuccess: func(uuid.UUID, struct{}) {
			r.notify.Success(r.label + " deleted")
		},
		OnError: func(_ uuid.UUID, err *apperr.Error) { r.report("delete", err) },
	}
	_, _, err := m.Run(ctx, r.cache, id)
	return err
}

func (r *Resource[T, C, P]) report(action string, err *apperr.Error) {
	report(r.notify, fmt.Sprintf("Could not %s %s", action, strings.ToLower(r.label)), err)
}

// report sends err to n unless it is surfaced elsewhere: validation errors
// are shown inline by the caller, a missing record renders as an empty
// state and access errors resolve by redirect. Unknown errors are logged.
func report(n notify.Notifier, prefix string, err *apperr.Error) {
	switch err.Kind {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindUnauthenticated, apperr.KindUnauthorized:
		return
	case apperr.KindUnknown:
		slog.Warn(prefix, "code", err.Code, "status", err.Status, "error", err.Message)
	}
	n.Error(prefix + ": " + err.Message)
}
