package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Scope narrows a listing to one tenant. The zero value lists everything
// the caller can see.
type Scope struct {
	TenantID *uuid.UUID
}

// Key returns the scope as a cache key element.
func (s Scope) Key() string {
	if s.TenantID == nil {
		return "all"
	}
	return s.TenantID.String()
}

// Collection is the REST surface of one entity under an area root
// (/admin or /dashboard), e.g. /dashboard/agents.
type Collection[T, C, P any] struct {
	c    *Client
	root func() string
	name string
}

// NewCollection binds resource name under the area returned by root.
func NewCollection[T, C, P any](c *Client, root func() string, name string) *Collection[T, C, P] {
	return &Collection[T, C, P]{c: c, root: root, name: name}
}

// Name returns the resource name.
func (col *Collection[T, C, P]) Name() string {
	return col.name
}

func (col *Collection[T, C, P]) path(suffix string) string {
	return col.root() + "/" + col.name + suffix
}

// List fetches every visible record in scope.
func (col *Collection[T, C, P]) List(ctx context.Context, scope Scope) ([]T, error) {
	p := col.path("")
	if scope.TenantID != nil {
		p += "?" + url.Values{"tenantId": {scope.TenantID.String()}}.Encode()
	}
	out := []T{}
	if err := col.c.Do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one record.
func (col *Collection[T, C, P]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var out T
	err := col.c.Do(ctx, http.MethodGet, col.path("/"+id.String()), nil, &out)
	return out, err
}

// Create posts a new record and returns it as stored.
func (col *Collection[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	var out T
	err := col.c.Do(ctx, http.MethodPost, col.path(""), in, &out)
	return out, err
}

// Update patches a record.
func (col *Collection[T, C, P]) Update(ctx context.Context, id uuid.UUID, patch P) (T, error) {
	var out T
	err := col.c.Do(ctx, http.MethodPatch, col.path("/"+id.String()), patch, &out)
	return out, err
}

// Delete removes a record.
func (col *Collection[T, C, P]) Delete(ctx context.Context, id uuid.UUID) error {
	return col.c.Do(ctx, http.MethodDelete, col.path("/"+id.String()), nil, nil)
}

// Post sends an action to a sub-path of a record, e.g. /{id}/use.
func (col *Collection[T, C, P]) Post(ctx context.Context, id uuid.UUID, action string, in any) (T, error) {
	var out T
	err := col.c.Do(ctx, http.MethodPost, col.path("/"+id.String()+"/"+action), in, &out)
	return out, err
}
