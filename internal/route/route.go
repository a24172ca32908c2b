// Package route classifies URL paths into access categories. The same
// table is consulted by the server edge middleware and by the console
// guard, so both always agree on where a path belongs.
package route

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/livia-app/livia/internal/auth"
)

// Class is the access category of a path.
type Class string

const (
	Public Class = "public"
	Auth   Class = "auth" // login / signup
	Tenant Class = "tenant"
	Admin  Class = "admin"
)

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	switch c {
	case Public, Auth, Tenant, Admin:
		return true
	}
	return false
}

// Protected reports whether a session is required to reach c.
func (c Class) Protected() bool {
	return c == Tenant || c == Admin
}

// Rule maps a path prefix to a class. Exact rules only match the prefix itself.
type Rule struct {
	Prefix string `json:"prefix"`
	Exact  bool   `json:"exact,omitempty"`
	Class  Class  `json:"class"`
}

// Table is the declarative route classification and role policy.
type Table struct {
	Roots  map[auth.Role]string  `json:"roots"`
	Login  string                `json:"login"`
	Routes []Rule                `json:"routes"`
	Allow  map[auth.Role][]Class `json:"allow"`
}

//go:embed routes.yaml
var defaultTable []byte

var std = MustParse(defaultTable)

// Default returns the built-in table.
func Default() *Table {
	return std
}

// Parse decodes and validates a YAML route table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding route table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// MustParse is Parse that panics on error.
func MustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) validate() error {
	if !strings.HasPrefix(t.Login, "/") {
		return errors.New("route table: login path must be absolute")
	}
	for _, role := range []auth.Role{auth.RoleSuperAdmin, auth.RoleTenantUser} {
		root, ok := t.Roots[role]
		if !ok || !strings.HasPrefix(root, "/") {
			return fmt.Errorf("route table: missing dashboard root for %s", role)
		}
		if len(t.Allow[role]) == 0 {
			return fmt.Errorf("route table: no allowed classes for %s", role)
		}
	}
	for _, r := range t.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("route table: prefix %q must be absolute", r.Prefix)
		}
		if !r.Class.Valid() {
			return fmt.Errorf("route table: unknown class %q for %s", r.Class, r.Prefix)
		}
	}
	for role, classes := range t.Allow {
		for _, c := range classes {
			if !c.Protected() {
				return fmt.Errorf("route table: %s may only be granted protected classes, got %q", role, c)
			}
		}
	}
	return nil
}

// Classify returns the class of p using the longest matching prefix.
// Paths that match no rule are tenant-scoped.
func (t *Table) Classify(p string) Class {
	p = clean(p)
	class := Tenant
	best := -1
	for _, r := range t.Routes {
		if !matches(r, p) {
			continue
		}
		if len(r.Prefix) > best {
			best = len(r.Prefix)
			class = r.Class
		}
	}
	return class
}

// Allows reports whether role may reach paths of class c. Public and auth
// paths are reachable by everyone.
func (t *Table) Allows(role auth.Role, c Class) bool {
	if !c.Protected() {
		return true
	}
	for _, allowed := range t.Allow[role] {
		if allowed == c {
			return true
		}
	}
	return false
}

// AllowedRoles returns the roles that may reach class c.
func (t *Table) AllowedRoles(c Class) []auth.Role {
	var roles []auth.Role
	for _, role := range []auth.Role{auth.RoleSuperAdmin, auth.RoleTenantUser} {
		if t.Allows(role, c) {
			roles = append(roles, role)
		}
	}
	return roles
}

// DashboardRoot returns the landing path for role, or the login path for
// an unknown role.
func (t *Table) DashboardRoot(role auth.Role) string {
	if root, ok := t.Roots[role]; ok {
		return root
	}
	return t.Login
}

// LoginPath returns the sign-in path.
func (t *Table) LoginPath() string {
	return t.Login
}

// Under reports whether p is root or lies beneath it.
func Under(p, root string) bool {
	p = clean(p)
	root = clean(root)
	if root == "/" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

func matches(r Rule, p string) bool {
	if r.Exact {
		return p == clean(r.Prefix)
	}
	return Under(p, r.Prefix)
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
