// Package validation checks request payloads before they reach a repository.
// Every check returns the full list of field errors, never just the first.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// FieldError describes a single field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

type checker struct {
	errs []FieldError
}

func (c *checker) fail(field, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// text validates a required, bounded string.
func (c *checker) text(field, value string, max int) {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		c.fail(field, "%s is required", field)
	case len(v) > max:
		c.fail(field, "%s must be at most %d characters", field, max)
	}
}

// optionalText validates a bounded string that may be empty.
func (c *checker) optionalText(field, value string, max int) {
	if len(value) > max {
		c.fail(field, "%s must be at most %d characters", field, max)
	}
}

// patchText validates a required string field of a patch when present.
func (c *checker) patchText(field string, value *string, max int) {
	if value != nil {
		c.text(field, *value, max)
	}
}

func (c *checker) oneOf(field, value string, allowed ...string) {
	if value == "" {
		c.fail(field, "%s is required", field)
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	c.fail(field, "%s must be one of: %s", field, strings.Join(quoted, ", "))
}

func (c *checker) tenant(id *uuid.UUID) {
	if id == nil || *id == uuid.Nil {
		c.fail("tenantId", "tenantId is required")
	}
}

func (c *checker) result() []FieldError {
	return c.errs
}
