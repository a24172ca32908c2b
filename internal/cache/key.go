package cache

import "strings"

// Key identifies a cached resource, e.g. {"agents", "list", tenantID}.
// Keys are compared element-wise; a key matches every longer key it prefixes.
type Key []string

// String returns a stable map key.
func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether prefix is a leading subsequence of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
