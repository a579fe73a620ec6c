// Package idgen generates identifiers for plans and versions on the dev API.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random UUID string.
func New() string {
	return uuid.NewString()
}

// WithPrefix returns prefix followed by 24 hex chars (e.g. "plan_", "ver_").
func WithPrefix(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
