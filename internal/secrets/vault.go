// Package secrets holds process secrets (the agent signing secret, webhook URLs,
// model API keys) behind a read-only vault loaded once at startup.
package secrets

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMissing is returned by Require when a secret is absent or empty.
var ErrMissing = errors.New("secret not set")

// Loader retrieves secrets from a source.
type Loader func() (map[string]string, error)

// Vault holds secret values in memory. Safe for concurrent reads.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewVault creates a Vault populated by one call to loader.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("secret load: %w", err)
	}
	if vals == nil {
		vals = map[string]string{}
	}
	return &Vault{values: vals}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Require returns the secret for key or an error wrapping ErrMissing.
func (v *Vault) Require(key string) (string, error) {
	if s := v.Get(key); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrMissing)
}

// Keys returns the names of all loaded secrets, sorted.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a log-safe form of the secret: the first two characters
// followed by a mask, or only the mask for short values.
func (v *Vault) Redacted(key string) string {
	s := v.Get(key)
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "****"
	default:
		return s[:2] + "****"
	}
}
