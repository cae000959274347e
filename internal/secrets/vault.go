// Package secrets holds credentials that can be rotated without a restart.
package secrets

import (
	"fmt"
	"sync"
)

// Loader reads the current secret values from their source.
type Loader func() (map[string]string, error)

// Vault keeps secret values in memory and swaps them atomically on Reload.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault populated by one call to loader.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the secret for key, or "" when it is not set.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Getter returns a function reading key on every call, falling back to
// fallback while the key is unset.
func (v *Vault) Getter(key, fallback string) func() string {
	return func() string {
		if s := v.Get(key); s != "" {
			return s
		}
		return fallback
	}
}

// Reload swaps in freshly loaded values. On error the old values stay.
func (v *Vault) Reload() error {
	vals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	return nil
}

// Redacted returns a loggable form of the secret: the first two characters
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
