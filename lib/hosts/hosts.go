// Package hosts maps network identifiers to their upstream REST/LCD base
// URLs. The mapping is exhaustive over the closed network set: a capable
// network without a host is a startup failure, never a silent empty string.
package hosts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ChorusOne/anthem-sub000/lib/network"
)

// Errors returned by the resolver.
var (
	ErrNoHost = errors.New("no upstream host configured for network")
)

// Resolver resolves a network name to its upstream base URL. Immutable after
// New.
type Resolver struct {
	m map[string]string
}

// New builds a resolver from the configured per-network base URLs. Keys are
// upper-cased network names; trailing slashes are trimmed.
func New(urls map[string]string) *Resolver {
	m := make(map[string]string, len(urls))
	for name, u := range urls {
		m[strings.ToUpper(name)] = strings.TrimRight(u, "/")
	}

	return &Resolver{m: m}
}

// HostFor returns the base URL for the named network.
func (r *Resolver) HostFor(name string) (string, error) {
	u, ok := r.m[strings.ToUpper(name)]
	if !ok || u == "" {
		return "", fmt.Errorf("%w: %s", ErrNoHost, name)
	}

	return u, nil
}

// Validate checks that every registry network carrying at least one
// capability has a non-empty host. Called once at startup so a configuration
// gap fails deployment instead of a request.
func (r *Resolver) Validate(reg *network.Registry) error {
	for _, d := range reg.All() {
		if !d.HasAnyCapability() {
			continue
		}

		if _, err := r.HostFor(d.Name); err != nil {
			return err
		}
	}

	return nil
}
