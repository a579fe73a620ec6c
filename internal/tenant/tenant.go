// Package tenant carries the tenant and environment scope that every
// business-model request is made under.
package tenant

import (
	"errors"
	"sync"
)

// ErrNoTenant is returned when an operation needs a tenant and none is selected.
var ErrNoTenant = errors.New("tenant: no tenant selected")

// Environment separates live data from test data within one tenant.
type Environment string

const (
	EnvLive Environment = "live"
	EnvTest Environment = "test"
)

// Context is the request scope: who is acting, for which tenant, in which environment.
type Context struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId,omitempty"`
	IsLive   bool   `json:"isLive"`
}

// Environment returns the environment the context points at.
func (c Context) Environment() Environment {
	if c.IsLive {
		return EnvLive
	}
	return EnvTest
}

// Key identifies the tenant+environment pair. Cached data is never shared across keys.
func (c Context) Key() string {
	return c.TenantID + ":" + string(c.Environment())
}

// Valid reports whether a tenant is selected.
func (c Context) Valid() bool {
	return c.TenantID != ""
}

// Source supplies the current scope.
type Source interface {
	Current() Context
}

// Static is a Source that never changes.
type Static Context

// Current implements Source.
func (s Static) Current() Context { return Context(s) }

// Listener is called after the scope changes. prev and next are equal when
// the change was announced without a value change (an explicit flush).
type Listener func(prev, next Context)

// Provider holds the mutable scope of a session and notifies listeners when
// the tenant or environment switches.
type Provider struct {
	mu        sync.RWMutex
	current   Context
	listeners map[int]Listener
	nextID    int
}

// NewProvider creates a provider starting at initial.
func NewProvider(initial Context) *Provider {
	return &Provider{
		current:   initial,
		listeners: make(map[int]Listener),
	}
}

// Current implements Source.
func (p *Provider) Current() Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Set replaces the whole scope. Listeners run only when something changed.
func (p *Provider) Set(next Context) {
	p.update(func(c Context) Context { return next }, false)
}

// SwitchTenant changes the tenant and keeps the environment.
func (p *Provider) SwitchTenant(tenantID string) {
	p.update(func(c Context) Context {
		c.TenantID = tenantID
		return c
	}, false)
}

// SetLive flips between the live and test environments.
func (p *Provider) SetLive(isLive bool) {
	p.update(func(c Context) Context {
		c.IsLive = isLive
		return c
	}, false)
}

// Announce notifies listeners without changing the scope, for
// "environment changed" signals that arrive from outside the session.
func (p *Provider) Announce() {
	p.update(func(c Context) Context { return c }, true)
}

// Subscribe registers fn and returns a function that removes it.
func (p *Provider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) update(mutate func(Context) Context, force bool) {
	p.mu.Lock()
	prev := p.current
	next := mutate(prev)
	p.current = next
	if prev == next && !force {
		p.mu.Unlock()
		return
	}
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	// Listeners run synchronously so a store flush completes before the
	// caller goes on to load data for the new scope.
	for _, l := range listeners {
		l(prev, next)
	}
}
