package domain

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Defaults used when nothing has been persisted yet
const (
	DefaultResponseInterval = 15 * time.Second
	DefaultQuietWindow      = 10 * time.Minute
)

// RuntimeConfig is the process-wide mutable bot state.
// It is owned by the dispatcher and passed by reference; there is no global copy.
type RuntimeConfig struct {
	mu        sync.RWMutex
	bootstrap map[string]struct{}
	persisted map[string]struct{}
	interval  time.Duration
	quiet     time.Duration
}

// NewRuntimeConfig creates a config whose admin set always contains bootstrap
func NewRuntimeConfig(bootstrap []string) *RuntimeConfig {
	c := &RuntimeConfig{
		bootstrap: make(map[string]struct{}),
		persisted: make(map[string]struct{}),
		interval:  DefaultResponseInterval,
		quiet:     DefaultQuietWindow,
	}
	for _, a := range bootstrap {
		if a = NormalizeIdentity(a); a != "" {
			c.bootstrap[a] = struct{}{}
		}
	}
	return c
}

// NormalizeIdentity lowercases and trims an account name
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsAdmin reports whether account is in bootstrap ∪ persisted
func (c *RuntimeConfig) IsAdmin(account string) bool {
	account = NormalizeIdentity(account)
	if account == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.bootstrap[account]; ok {
		return true
	}
	_, ok := c.persisted[account]
	return ok
}

// IsBootstrapAdmin reports whether account belongs to the fixed admin set
func (c *RuntimeConfig) IsBootstrapAdmin(account string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bootstrap[NormalizeIdentity(account)]
	return ok
}

// Admins returns the sorted union of bootstrap and persisted admins
func (c *RuntimeConfig) Admins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.bootstrap)+len(c.persisted))
	for a := range c.bootstrap {
		seen[a] = struct{}{}
	}
	for a := range c.persisted {
		seen[a] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// SetPersistedAdmins replaces the persisted half of the admin set.
// The bootstrap half is untouched.
func (c *RuntimeConfig) SetPersistedAdmins(admins []string) {
	next := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = NormalizeIdentity(a); a != "" {
			next[a] = struct{}{}
		}
	}
	c.mu.Lock()
	c.persisted = next
	c.mu.Unlock()
}

// Interval returns the minimum time between autonomous responses
func (c *RuntimeConfig) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// SetInterval updates the response interval
func (c *RuntimeConfig) SetInterval(d time.Duration) {
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// QuietWindow returns how long a quiet command mutes the bot
func (c *RuntimeConfig) QuietWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quiet
}

// SetQuietWindow updates the quiet window
func (c *RuntimeConfig) SetQuietWindow(d time.Duration) {
	c.mu.Lock()
	c.quiet = d
	c.mu.Unlock()
}
