// Package session owns the shopper's credentials for one browser profile.
//
// A Context is hydrated from durable storage when the profile is first seen,
// set on login, invalidated when the backend rejects the token and cleared on
// logout. Every outbound client reads the token from it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
)

const storeKey = "session"

// Session is the persisted credential set.
type Session struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt,omitempty"`
}

// Expired reports whether the token carries an expiry that has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Provider is the read side consumed by outbound clients.
type Provider interface {
	Token() string
	Invalidate(ctx context.Context, reason string)
}

// Listener is notified after credentials were dropped by Invalidate.
type Listener func(reason string)

// Context holds the session for one profile.
type Context struct {
	store   localstore.Store
	profile string
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	current   Session
	listeners []Listener
}

// Option customises a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds an empty Context. Call Hydrate to restore persisted credentials.
func New(store localstore.Store, profile string, opts ...Option) *Context {
	c := &Context{
		store:   store,
		profile: profile,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the browser profile this session belongs to.
func (c *Context) Profile() string { return c.profile }

// Hydrate loads persisted credentials. Expired tokens are discarded.
func (c *Context) Hydrate(ctx context.Context) error {
	raw, ok, err := c.store.Get(ctx, c.profile, storeKey)
	if err != nil {
		return fmt.Errorf("session: hydrate: %w", err)
	}
	if !ok {
		return nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		c.logger.Warn("session: dropping unreadable stored session", zap.Error(err))
		return c.store.Delete(ctx, c.profile, storeKey)
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = TokenExpiry(s.Token)
	}
	if strings.TrimSpace(s.Token) == "" || s.Expired(c.now()) {
		c.logger.Debug("session: stored token expired", zap.String("profile", c.profile))
		return c.store.Delete(ctx, c.profile, storeKey)
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return nil
}

// Set replaces the session and persists it.
func (c *Context) Set(ctx context.Context, s Session) error {
	s.Token = strings.TrimSpace(s.Token)
	if s.Token == "" {
		return domain.E(domain.KindValidation, "session.Set", "token is required")
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = TokenExpiry(s.Token)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := c.store.Put(ctx, c.profile, storeKey, raw); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return nil
}

// Invalidate drops credentials after the backend rejected them and notifies
// listeners (forced logout). It is a no-op when already signed out.
func (c *Context) Invalidate(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.current.Token == "" {
		c.mu.Unlock()
		return
	}
	c.current = Session{}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, c.profile, storeKey); err != nil {
		c.logger.Warn("session: failed to delete stored session", zap.Error(err))
	}
	c.logger.Info("session invalidated", zap.String("profile", c.profile), zap.String("reason", reason))
	for _, fn := range listeners {
		fn(reason)
	}
}

// Clear signs the shopper out.
func (c *Context) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.current = Session{}
	c.mu.Unlock()
	if err := c.store.Delete(ctx, c.profile, storeKey); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// OnInvalidate registers fn to run after Invalidate.
func (c *Context) OnInvalidate(fn Listener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Token returns the bearer token, or "" when signed out or expired.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current.Expired(c.now()) {
		return ""
	}
	return c.current.Token
}

// User returns the signed-in user.
func (c *Context) User() (domain.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current.Token == "" || c.current.Expired(c.now()) {
		return domain.User{}, false
	}
	return c.current.User, true
}

// Authenticated reports whether a usable token is present.
func (c *Context) Authenticated() bool {
	return c.Token() != ""
}

// Current returns a copy of the session.
func (c *Context) Current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.current
	s.User.Roles = append([]string(nil), s.User.Roles...)
	return s
}

// TokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on validity. Opaque tokens yield zero.
func TokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

var _ Provider = (*Context)(nil)
