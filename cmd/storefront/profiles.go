package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/cart"
	"github.com/KelvenAlvess/marketplace-storefront/internal/checkout"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
	"github.com/KelvenAlvess/marketplace-storefront/internal/orders"
	"github.com/KelvenAlvess/marketplace-storefront/internal/payments"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
	"github.com/KelvenAlvess/marketplace-storefront/internal/session"
	"github.com/KelvenAlvess/marketplace-storefront/internal/shipping"
	"github.com/KelvenAlvess/marketplace-storefront/internal/users"
)

const (
	profileCookieName = "storefront_profile"
	profileLifetime   = 365 * 24 * time.Hour
)

// profileCookies issues and reads the signed cookie naming a browser profile.
type profileCookies struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func newProfileCookies(cfg config.CookieConfig, logger *zap.Logger) *profileCookies {
	hashKey, blockKey := cfg.HashKey, cfg.BlockKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
		logger.Warn("profile cookie: using ephemeral hash key; set STOREFRONT_COOKIE_HASH_KEY to keep profiles across restarts")
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(profileLifetime.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &profileCookies{codec: codec, secure: cfg.Secure}
}

func (c *profileCookies) read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(profileCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var id string
	if err := c.codec.Decode(profileCookieName, cookie.Value, &id); err != nil {
		return "", false
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", false
	}
	return id, true
}

func (c *profileCookies) write(w http.ResponseWriter, id string) error {
	encoded, err := c.codec.Encode(profileCookieName, id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     profileCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(profileLifetime.Seconds()),
	})
	return nil
}

func newProfileID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// profile is everything the storefront keeps for one browser profile.
type profile struct {
	id       string
	session  *session.Context
	cart     *cart.Store
	orders   *orders.Client
	users    *users.Client
	payments *payments.Client
	deps     checkout.Deps
	logger   *zap.Logger

	mu        sync.Mutex
	checkouts map[domain.ID]*checkout.Orchestrator
}

// checkout returns the orchestrator for orderID, loading the order the first
// time it is seen and again when a previous load failed. Orders that fail to
// load are not kept.
func (p *profile) checkout(ctx context.Context, orderID domain.ID) (*checkout.Orchestrator, error) {
	if orderID.Empty() {
		return nil, domain.E(domain.KindOrderNotFound, "storefront.checkout", "order id is required")
	}
	p.mu.Lock()
	o, ok := p.checkouts[orderID]
	if !ok {
		o = checkout.New(p.deps, orderID)
		p.checkouts[orderID] = o
	}
	p.mu.Unlock()

	switch o.Snapshot().State {
	case checkout.StateLoadingOrder, checkout.StateError:
		if err := o.Load(ctx); err != nil && !errors.Is(err, domain.ErrInvalidState) {
			p.forget(orderID, o)
			return o, err
		}
	}
	return o, nil
}

func (p *profile) forget(orderID domain.ID, o *checkout.Orchestrator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkouts[orderID] == o {
		delete(p.checkouts, orderID)
	}
}

func (p *profile) adopt(o *checkout.Orchestrator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkouts[o.OrderID()] = o
}

// reset drops per-user state after logout or a forced logout.
func (p *profile) reset(ctx context.Context) {
	p.mu.Lock()
	p.checkouts = map[domain.ID]*checkout.Orchestrator{}
	p.mu.Unlock()
	if err := p.cart.Forget(ctx); err != nil {
		p.logger.Warn("profile: failed to forget cart", zap.Error(err))
	}
}

// registry hands out profiles. Session and cart live in the local store and an
// open checkout is rebuilt by reloading its order, so the in-memory set is only
// a cache: idle entries are dropped after idleTTL and the least recently used
// one goes when the set is full.
type registry struct {
	store     localstore.Store
	transport *api.Client
	logger    *zap.Logger
	debounce  time.Duration
	idleTTL   time.Duration
	max       int
	now       func() time.Time

	mu        sync.Mutex
	profiles  map[string]*registryEntry
	lastSweep time.Time
}

type registryEntry struct {
	profile *profile
	seen    time.Time
}

func newRegistry(store localstore.Store, transport *api.Client, logger *zap.Logger, debounce time.Duration, limits config.ProfilesConfig) *registry {
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = 30 * time.Minute
	}
	if limits.Max <= 0 {
		limits.Max = 10000
	}
	return &registry{
		store:     store,
		transport: transport,
		logger:    logger,
		debounce:  debounce,
		idleTTL:   limits.IdleTTL,
		max:       limits.Max,
		now:       time.Now,
		profiles:  map[string]*registryEntry{},
	}
}

// get returns the profile for id. fresh marks an id minted for this request,
// which has nothing to hydrate. Store reads happen outside the registry lock.
func (r *registry) get(ctx context.Context, id string, fresh bool) (*profile, error) {
	r.mu.Lock()
	if e, ok := r.profiles[id]; ok {
		e.seen = r.now()
		r.mu.Unlock()
		return e.profile, nil
	}
	r.mu.Unlock()

	built, err := r.build(ctx, id, fresh)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.profiles[id]; ok {
		e.seen = now
		return e.profile, nil
	}
	r.profiles[id] = &registryEntry{profile: built, seen: now}
	r.evictLocked(now, id)
	return built, nil
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles)
}

// evictLocked drops idle profiles at most once per quarter TTL, then trims
// the least recently seen ones other than keep down to max.
func (r *registry) evictLocked(now time.Time, keep string) {
	if now.Sub(r.lastSweep) >= r.idleTTL/4 || len(r.profiles) > r.max {
		r.lastSweep = now
		for id, e := range r.profiles {
			if now.Sub(e.seen) > r.idleTTL {
				delete(r.profiles, id)
			}
		}
	}
	for len(r.profiles) > r.max {
		oldestID := ""
		var oldest time.Time
		for id, e := range r.profiles {
			if id == keep {
				continue
			}
			if oldestID == "" || e.seen.Before(oldest) {
				oldestID, oldest = id, e.seen
			}
		}
		if oldestID == "" {
			return
		}
		delete(r.profiles, oldestID)
	}
}

func (r *registry) build(ctx context.Context, id string, fresh bool) (*profile, error) {
	logger := r.logger.With(zap.String("profile", id))
	sess := session.New(r.store, id, session.WithLogger(logger))
	if !fresh {
		if err := sess.Hydrate(ctx); err != nil {
			return nil, err
		}
	}
	transport := r.transport.WithSession(sess)
	userClient := users.New(transport)
	p := &profile{
		id:        id,
		session:   sess,
		cart:      cart.New(transport, sess, r.store, id, cart.WithLogger(logger)),
		orders:    orders.New(transport),
		users:     userClient,
		payments:  payments.New(transport),
		logger:    logger,
		checkouts: map[domain.ID]*checkout.Orchestrator{},
	}
	p.deps = checkout.Deps{
		Orders:   p.orders,
		Shipping: shipping.New(transport),
		Payments: p.payments,
		Profiles: userClient,
		Identity: sess,
		Logger:   logger,
		Debounce: r.debounce,
	}
	if !fresh {
		if err := p.cart.Hydrate(ctx); err != nil {
			logger.Warn("profile: cart cache unreadable", zap.Error(err))
		}
	}
	sess.OnInvalidate(func(reason string) {
		logger.Info("profile: forced logout", zap.String("reason", reason))
		p.reset(context.Background())
	})
	return p, nil
}
