// Package cart mirrors the shopper's server-side cart and caches it per
// browser profile so in-progress selections survive a restart.
package cart

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
)

const cacheKey = "cart"

// Identity exposes the signed-in shopper.
type Identity interface {
	User() (domain.User, bool)
}

// Store is the cart for one browser profile.
type Store struct {
	api     *api.Client
	id      Identity
	cache   localstore.Store
	profile string
	logger  *zap.Logger

	// opMu serialises mutations; mu guards items.
	opMu  sync.Mutex
	mu    sync.RWMutex
	items []domain.CartItem
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds an empty cart. transport must carry the profile's session.
func New(transport *api.Client, id Identity, cache localstore.Store, profile string, opts ...Option) *Store {
	s := &Store{
		api:     transport,
		id:      id,
		cache:   cache,
		profile: profile,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate restores the cached items without contacting the backend.
func (s *Store) Hydrate(ctx context.Context) error {
	raw, ok, err := s.cache.Get(ctx, s.profile, cacheKey)
	if err != nil || !ok {
		return err
	}
	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("cart: dropping unreadable cache", zap.Error(err))
		return s.cache.Delete(ctx, s.profile, cacheKey)
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem(nil), s.items...)
}

// Count is the total quantity across lines.
func (s *Store) Count() int { return domain.CartCount(s.Items()) }

// Subtotal is the sum of line subtotals.
func (s *Store) Subtotal() domain.Money { return domain.CartSubtotal(s.Items()) }

// Reload replaces local state with the server cart.
func (s *Store) Reload(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.reload(ctx)
}

// Add puts qty units of a product in the cart. Without a signed-in shopper it
// fails with domain.ErrAuthRequired so the caller can prompt for login.
func (s *Store) Add(ctx context.Context, productID domain.ID, qty int) error {
	const op = "cart.Add"
	user, err := s.requireUser(op)
	if err != nil {
		return err
	}
	fields := domain.FieldErrors{}
	if productID.Empty() {
		fields["productId"] = "required"
	}
	if qty < 1 {
		fields["quantity"] = "invalid"
	}
	if len(fields) > 0 {
		return domain.Validation(op, fields)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	body := struct {
		UserID    domain.ID `json:"userId"`
		ProductID domain.ID `json:"productId"`
		Quantity  int       `json:"quantity"`
	}{UserID: user.ID, ProductID: productID, Quantity: qty}
	if err := s.api.Post(ctx, "/cart-items", body, nil); err != nil {
		return err
	}
	return s.reload(ctx)
}

// SetQuantity changes a line's quantity. qty below one is ignored and reports
// changed=false without touching any state.
func (s *Store) SetQuantity(ctx context.Context, itemID domain.ID, qty int) (bool, error) {
	const op = "cart.SetQuantity"
	if qty < 1 {
		return false, nil
	}
	if _, err := s.requireUser(op); err != nil {
		return false, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	current, ok := s.find(itemID)
	if !ok {
		return false, domain.Validation(op, domain.FieldErrors{"itemId": "not_found"})
	}
	if current.Quantity == qty {
		return false, nil
	}
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: qty}
	if err := s.api.Put(ctx, api.PathEscape("cart-items", itemID.String()), body, nil); err != nil {
		return false, err
	}
	return true, s.reload(ctx)
}

// Remove deletes a line in two phases. The line disappears locally first;
// the remote delete and reload follow. If either fails the local snapshot is
// restored and the cart is reloaded again to reconcile with the server.
func (s *Store) Remove(ctx context.Context, itemID domain.ID) error {
	const op = "cart.Remove"
	if _, err := s.requireUser(op); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	if _, ok := s.find(itemID); !ok {
		return domain.Validation(op, domain.FieldErrors{"itemId": "not_found"})
	}

	var snapshot []domain.CartItem
	return runSteps(ctx, s.logger,
		step{
			name: "remove-local",
			execute: func(ctx context.Context) error {
				s.mu.Lock()
				snapshot = append([]domain.CartItem(nil), s.items...)
				kept := make([]domain.CartItem, 0, len(s.items))
				for _, it := range s.items {
					if it.ID != itemID {
						kept = append(kept, it)
					}
				}
				s.items = kept
				s.mu.Unlock()
				s.persist(ctx)
				return nil
			},
			compensate: func(ctx context.Context) error {
				s.mu.Lock()
				s.items = snapshot
				s.mu.Unlock()
				s.persist(ctx)
				return s.reload(ctx)
			},
		},
		step{
			name: "delete-remote",
			execute: func(ctx context.Context) error {
				return s.api.Delete(ctx, api.PathEscape("cart-items", itemID.String()))
			},
		},
		step{
			name:    "reconcile",
			execute: s.reload,
		},
	)
}

// Clear deletes every line remotely, then empties the local cart. A failed
// delete stops the sweep and reloads so local state matches the server.
func (s *Store) Clear(ctx context.Context) error {
	const op = "cart.Clear"
	if _, err := s.requireUser(op); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	for _, it := range s.Items() {
		if err := s.api.Delete(ctx, api.PathEscape("cart-items", it.ID.String())); err != nil {
			if rerr := s.reload(ctx); rerr != nil {
				s.logger.Warn("cart: reload after failed clear", zap.Error(rerr))
			}
			return err
		}
	}
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// Forget drops local state and the cache, used on logout.
func (s *Store) Forget(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return s.cache.Delete(ctx, s.profile, cacheKey)
}

func (s *Store) reload(ctx context.Context) error {
	user, err := s.requireUser("cart.Reload")
	if err != nil {
		return err
	}
	var items []domain.CartItem
	if err := s.api.Get(ctx, api.PathEscape("cart-items", "user", user.ID.String()), &items); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// persist writes the cache. Failures are logged; the server remains the source of truth.
func (s *Store) persist(ctx context.Context) {
	items := s.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err == nil {
		err = s.cache.Put(ctx, s.profile, cacheKey, raw)
	}
	if err != nil {
		s.logger.Warn("cart: cache write failed", zap.Error(err))
	}
}

func (s *Store) find(itemID domain.ID) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == itemID {
			return it, true
		}
	}
	return domain.CartItem{}, false
}

func (s *Store) requireUser(op string) (domain.User, error) {
	if s.id != nil {
		if user, ok := s.id.User(); ok && !user.ID.Empty() {
			return user, nil
		}
	}
	return domain.User{}, domain.E(domain.KindAuthRequired, op, "sign in to use the cart")
}
