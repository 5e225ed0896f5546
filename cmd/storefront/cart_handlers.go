package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/cart"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/httpx"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
)

type cartView struct {
	Items    []domain.CartItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal domain.Money      `json:"subtotal"`
	Changed  *bool             `json:"changed,omitempty"`
}

func buildCartView(c *cart.Store) cartView {
	items := c.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return cartView{
		Items:    items,
		Count:    domain.CartCount(items),
		Subtotal: domain.CartSubtotal(items),
	}
}

// handleCart serves the server cart for signed-in shoppers and the cached
// copy otherwise or when the backend is unreachable.
func (s *server) handleCart(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if p.session.Authenticated() {
		if err := p.cart.Reload(r.Context()); err != nil {
			if domain.KindOf(err) == domain.KindSessionExpired {
				s.writeError(w, r, err)
				return
			}
			observability.FromContext(r.Context()).Warn("cart: serving cached items", zap.Error(err))
		}
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartView(p.cart))
}

type addItemRequest struct {
	ProductID domain.ID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (s *server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	req := addItemRequest{Quantity: 1}
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	p := profileFrom(r)
	if err := p.cart.Add(r.Context(), req.ProductID, req.Quantity); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildCartView(p.cart))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (s *server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	p := profileFrom(r)
	changed, err := p.cart.SetQuantity(r.Context(), domain.ID(chi.URLParam(r, "itemID")), req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := buildCartView(p.cart)
	view.Changed = &changed
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (s *server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if err := p.cart.Remove(r.Context(), domain.ID(chi.URLParam(r, "itemID"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartView(p.cart))
}

func (s *server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if err := p.cart.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartView(p.cart))
}
