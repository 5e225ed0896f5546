package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/checkout"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/payments"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/httpx"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

func (s *server) renderCheckout(w http.ResponseWriter, r *http.Request, status int, o *checkout.Orchestrator) {
	lang := s.lang(r)
	w.Header().Set("Content-Language", lang)
	httpx.WriteJSON(w, status, s.buildCheckoutView(lang, o.Snapshot()))
}

// orchestrator resolves {orderID} for the current profile, writing the error
// response itself when the order cannot be loaded.
func (s *server) orchestrator(w http.ResponseWriter, r *http.Request) (*checkout.Orchestrator, bool) {
	o, err := profileFrom(r).checkout(r.Context(), domain.ID(chi.URLParam(r, "orderID")))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return o, true
}

func (s *server) handleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	ctx := r.Context()
	o, err := checkout.StartFromCart(ctx, p.deps, p.cart)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p.adopt(o)
	if err := p.cart.Reload(ctx); err != nil {
		observability.FromContext(ctx).Warn("checkout: cart reload after order creation failed", zap.Error(err))
	}
	s.renderCheckout(w, r, http.StatusCreated, o)
}

func (s *server) handleCheckoutView(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

type postalCodeRequest struct {
	PostalCode string `json:"postalCode"`
}

// handleCheckoutPostalCode answers 200 when no shipping is available for the
// code; the failure is part of the rendered checkout, not of the request.
func (s *server) handleCheckoutPostalCode(w http.ResponseWriter, r *http.Request) {
	var req postalCodeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	if err := o.CommitPostalCode(r.Context(), req.PostalCode); err != nil && !errors.Is(err, domain.ErrShippingUnavailable) {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

type shippingRequest struct {
	Name string `json:"name"`
}

func (s *server) handleCheckoutShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	if err := o.SelectShipping(req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

type addressRequest struct {
	TaxID   string         `json:"taxId"`
	Phone   string         `json:"phone"`
	Address domain.Address `json:"address"`
}

func (s *server) handleCheckoutAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	err := o.SubmitAddress(r.Context(), checkout.AddressForm{
		TaxID:   req.TaxID,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

func (s *server) handleCheckoutBack(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	if err := o.BackToAddress(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

type cardRequest struct {
	Token           string `json:"token"`
	PaymentMethodID string `json:"paymentMethodId"`
	Installments    int    `json:"installments"`
}

// handleCheckoutPayment submits a payment with the method named in the path.
// Card payments carry the tokenized card in the body; Pix needs none.
func (s *server) handleCheckoutPayment(w http.ResponseWriter, r *http.Request) {
	method, ok := domain.ParsePaymentMethod(chi.URLParam(r, "method"))
	if !ok {
		s.writeError(w, r, domain.Validation("storefront.payment", domain.FieldErrors{"method": "unsupported"}))
		return
	}
	var req cardRequest
	if method == domain.MethodCard {
		if err := decode(r, &req); err != nil {
			s.writeBadRequest(w, r)
			return
		}
	}
	o, found := s.orchestrator(w, r)
	if !found {
		return
	}
	var err error
	switch method {
	case domain.MethodCard:
		_, err = o.PayCard(r.Context(), checkout.CardInput{
			Token:           req.Token,
			PaymentMethodID: req.PaymentMethodID,
			Installments:    req.Installments,
		})
	case domain.MethodPix:
		_, err = o.PayPix(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

// handleCheckoutPaymentStatus refreshes a pending settlement, so a Pix page
// can poll until the transfer lands.
func (s *server) handleCheckoutPaymentStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	if _, err := o.RefreshPayment(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderCheckout(w, r, http.StatusOK, o)
}

func (s *server) handleCheckoutPixQR(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orchestrator(w, r)
	if !ok {
		return
	}
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQRSize {
			s.writeBadRequest(w, r)
			return
		}
		size = n
	}
	v := o.Snapshot()
	if v.Settlement == nil {
		s.writeNoPixCode(w, r)
		return
	}
	png, err := payments.PixQRCode(*v.Settlement, size)
	if errors.Is(err, payments.ErrNoQRCode) {
		s.writeNoPixCode(w, r)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *server) writeNoPixCode(w http.ResponseWriter, r *http.Request) {
	lang := s.lang(r)
	w.Header().Set("Content-Language", lang)
	httpx.WriteError(r.Context(), w, httpx.NewError("not_found", s.bundle.T(lang, "error.pix_code_missing"), http.StatusNotFound))
}

func (s *server) handleOrders(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	user, ok := p.session.User()
	if !ok {
		s.writeError(w, r, domain.E(domain.KindAuthRequired, "storefront.orders", "sign in to see your orders"))
		return
	}
	list, err := p.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": list})
}
