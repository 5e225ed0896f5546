package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/i18n"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
)

const backendToken = "tok-ana"

// backend is an in-memory stand-in for the marketplace REST API.
type backend struct {
	mu           sync.Mutex
	expired      bool
	cart         []map[string]any
	nextItem     int
	orderCreated bool
	shipping     string
	status       string
	profilePuts  []map[string]any
	payKeys      []string
	cardStatus   string
	polls        int
}

func newBackend() *backend {
	return &backend{nextItem: 1, shipping: "0.00", status: "CREATED", cardStatus: "FAILED"}
}

func (b *backend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = true
}

func (b *backend) orderJSON() map[string]any {
	total := map[string]string{"0.00": "200.00", "15.00": "215.00", "32.90": "232.90"}[b.shipping]
	return map[string]any{
		"orderId":      42,
		"userId":       15,
		"buyerEmail":   "ana@example.com",
		"items":        []map[string]any{{"productId": 9, "productName": "Caneca", "priceAtTheTime": json.Number("100.00"), "quantity": 2}},
		"shippingCost": json.Number(b.shipping),
		"totalAmount":  json.Number(total),
		"status":       b.status,
	}
}

func writeBackendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handler(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body["password"] != "secret" {
			writeBackendJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Credenciais inválidas"})
			return
		}
		writeBackendJSON(w, http.StatusOK, map[string]any{
			"userId": 15, "userName": "Ana", "email": body["email"], "roles": []string{"BUYER"}, "token": backendToken,
		})
	})

	product := map[string]any{
		"product_ID":    9,
		"productName":   "Caneca",
		"productPrice":  json.Number("100.00"),
		"stockQuantity": 3,
		"category":      map[string]any{"category_ID": 3, "name": "Cozinha"},
		"seller":        map[string]any{"user_ID": 7, "userName": "Loja Sé", "password": "hash"},
	}
	r.Get("/api/products", func(w http.ResponseWriter, req *http.Request) {
		writeBackendJSON(w, http.StatusOK, []any{product})
	})
	r.Get("/api/products/{productID}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "productID") != "9" {
			writeBackendJSON(w, http.StatusNotFound, map[string]any{"message": "Produto não encontrado"})
			return
		}
		writeBackendJSON(w, http.StatusOK, product)
	})
	r.Get("/api/products/category/{categoryID}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "categoryID") != "3" {
			writeBackendJSON(w, http.StatusOK, []any{})
			return
		}
		writeBackendJSON(w, http.StatusOK, []any{product})
	})
	r.Get("/api/categories", func(w http.ResponseWriter, req *http.Request) {
		writeBackendJSON(w, http.StatusOK, []any{map[string]any{"category_ID": 3, "name": "Cozinha"}})
	})
	r.Get("/api/categories/{categoryID}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "categoryID") != "3" {
			writeBackendJSON(w, http.StatusNotFound, map[string]any{"message": "Categoria não encontrada"})
			return
		}
		writeBackendJSON(w, http.StatusOK, map[string]any{"category_ID": 3, "name": "Cozinha"})
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				b.mu.Lock()
				expired := b.expired
				b.mu.Unlock()
				if expired || req.Header.Get("Authorization") != "Bearer "+backendToken {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, req)
			})
		})

		r.Get("/api/cart-items/user/{userID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			out := b.cart
			if out == nil {
				out = []map[string]any{}
			}
			writeBackendJSON(w, http.StatusOK, out)
		})
		r.Post("/api/cart-items", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				ProductID int `json:"productId"`
				Quantity  int `json:"quantity"`
			}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			if body.ProductID == 13 {
				writeBackendJSON(w, http.StatusBadRequest, map[string]any{"status": 400, "message": "Estoque insuficiente para o produto <b>Caneca</b>"})
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			b.cart = append(b.cart, map[string]any{
				"cartItem_ID": b.nextItem, "productId": body.ProductID, "productName": "Caneca",
				"price": json.Number("100.00"), "quantity": body.Quantity,
			})
			b.nextItem++
			w.WriteHeader(http.StatusCreated)
		})

		r.Post("/api/orders", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.orderCreated = true
			b.cart = nil
			writeBackendJSON(w, http.StatusCreated, b.orderJSON())
		})
		r.Get("/api/orders/user/{userID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			out := []map[string]any{}
			if b.orderCreated {
				out = append(out, b.orderJSON())
			}
			writeBackendJSON(w, http.StatusOK, out)
		})
		r.Get("/api/orders/{orderID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if chi.URLParam(req, "orderID") != "42" || !b.orderCreated {
				writeBackendJSON(w, http.StatusNotFound, map[string]any{"message": "Pedido não encontrado"})
				return
			}
			writeBackendJSON(w, http.StatusOK, b.orderJSON())
		})
		r.Patch("/api/orders/{orderID}/shipping", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]json.Number
			dec := json.NewDecoder(req.Body)
			dec.UseNumber()
			require.NoError(t, dec.Decode(&body))
			b.mu.Lock()
			defer b.mu.Unlock()
			b.shipping = body["shippingCost"].String()
			writeBackendJSON(w, http.StatusOK, b.orderJSON())
		})

		r.Get("/api/shipping/calculate/{postalCode}", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "postalCode") != "01001000" {
				writeBackendJSON(w, http.StatusOK, []any{})
				return
			}
			writeBackendJSON(w, http.StatusOK, []map[string]any{
				{"name": "PAC", "price": json.Number("15.00"), "days": 7},
				{"name": "SEDEX", "price": json.Number("32.90"), "days": 2},
			})
		})

		r.Put("/api/users/{userID}", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			b.mu.Lock()
			defer b.mu.Unlock()
			b.profilePuts = append(b.profilePuts, body)
			w.WriteHeader(http.StatusOK)
		})

		r.Get("/api/payments/status/{transactionID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.polls++
			if b.polls == 1 {
				writeBackendJSON(w, http.StatusOK, map[string]any{"transactionId": chi.URLParam(req, "transactionID"), "status": "PENDING"})
				return
			}
			b.status = "PAID"
			writeBackendJSON(w, http.StatusOK, map[string]any{"transactionId": chi.URLParam(req, "transactionID"), "status": "COMPLETED"})
		})
		r.Post("/api/payments/{method}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.payKeys = append(b.payKeys, req.Header.Get("Idempotency-Key"))
			if chi.URLParam(req, "method") == "card" {
				writeBackendJSON(w, http.StatusOK, map[string]any{"transactionId": "card-1", "status": b.cardStatus})
				return
			}
			b.status = "PENDING"
			writeBackendJSON(w, http.StatusOK, map[string]any{
				"transactionId": "pix-1",
				"status":        "PENDING",
				"qrCode":        "00020126580014br.gov.bcb.pix0136a629532e-7693-4846-852d-1bbff817b5a8",
			})
		})
	})
	return r
}

type shopperClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newStorefront(t *testing.T) (*shopperClient, *backend) {
	t.Helper()
	c, b, _ := startStorefront(t, config.ProfilesConfig{})
	return c, b
}

func startStorefront(t *testing.T, limits config.ProfilesConfig) (*shopperClient, *backend, *server) {
	t.Helper()
	b := newBackend()
	upstream := httptest.NewServer(b.handler(t))
	t.Cleanup(upstream.Close)

	transport, err := api.New(upstream.URL+"/api", api.WithPolicy(api.Policy{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	bundle, err := i18n.Default("pt-BR")
	require.NoError(t, err)

	cfg := config.Config{
		Cookie:   config.CookieConfig{HashKey: []byte(strings.Repeat("k", 32))},
		Profiles: limits,
	}
	srv := newServer(cfg, zap.NewNop(), bundle, localstore.NewMemoryStore(), transport, nil)
	front := httptest.NewServer(srv.routes())
	t.Cleanup(front.Close)

	return newShopper(t, front.URL), b, srv
}

func newShopper(t *testing.T, base string) *shopperClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &shopperClient{t: t, base: base, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (c *shopperClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Accept-Language", "en")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		require.NoError(c.t, dec.Decode(&out))
	}
	return resp.StatusCode, out
}

func (c *shopperClient) login() {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "secret"})
	require.Equal(c.t, http.StatusOK, status, body)
	require.Equal(c.t, true, body["authenticated"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	resp, err := c.http.Get(c.base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(raw))
}

func TestProfileCookieIsIssuedOnce(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	resp, err := c.http.Get(c.base + "/cart")
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, resp.Cookies(), 1)
	require.Equal(t, profileCookieName, resp.Cookies()[0].Name)
	require.True(t, resp.Cookies()[0].HttpOnly)

	resp, err = c.http.Get(c.base + "/cart")
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Cookies())
}

func TestCartMutationPromptsLogin(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	status, body := c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 9, "quantity": 1})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "auth_required", body["error"])
	require.Equal(t, true, body["login_required"])
	require.Equal(t, "Please sign in to continue.", body["message"])
}

func TestLoginRejected(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	status, body := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "auth_required", body["error"])

	_, body = c.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, false, body["authenticated"])
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	status, body := c.do(http.MethodPost, "/auth/login", map[string]string{"mail": "x"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "bad_request", body["error"])
}

func TestCheckoutFlow(t *testing.T) {
	t.Parallel()
	c, b := newStorefront(t)
	c.login()

	status, body := c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 9, "quantity": 2})
	require.Equal(t, http.StatusCreated, status, body)
	require.Equal(t, json.Number("2"), body["count"])
	require.Equal(t, json.Number("200.00"), body["subtotal"])

	status, body = c.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, status, body)
	require.Equal(t, "ADDRESS", body["state"])
	require.Equal(t, json.Number("42"), body["orderId"])

	status, body = c.do(http.MethodPost, "/checkout/42/postal-code", map[string]string{"postalCode": "01001-000"})
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, body["shippingOptions"], 2)
	require.Equal(t, json.Number("215.00"), body["finalAmount"])

	address := map[string]any{
		"taxId": "123",
		"phone": "(11) 98765-4321",
		"address": map[string]string{
			"street": "Praça da Sé", "number": "100", "neighborhood": "Sé", "city": "São Paulo", "state": "SP",
		},
	}
	status, body = c.do(http.MethodPost, "/checkout/42/address", address)
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	require.Equal(t, "validation_error", body["error"])
	require.Equal(t, map[string]any{"taxId": "invalid"}, body["fields"])
	require.Equal(t, map[string]any{"taxId": "Tax ID"}, body["field_labels"])
	b.mu.Lock()
	require.Empty(t, b.profilePuts)
	b.mu.Unlock()

	address["taxId"] = "529.982.247-25"
	status, body = c.do(http.MethodPost, "/checkout/42/address", address)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "PAYMENT", body["state"])
	require.Equal(t, json.Number("215.00"), body["finalAmount"])
	b.mu.Lock()
	require.Len(t, b.profilePuts, 1)
	require.Equal(t, "52998224725", b.profilePuts[0]["cpf"])
	require.Equal(t, "15.00", b.shipping)
	b.mu.Unlock()

	status, body = c.do(http.MethodPost, "/checkout/42/payments/card", map[string]any{"token": "tok_visa", "paymentMethodId": "visa"})
	require.Equal(t, http.StatusPaymentRequired, status, body)
	require.Equal(t, "payment_declined", body["error"])
	require.Equal(t, "FAILED", body["payment_status"])
	require.Equal(t, "Payment was not approved (status: FAILED).", body["message"])

	status, body = c.do(http.MethodPost, "/checkout/42/payments/pix", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "SUCCESS", body["state"])
	require.Equal(t, "/checkout/42/pix.png", body["pixQrCodeUrl"])
	require.Len(t, body["attempts"], 2)

	b.mu.Lock()
	require.Len(t, b.payKeys, 2)
	require.NotEqual(t, b.payKeys[0], b.payKeys[1])
	b.mu.Unlock()

	resp, err := c.http.Get(c.base + "/checkout/42/pix.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	status, body = c.do(http.MethodGet, "/checkout/42/payment-status", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "AWAITING_PAYMENT", body["orderStatus"])
	status, body = c.do(http.MethodGet, "/checkout/42/payment-status", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "SUCCESS", body["state"])
	require.Equal(t, "PAID", body["orderStatus"])
	settlement, ok := body["settlement"].(map[string]any)
	require.True(t, ok, body)
	require.Equal(t, "COMPLETED", settlement["status"])
	require.Equal(t, "/checkout/42/pix.png", body["pixQrCodeUrl"])

	status, body = c.do(http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["orders"], 1)
}

func TestCheckoutWithoutShippingStaysInAddress(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()
	c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 9, "quantity": 2})
	status, _ := c.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, status)

	status, body := c.do(http.MethodPost, "/checkout/42/postal-code", map[string]string{"postalCode": "99999-999"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ADDRESS", body["state"])
	shippingErr, ok := body["shippingError"].(map[string]any)
	require.True(t, ok, body)
	require.Equal(t, "shipping_unavailable", shippingErr["code"])
	require.Equal(t, "No delivery options for this postal code.", shippingErr["message"])

	status, body = c.do(http.MethodPost, "/checkout/42/postal-code", map[string]string{"postalCode": "123"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "validation_error", body["error"])
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()
	status, body := c.do(http.MethodGet, "/checkout/999", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "order_not_found", body["error"])
}

func TestEmptyCartCannotCheckout(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()
	status, body := c.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, map[string]any{"cart": "empty"}, body["fields"])
}

func TestExpiredSessionForcesLogout(t *testing.T) {
	t.Parallel()
	c, b := newStorefront(t)
	c.login()
	b.expire()

	status, body := c.do(http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "session_expired", body["error"])
	require.Equal(t, true, body["login_required"])

	_, body = c.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, false, body["authenticated"])
}

func TestLogout(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()
	status, _ := c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	_, body := c.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, false, body["authenticated"])
	status, _ = c.do(http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestBackendRejectionKeepsItsMessage(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()

	status, body := c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 13, "quantity": 5})
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	require.Equal(t, "request_rejected", body["error"])
	require.Equal(t, "Estoque insuficiente para o produto Caneca", body["message"])
}

func TestUnsupportedPaymentMethod(t *testing.T) {
	t.Parallel()
	c, b := newStorefront(t)
	c.login()
	c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 9, "quantity": 2})
	status, _ := c.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, status)

	status, body := c.do(http.MethodPost, "/checkout/42/payments/boleto", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, map[string]any{"method": "unsupported"}, body["fields"])
	require.Equal(t, map[string]any{"method": "Payment method"}, body["field_labels"])
	b.mu.Lock()
	require.Empty(t, b.payKeys)
	b.mu.Unlock()
}

func TestPixCodeMissingIsLocalized(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)
	c.login()
	c.do(http.MethodPost, "/cart/items", map[string]any{"productId": 9, "quantity": 2})
	status, _ := c.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, status)

	status, body := c.do(http.MethodGet, "/checkout/42/pix.png", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", body["error"])
	require.Equal(t, "There is no Pix code for this order.", body["message"])

	status, body = c.do(http.MethodGet, "/checkout/42/payment-status", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_state", body["error"])
}

func TestProfileRegistryIsBounded(t *testing.T) {
	t.Parallel()
	c, _, srv := startStorefront(t, config.ProfilesConfig{Max: 3, IdleTTL: time.Hour})

	// No cookie jar: every request is a first-time visitor.
	for i := 0; i < 50; i++ {
		resp, err := http.Get(c.base + "/cart")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.LessOrEqual(t, srv.profiles.size(), 3)
}

func TestIdleProfilesAreDropped(t *testing.T) {
	t.Parallel()
	reg := newRegistry(localstore.NewMemoryStore(), nil, zap.NewNop(), 0, config.ProfilesConfig{Max: 100, IdleTTL: time.Minute})
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	transport, err := api.New("http://backend.invalid/api")
	require.NoError(t, err)
	reg.transport = transport
	ctx := context.Background()

	first, err := reg.get(ctx, newProfileID(), true)
	require.NoError(t, err)
	kept := newProfileID()
	_, err = reg.get(ctx, kept, true)
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	_, err = reg.get(ctx, kept, false)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = reg.get(ctx, newProfileID(), true)
	require.NoError(t, err)
	require.Equal(t, 2, reg.size())

	again, err := reg.get(ctx, first.id, false)
	require.NoError(t, err)
	require.NotSame(t, first, again)
}

func TestEvictedProfileKeepsItsSession(t *testing.T) {
	t.Parallel()
	c, _, srv := startStorefront(t, config.ProfilesConfig{Max: 1, IdleTTL: time.Hour})
	c.login()

	other := newShopper(t, c.base)
	status, _ := other.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, srv.profiles.size())

	_, body := c.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, true, body["authenticated"])
}

func TestUnknownOrderIsNotKept(t *testing.T) {
	t.Parallel()
	c, _, srv := startStorefront(t, config.ProfilesConfig{})
	c.login()
	for _, id := range []string{"900", "901", "902"} {
		status, _ := c.do(http.MethodGet, "/checkout/"+id, nil)
		require.Equal(t, http.StatusNotFound, status)
	}

	srv.profiles.mu.Lock()
	defer srv.profiles.mu.Unlock()
	require.Len(t, srv.profiles.profiles, 1)
	for _, e := range srv.profiles.profiles {
		e.profile.mu.Lock()
		require.Empty(t, e.profile.checkouts)
		e.profile.mu.Unlock()
	}
}

func TestCatalogBrowsing(t *testing.T) {
	t.Parallel()
	c, _ := newStorefront(t)

	resp, err := c.http.Get(c.base + "/products")
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Cookies())

	status, body := c.do(http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, json.Number("1"), body["count"])

	status, body = c.do(http.MethodGet, "/products/9", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "Caneca", body["name"])
	require.Equal(t, json.Number("100.00"), body["price"])
	require.Equal(t, true, body["inStock"])
	require.Equal(t, map[string]any{"id": json.Number("7"), "name": "Loja Sé"}, body["seller"])

	status, body = c.do(http.MethodGet, "/products/77", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", body["error"])
	require.Equal(t, "We could not find what you were looking for.", body["message"])

	status, body = c.do(http.MethodGet, "/products?category=3", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["products"], 1)

	status, body = c.do(http.MethodGet, "/products?category=3&seller=7", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, map[string]any{"category": "conflict", "seller": "conflict"}, body["fields"])

	status, body = c.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["categories"], 1)

	status, body = c.do(http.MethodGet, "/categories/3", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"id": json.Number("3"), "name": "Cozinha"}, body["category"])
	require.Len(t, body["products"], 1)

	status, _ = c.do(http.MethodGet, "/categories/8", nil)
	require.Equal(t, http.StatusNotFound, status)
}
