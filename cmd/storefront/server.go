package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/catalog"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/i18n"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/httpx"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

type ctxKey string

const profileCtxKey ctxKey = "storefront.profile"

type server struct {
	logger   *zap.Logger
	bundle   *i18n.Bundle
	cookies  *profileCookies
	profiles *registry
	catalog  *catalog.Client
	tracing  trace.TracerProvider
}

func newServer(cfg config.Config, logger *zap.Logger, bundle *i18n.Bundle, store localstore.Store, transport *api.Client, tp trace.TracerProvider) *server {
	return &server{
		logger:   logger,
		bundle:   bundle,
		cookies:  newProfileCookies(cfg.Cookie, logger),
		profiles: newRegistry(store, transport, logger.Named("profile"), cfg.Checkout.ShippingDebounce, cfg.Profiles),
		catalog:  catalog.New(transport),
		tracing:  tp,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.InjectLogger(s.logger))
	r.Use(observability.RequestLogger)
	r.Use(observability.TraceRequests(s.tracing))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleProducts)
		r.Get("/{productID}", s.handleProduct)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.handleCategories)
		r.Get("/{categoryID}", s.handleCategory)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.withProfile)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", s.handleSession)
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.handleCart)
			r.Delete("/", s.handleCartClear)
			r.Post("/items", s.handleCartAdd)
			r.Put("/items/{itemID}", s.handleCartUpdate)
			r.Delete("/items/{itemID}", s.handleCartRemove)
		})

		r.Post("/checkout", s.handleCheckoutStart)
		r.Route("/checkout/{orderID}", func(r chi.Router) {
			r.Get("/", s.handleCheckoutView)
			r.Post("/postal-code", s.handleCheckoutPostalCode)
			r.Post("/shipping", s.handleCheckoutShipping)
			r.Post("/address", s.handleCheckoutAddress)
			r.Post("/back", s.handleCheckoutBack)
			r.Post("/payments/{method}", s.handleCheckoutPayment)
			r.Get("/payment-status", s.handleCheckoutPaymentStatus)
			r.Get("/pix.png", s.handleCheckoutPixQR)
		})

		r.Get("/orders", s.handleOrders)
	})
	return r
}

// withProfile resolves the browser profile from its signed cookie, minting a
// new one for first-time visitors.
func (s *server) withProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.cookies.read(r)
		if !ok {
			id = newProfileID()
			if err := s.cookies.write(w, id); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		p, err := s.profiles.get(r.Context(), id, !ok)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		logger := observability.FromContext(r.Context()).With(zap.String("profile", observability.SanitizeProfile(id)))
		ctx := observability.WithLogger(r.Context(), logger)
		ctx = context.WithValue(ctx, profileCtxKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileFrom(r *http.Request) *profile {
	p, _ := r.Context().Value(profileCtxKey).(*profile)
	return p
}

func (s *server) lang(r *http.Request) string {
	return s.bundle.Resolve(r.Header.Get("Accept-Language"))
}

// message renders the user-facing text for err in lang.
func (s *server) message(lang string, err error) string {
	kind := domain.KindOf(err)
	if kind == "" {
		return s.bundle.T(lang, "error.internal_error")
	}
	if _, upstream, ok := httpx.Rejection(err); ok {
		if upstream != "" {
			return upstream
		}
		return s.bundle.T(lang, "error.request_rejected")
	}
	if kind == domain.KindPaymentDeclined {
		status := domain.MessageOf(err)
		var derr *domain.Error
		if errors.As(err, &derr) && derr.Status != "" {
			status = derr.Status
		}
		return s.bundle.Tf(lang, "error.payment_declined", status)
	}
	return s.bundle.T(lang, "error."+string(kind))
}

func (s *server) fieldLabels(lang string, fields domain.FieldErrors) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	labels := make(map[string]string, len(fields))
	for _, name := range fields.Fields() {
		labels[name] = s.bundle.T(lang, "field."+name)
	}
	return labels
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := s.lang(r)
	w.Header().Set("Content-Language", lang)
	env := httpx.FromDomain(err, s.message(lang, err))
	if labels := s.fieldLabels(lang, domain.FieldsOf(err)); labels != nil {
		env = env.WithDetails(map[string]any{"field_labels": labels})
	}
	if env.Status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	httpx.WriteError(r.Context(), w, env)
}

func (s *server) writeBadRequest(w http.ResponseWriter, r *http.Request) {
	lang := s.lang(r)
	w.Header().Set("Content-Language", lang)
	httpx.WriteError(r.Context(), w, httpx.NewError("bad_request", s.bundle.T(lang, "error.bad_request"), http.StatusBadRequest))
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
