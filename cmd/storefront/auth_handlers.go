package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/httpx"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
	"github.com/KelvenAlvess/marketplace-storefront/internal/session"
	"github.com/KelvenAlvess/marketplace-storefront/internal/users"
)

type sessionView struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

func buildSessionView(sess *session.Context) sessionView {
	cur := sess.Current()
	if !sess.Authenticated() {
		return sessionView{}
	}
	v := sessionView{Authenticated: true, User: &cur.User}
	if !cur.ExpiresAt.IsZero() {
		exp := cur.ExpiresAt.UTC()
		v.ExpiresAt = &exp
	}
	return v
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, buildSessionView(profileFrom(r).session))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	p := profileFrom(r)
	sess, err := p.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.signIn(w, r, p, sess, http.StatusOK)
}

type registerRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	TaxID    string   `json:"taxId"`
	Phone    string   `json:"phone"`
	Address  string   `json:"address"`
	Roles    []string `json:"roles"`
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, r)
		return
	}
	p := profileFrom(r)
	sess, err := p.users.Register(r.Context(), users.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		TaxID:    req.TaxID,
		Phone:    req.Phone,
		Address:  req.Address,
		Roles:    req.Roles,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.signIn(w, r, p, sess, http.StatusCreated)
}

// signIn stores the session and pulls the server cart for the new user.
func (s *server) signIn(w http.ResponseWriter, r *http.Request, p *profile, sess session.Session, status int) {
	ctx := r.Context()
	p.reset(ctx)
	if err := p.session.Set(ctx, sess); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := p.cart.Reload(ctx); err != nil {
		observability.FromContext(ctx).Warn("login: cart reload failed", zap.Error(err))
	}
	httpx.WriteJSON(w, status, buildSessionView(p.session))
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	ctx := r.Context()
	if err := p.session.Clear(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	p.reset(ctx)
	w.WriteHeader(http.StatusNoContent)
}
