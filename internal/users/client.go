// Package users covers authentication and shopper profile updates.
package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/session"
)

const (
	minPasswordLength = 6
	maxAddressLength  = 255
	defaultRole       = "BUYER"
)

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	TaxID    string
	Phone    string
	Address  string
	Roles    []string
}

// Profile holds the identity fields collected at checkout.
type Profile struct {
	Name    string
	Email   string
	TaxID   string
	Phone   string
	Address domain.Address
}

// Client calls the auth and user endpoints.
type Client struct {
	api *api.Client
}

// New wraps the transport.
func New(transport *api.Client) *Client {
	return &Client{api: transport}
}

type loginResponse struct {
	Token string
	User  domain.User
}

// UnmarshalJSON reads the flat login payload: token next to the user fields.
func (r *loginResponse) UnmarshalJSON(data []byte) error {
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &r.User); err != nil {
		return err
	}
	r.Token = strings.TrimSpace(tok.Token)
	return nil
}

// Login exchanges credentials for a session. Rejected credentials are
// reported as domain.ErrAuthRequired and never invalidate an existing session.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	const op = "users.Login"
	email = strings.TrimSpace(email)
	fields := domain.FieldErrors{}
	if email == "" {
		fields["email"] = "required"
	}
	if password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return session.Session{}, domain.Validation(op, fields)
	}

	var resp loginResponse
	err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		switch api.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return session.Session{}, &domain.Error{Kind: domain.KindAuthRequired, Op: op, Message: domain.MessageOf(err), Err: err}
		}
		return session.Session{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return session.Session{}, domain.E(domain.KindRemote, op, "login response without token")
	}
	user := resp.User
	if user.Email == "" {
		user.Email = email
	}
	return session.Session{Token: resp.Token, User: user}, nil
}

// Register creates the account and signs in with the same credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (session.Session, error) {
	const op = "users.Register"
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	req.TaxID = domain.NormalizeTaxID(req.TaxID)
	req.Phone = domain.NormalizePhone(req.Phone)

	fields := domain.FieldErrors{}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fields["email"] = "invalid"
	}
	if len(req.Password) < minPasswordLength {
		fields["password"] = "too_short"
	}
	if !domain.ValidTaxID(req.TaxID) {
		fields["taxId"] = "invalid"
	}
	if !domain.ValidPhone(req.Phone) {
		fields["phone"] = "invalid"
	}
	if req.Address == "" || len(req.Address) > maxAddressLength {
		fields["address"] = "invalid"
	}
	if len(fields) > 0 {
		return session.Session{}, domain.Validation(op, fields)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{defaultRole}
	}
	body := map[string]any{
		"userName":    req.Name,
		"email":       req.Email,
		"password":    req.Password,
		"cpf":         req.TaxID,
		"phoneNumber": req.Phone,
		"address":     req.Address,
		"roles":       roles,
	}
	if err := c.api.Do(ctx, api.Request{Method: http.MethodPost, Path: "/users", Body: body, Public: true}, nil); err != nil {
		return session.Session{}, err
	}
	return c.Login(ctx, req.Email, req.Password)
}

// UpdateProfile stores tax id, phone and delivery address on the user.
func (c *Client) UpdateProfile(ctx context.Context, userID domain.ID, p Profile) error {
	const op = "users.UpdateProfile"
	if userID.Empty() {
		return domain.E(domain.KindAuthRequired, op, "user id is required")
	}
	if fields := ValidateProfile(p); len(fields) > 0 {
		return domain.Validation(op, fields)
	}
	addr := p.Address.Normalize()
	body := map[string]any{
		"userName": strings.TrimSpace(p.Name),
		"email":    strings.TrimSpace(p.Email),
		"cpf":      domain.NormalizeTaxID(p.TaxID),
		"address":  addr.Line(),
	}
	if phone := domain.NormalizePhone(p.Phone); phone != "" {
		body["phoneNumber"] = phone
	}
	return c.api.Put(ctx, api.PathEscape("users", userID.String()), body, nil)
}

// ValidateProfile checks the checkout identity fields locally. The phone is
// optional but must be well formed when present.
func ValidateProfile(p Profile) domain.FieldErrors {
	fields := domain.FieldErrors{}
	if !domain.ValidTaxID(p.TaxID) {
		fields["taxId"] = "invalid"
	}
	if phone := domain.NormalizePhone(p.Phone); phone != "" && !domain.ValidPhone(phone) {
		fields["phone"] = "invalid"
	}
	for _, name := range p.Address.Normalize().Missing() {
		fields[name] = "required"
	}
	return fields
}
