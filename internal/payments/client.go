// Package payments submits card and Pix charges against an order.
package payments

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

const (
	defaultCardMethodID = "credit_card"
	pixMethodID         = "pix"
)

// NewIdempotencyKey returns a fresh key for one submission attempt. Keys are
// never reused across attempts.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// CardRequest carries a tokenized card payment.
type CardRequest struct {
	OrderID         domain.ID
	Token           string
	PaymentMethodID string
	Installments    int
	Email           string
	IdempotencyKey  string
}

// PixRequest asks for a Pix charge.
type PixRequest struct {
	OrderID        domain.ID
	Email          string
	IdempotencyKey string
}

type paymentBody struct {
	OrderID         domain.ID `json:"orderId"`
	Token           string    `json:"token,omitempty"`
	PaymentMethodID string    `json:"paymentMethodId"`
	Installments    int       `json:"installments"`
	Email           string    `json:"email"`
	IdempotencyKey  string    `json:"idempotencyKey"`
}

// Client calls the payment endpoints.
type Client struct {
	api *api.Client
}

// New wraps the transport.
func New(transport *api.Client) *Client {
	return &Client{api: transport}
}

// PayCard submits a card payment. Installments below one default to one.
func (c *Client) PayCard(ctx context.Context, req CardRequest) (domain.Settlement, error) {
	const op = "payments.PayCard"
	fields := validateCommon(req.OrderID, req.Email, req.IdempotencyKey)
	if strings.TrimSpace(req.Token) == "" {
		fields["token"] = "required"
	}
	if len(fields) > 0 {
		return domain.Settlement{}, domain.Validation(op, fields)
	}

	body := paymentBody{
		OrderID:         req.OrderID,
		Token:           strings.TrimSpace(req.Token),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
		Installments:    req.Installments,
		Email:           strings.TrimSpace(req.Email),
		IdempotencyKey:  strings.TrimSpace(req.IdempotencyKey),
	}
	if body.PaymentMethodID == "" {
		body.PaymentMethodID = defaultCardMethodID
	}
	if body.Installments < 1 {
		body.Installments = 1
	}
	return c.submit(ctx, op, "/payments/card", body)
}

// PayPix requests a Pix charge. The settlement is usually PENDING and carries
// the copy-paste code.
func (c *Client) PayPix(ctx context.Context, req PixRequest) (domain.Settlement, error) {
	const op = "payments.PayPix"
	if fields := validateCommon(req.OrderID, req.Email, req.IdempotencyKey); len(fields) > 0 {
		return domain.Settlement{}, domain.Validation(op, fields)
	}
	body := paymentBody{
		OrderID:         req.OrderID,
		PaymentMethodID: pixMethodID,
		Installments:    1,
		Email:           strings.TrimSpace(req.Email),
		IdempotencyKey:  strings.TrimSpace(req.IdempotencyKey),
	}
	return c.submit(ctx, op, "/payments/pix", body)
}

// Status polls the settlement of a transaction, used while a Pix charge is pending.
func (c *Client) Status(ctx context.Context, transactionID string) (domain.Settlement, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.Settlement{}, domain.Validation("payments.Status", domain.FieldErrors{"transactionId": "required"})
	}
	var s domain.Settlement
	if err := c.api.Get(ctx, api.PathEscape("payments", "status", transactionID), &s); err != nil {
		return domain.Settlement{}, err
	}
	return s, nil
}

// submit posts the payment. A settlement whose status is neither approved nor
// pending is returned together with a PaymentDeclined error carrying the
// status verbatim; it is never retried here.
func (c *Client) submit(ctx context.Context, op, path string, body paymentBody) (domain.Settlement, error) {
	var s domain.Settlement
	err := c.api.Do(ctx, api.Request{
		Method:         http.MethodPost,
		Path:           path,
		Body:           body,
		IdempotencyKey: body.IdempotencyKey,
	}, &s)
	if err != nil {
		switch api.StatusOf(err) {
		case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
			if domain.KindOf(err) == domain.KindRemote {
				return domain.Settlement{}, &domain.Error{Kind: domain.KindPaymentDeclined, Op: op, Message: domain.MessageOf(err), Err: err}
			}
		}
		return domain.Settlement{}, err
	}
	if !s.Status.Successful() {
		status := string(s.Status)
		if status == "" {
			status = "UNKNOWN"
		}
		return s, &domain.Error{Kind: domain.KindPaymentDeclined, Op: op, Message: status, Status: status}
	}
	return s, nil
}

func validateCommon(orderID domain.ID, email, key string) domain.FieldErrors {
	fields := domain.FieldErrors{}
	if orderID.Empty() {
		fields["orderId"] = "required"
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		fields["email"] = "invalid"
	}
	if _, err := uuid.Parse(strings.TrimSpace(key)); err != nil {
		fields["idempotencyKey"] = "invalid"
	}
	return fields
}
