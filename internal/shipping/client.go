// Package shipping resolves carrier quotes for a Brazilian postal code (CEP).
package shipping

import (
	"context"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

// PostalCodeLength is the number of digits in a CEP.
const PostalCodeLength = 8

// NormalizePostalCode strips punctuation and requires exactly eight digits.
func NormalizePostalCode(raw string) (string, error) {
	code := domain.DigitsOnly(raw)
	if len(code) != PostalCodeLength {
		return "", domain.Validation("shipping.NormalizePostalCode", domain.FieldErrors{"postalCode": "invalid"})
	}
	return code, nil
}

// Client calls the backend shipping calculator.
type Client struct {
	api *api.Client
}

// New wraps the transport.
func New(transport *api.Client) *Client {
	return &Client{api: transport}
}

// Resolve returns the options for code in the order served; the first one is
// the default selection. An empty list or a failed lookup is reported as
// domain.ErrShippingUnavailable, except for session expiry which is passed
// through unchanged.
func (c *Client) Resolve(ctx context.Context, code string) ([]domain.ShippingOption, error) {
	const op = "shipping.Resolve"
	normalized, err := NormalizePostalCode(code)
	if err != nil {
		return nil, err
	}

	var options []domain.ShippingOption
	if err := c.api.Get(ctx, api.PathEscape("shipping", "calculate", normalized), &options); err != nil {
		if domain.KindOf(err) == domain.KindSessionExpired {
			return nil, err
		}
		return nil, &domain.Error{Kind: domain.KindShippingUnavailable, Op: op, Message: domain.MessageOf(err), Err: err}
	}

	out := options[:0]
	for _, opt := range options {
		if opt.Name == "" || opt.Price.IsNegative() {
			continue
		}
		out = append(out, opt)
	}
	if len(out) == 0 {
		return nil, domain.E(domain.KindShippingUnavailable, op, "no shipping options for "+normalized)
	}
	return out, nil
}
