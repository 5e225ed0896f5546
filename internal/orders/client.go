// Package orders talks to the backend order endpoints.
package orders

import (
	"context"
	"net/http"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

// Client fetches, creates and patches orders.
type Client struct {
	api *api.Client
}

// New wraps the transport.
func New(transport *api.Client) *Client {
	return &Client{api: transport}
}

// Get fetches an order. A 404 or an empty id yields domain.ErrOrderNotFound.
func (c *Client) Get(ctx context.Context, id domain.ID) (domain.Order, error) {
	const op = "orders.Get"
	if id.Empty() {
		return domain.Order{}, domain.E(domain.KindOrderNotFound, op, "order id is required")
	}
	var order domain.Order
	if err := c.api.Get(ctx, api.PathEscape("orders", id.String()), &order); err != nil {
		return domain.Order{}, notFound(op, err)
	}
	if order.ID.Empty() {
		order.ID = id
	}
	return order, nil
}

// Create converts the user's server-side cart into an order.
func (c *Client) Create(ctx context.Context, userID domain.ID) (domain.Order, error) {
	const op = "orders.Create"
	if userID.Empty() {
		return domain.Order{}, domain.E(domain.KindAuthRequired, op, "user id is required")
	}
	body := struct {
		UserID domain.ID `json:"userId"`
	}{UserID: userID}

	var order domain.Order
	if err := c.api.Post(ctx, "/orders", body, &order); err != nil {
		return domain.Order{}, err
	}
	if order.ID.Empty() {
		return domain.Order{}, domain.E(domain.KindRemote, op, "order created without id")
	}
	return order, nil
}

// PatchShipping stores the selected shipping cost on the order and returns the
// backend's view of it. Callers must still re-fetch before trusting totals.
func (c *Client) PatchShipping(ctx context.Context, id domain.ID, cost domain.Money) (domain.Order, error) {
	const op = "orders.PatchShipping"
	if id.Empty() {
		return domain.Order{}, domain.E(domain.KindOrderNotFound, op, "order id is required")
	}
	body := struct {
		ShippingCost domain.Money `json:"shippingCost"`
	}{ShippingCost: cost}

	var order domain.Order
	if err := c.api.Patch(ctx, api.PathEscape("orders", id.String(), "shipping"), body, &order); err != nil {
		return domain.Order{}, notFound(op, err)
	}
	return order, nil
}

// ListByUser returns the order history of a user, newest first as served.
func (c *Client) ListByUser(ctx context.Context, userID domain.ID) ([]domain.Order, error) {
	if userID.Empty() {
		return nil, domain.E(domain.KindAuthRequired, "orders.ListByUser", "user id is required")
	}
	var out []domain.Order
	if err := c.api.Get(ctx, api.PathEscape("orders", "user", userID.String()), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func notFound(op string, err error) error {
	if api.StatusOf(err) == http.StatusNotFound {
		return &domain.Error{Kind: domain.KindOrderNotFound, Op: op, Message: domain.MessageOf(err), Err: err}
	}
	return err
}
