// Package catalog reads products and categories for browsing. Every call is
// public: the shopper does not need to be signed in.
package catalog

import (
	"context"
	"net/http"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

// Client calls the product and category endpoints.
type Client struct {
	api *api.Client
}

// New wraps the transport.
func New(transport *api.Client) *Client {
	return &Client{api: transport}
}

// Products lists the whole catalog.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	return c.products(ctx, "catalog.Products", "/products")
}

// Product fetches one product. A 404 yields domain.ErrNotFound.
func (c *Client) Product(ctx context.Context, id domain.ID) (domain.Product, error) {
	const op = "catalog.Product"
	if id.Empty() {
		return domain.Product{}, domain.Validation(op, domain.FieldErrors{"productId": "required"})
	}
	var p domain.Product
	if err := c.get(ctx, api.PathEscape("products", id.String()), &p); err != nil {
		return domain.Product{}, notFound(op, err)
	}
	if p.ID.Empty() {
		p.ID = id
	}
	return p, nil
}

// ProductsByCategory lists the products of one category.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID domain.ID) ([]domain.Product, error) {
	const op = "catalog.ProductsByCategory"
	if categoryID.Empty() {
		return nil, domain.Validation(op, domain.FieldErrors{"categoryId": "required"})
	}
	return c.products(ctx, op, api.PathEscape("products", "category", categoryID.String()))
}

// ProductsBySeller lists what one seller offers.
func (c *Client) ProductsBySeller(ctx context.Context, sellerID domain.ID) ([]domain.Product, error) {
	const op = "catalog.ProductsBySeller"
	if sellerID.Empty() {
		return nil, domain.Validation(op, domain.FieldErrors{"sellerId": "required"})
	}
	return c.products(ctx, op, api.PathEscape("products", "seller", sellerID.String()))
}

// Categories lists every category.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.get(ctx, "/categories", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Category{}
	}
	return out, nil
}

// Category fetches one category. A 404 yields domain.ErrNotFound.
func (c *Client) Category(ctx context.Context, id domain.ID) (domain.Category, error) {
	const op = "catalog.Category"
	if id.Empty() {
		return domain.Category{}, domain.Validation(op, domain.FieldErrors{"categoryId": "required"})
	}
	var cat domain.Category
	if err := c.get(ctx, api.PathEscape("categories", id.String()), &cat); err != nil {
		return domain.Category{}, notFound(op, err)
	}
	if cat.ID.Empty() {
		cat.ID = id
	}
	return cat, nil
}

func (c *Client) products(ctx context.Context, op, path string) ([]domain.Product, error) {
	var out []domain.Product
	if err := c.get(ctx, path, &out); err != nil {
		return nil, notFound(op, err)
	}
	if out == nil {
		out = []domain.Product{}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: path, Public: true}, out)
}

func notFound(op string, err error) error {
	if api.StatusOf(err) == http.StatusNotFound {
		return &domain.Error{Kind: domain.KindNotFound, Op: op, Message: domain.MessageOf(err), Err: err}
	}
	return err
}
