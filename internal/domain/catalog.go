package domain

import (
	"encoding/json"
	"strings"
)

// Category groups products in the catalog.
type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts category_ID, categoryId and id.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         ID     `json:"id"`
		CategoryID ID     `json:"category_ID"`
		CamelID    ID     `json:"categoryId"`
		Name       string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Category{
		ID:   firstID(raw.CategoryID, raw.CamelID, raw.ID),
		Name: strings.TrimSpace(raw.Name),
	}
	return nil
}

// Seller is the public face of the user selling a product.
type Seller struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Product is a catalog entry. Only public seller fields are kept.
type Product struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       Money     `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Seller      *Seller   `json:"seller,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.Stock > 0 }

// UnmarshalJSON accepts the backend product payload (product_ID, productName,
// productPrice, stockQuantity, a nested seller user) as well as the canonical
// shape above.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            ID        `json:"id"`
		ProductID     ID        `json:"product_ID"`
		CamelID       ID        `json:"productId"`
		Name          string    `json:"name"`
		ProductName   string    `json:"productName"`
		Description   string    `json:"description"`
		Price         *Money    `json:"price"`
		ProductPrice  *Money    `json:"productPrice"`
		Stock         *int      `json:"stock"`
		StockQuantity *int      `json:"stockQuantity"`
		ImageURL      string    `json:"imageUrl"`
		Category      *Category `json:"category"`
		Seller        *struct {
			ID       ID     `json:"id"`
			UserID   ID     `json:"user_ID"`
			CamelID  ID     `json:"userId"`
			Name     string `json:"name"`
			UserName string `json:"userName"`
		} `json:"seller"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Product{
		ID:          firstID(raw.ProductID, raw.CamelID, raw.ID),
		Name:        strings.TrimSpace(firstNonEmpty(raw.ProductName, raw.Name)),
		Description: strings.TrimSpace(raw.Description),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		Category:    raw.Category,
	}
	switch {
	case raw.ProductPrice != nil:
		p.Price = *raw.ProductPrice
	case raw.Price != nil:
		p.Price = *raw.Price
	}
	switch {
	case raw.StockQuantity != nil:
		p.Stock = *raw.StockQuantity
	case raw.Stock != nil:
		p.Stock = *raw.Stock
	}
	if raw.Seller != nil {
		p.Seller = &Seller{
			ID:   firstID(raw.Seller.UserID, raw.Seller.CamelID, raw.Seller.ID),
			Name: strings.TrimSpace(firstNonEmpty(raw.Seller.UserName, raw.Seller.Name)),
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
