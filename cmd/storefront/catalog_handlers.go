package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/httpx"
)

// handleProducts lists the catalog, narrowed by ?category= or ?seller= when
// given. Both filters together are rejected.
func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	seller := strings.TrimSpace(r.URL.Query().Get("seller"))

	var (
		list []domain.Product
		err  error
	)
	switch {
	case category != "" && seller != "":
		s.writeError(w, r, domain.Validation("storefront.products", domain.FieldErrors{"category": "conflict", "seller": "conflict"}))
		return
	case category != "":
		list, err = s.catalog.ProductsByCategory(ctx, domain.ID(category))
	case seller != "":
		list, err = s.catalog.ProductsBySeller(ctx, domain.ID(seller))
	default:
		list, err = s.catalog.Products(ctx)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": list, "count": len(list)})
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(r.Context(), domain.ID(chi.URLParam(r, "productID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		domain.Product
		InStock bool `json:"inStock"`
	}{Product: p, InStock: p.InStock()})
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": list})
}

// handleCategory answers with the category and its products, which is what a
// category page renders.
func (s *server) handleCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := domain.ID(chi.URLParam(r, "categoryID"))
	cat, err := s.catalog.Category(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	products, err := s.catalog.ProductsByCategory(ctx, cat.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"category": cat, "products": products})
}
