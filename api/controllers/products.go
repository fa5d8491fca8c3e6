package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mosaikshop/storefront/api/responses"
	"github.com/mosaikshop/storefront/internal/catalog"
	"github.com/mosaikshop/storefront/pkg/logger"
)

type catalogService interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

func ListProducts(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if products == nil {
			products = []catalog.Product{}
		}
		responses.WriteSuccess(w, products)
	}
}

func GetProduct(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseProductID(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, productView{
			Product: *product,
			Sizes:   availableSizes(*product),
		})
	}
}

// productView decorates the raw product with the sizes that are actually in
// stock, derived from variant data when present.
type productView struct {
	catalog.Product
	Sizes []string `json:"available_sizes,omitempty"`
}

func availableSizes(p catalog.Product) []string {
	options := p.SizeOptions()
	if len(options) == 0 {
		return nil
	}
	if len(p.Variants) == 0 {
		return options
	}
	available := make([]string, 0, len(options))
	for _, size := range options {
		if v, ok := p.VariantForSize(size); ok && !v.Available() {
			continue
		}
		available = append(available, size)
	}
	return available
}
