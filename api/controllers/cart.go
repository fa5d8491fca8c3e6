package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mosaikshop/storefront/api/responses"
	"github.com/mosaikshop/storefront/api/validators"
	"github.com/mosaikshop/storefront/internal/cart"
	"github.com/mosaikshop/storefront/internal/catalog"
	pkgerrors "github.com/mosaikshop/storefront/pkg/errors"
	"github.com/mosaikshop/storefront/pkg/logger"
)

// cartEngine is the slice of the reconciliation engine the handlers drive.
type cartEngine interface {
	Items() []cart.Item
	Totals() cart.Totals
	State() cart.State
	Add(ctx context.Context, product catalog.Product, size string) []cart.Item
	Remove(ctx context.Context, key string) []cart.Item
	SetQuantity(ctx context.Context, key string, quantity int) []cart.Item
	Clear(ctx context.Context)
}

type productGetter interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

type cartView struct {
	Items  []cart.Item `json:"items"`
	Totals cart.Totals `json:"totals"`
	Mode   string      `json:"mode"`
}

func viewOf(engine cartEngine, items []cart.Item) cartView {
	if items == nil {
		items = []cart.Item{}
	}
	mode := "guest"
	if s := engine.State(); s == cart.StateAccountActive || s == cart.StateMerging {
		mode = "account"
	}
	return cartView{Items: items, Totals: engine.Totals(), Mode: mode}
}

func GetCart(engine cartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, viewOf(engine, engine.Items()))
	}
}

type addCartItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,min=1"`
	Size      string `json:"size,omitempty"`
}

func AddCartItem(engine cartEngine, products productGetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.Get(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		size := strings.TrimSpace(payload.Size)
		if err := checkSize(*product, size); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := engine.Add(r.Context(), *product, size)
		responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(engine, items))
	}
}

// checkSize enforces size selection for sized products and rejects sizes the
// product does not carry. Unsized products ignore the field.
func checkSize(product catalog.Product, size string) error {
	options := product.SizeOptions()
	if len(options) == 0 {
		return nil
	}
	if size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size is required for this product")
	}
	for _, opt := range options {
		if opt == size {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "unknown size for this product").
		WithDetails(map[string]any{"size": size, "options": options})
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

func UpdateCartItem(engine cartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item key required"))
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := engine.SetQuantity(r.Context(), key, *payload.Quantity)
		responses.WriteSuccess(w, viewOf(engine, items))
	}
}

func RemoveCartItem(engine cartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item key required"))
			return
		}

		items := engine.Remove(r.Context(), key)
		responses.WriteSuccess(w, viewOf(engine, items))
	}
}

func ClearCart(engine cartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine.Clear(r.Context())
		responses.WriteSuccess(w, viewOf(engine, nil))
	}
}

func parseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	return id, nil
}
