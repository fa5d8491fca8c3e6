package controllers

import (
	"context"
	"net/http"

	"github.com/mosaikshop/storefront/api/responses"
	"github.com/mosaikshop/storefront/api/validators"
	"github.com/mosaikshop/storefront/internal/cart"
	"github.com/mosaikshop/storefront/internal/checkout"
	"github.com/mosaikshop/storefront/pkg/logger"
)

type orderPlacer interface {
	PlaceOrder(ctx context.Context, guestEmail string, items []cart.Item) (*checkout.Order, error)
}

type checkoutRequest struct {
	GuestEmail string `json:"guest_email,omitempty" validate:"omitempty,email"`
}

// Checkout places an order from the current cart and clears it on success.
func Checkout(engine cartEngine, placer orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := placer.PlaceOrder(r.Context(), payload.GuestEmail, engine.Items())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		engine.Clear(r.Context())
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
