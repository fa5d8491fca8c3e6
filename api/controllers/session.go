package controllers

import (
	"context"
	"net/http"

	"github.com/mosaikshop/storefront/api/responses"
	"github.com/mosaikshop/storefront/api/validators"
	"github.com/mosaikshop/storefront/internal/session"
	"github.com/mosaikshop/storefront/pkg/logger"
)

type sessionService interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password, confirmPassword, name string) error
	Logout(ctx context.Context)
	Authenticated() bool
	Email() string
	FetchProfile(ctx context.Context) (*session.Profile, error)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func SessionLogin(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Login(r.Context(), payload.Email, payload.Password); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"email": svc.Email()})
	}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Name            string `json:"name,omitempty"`
}

func SessionRegister(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Register(r.Context(), payload.Email, payload.Password, payload.ConfirmPassword, payload.Name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"email": svc.Email()})
	}
}

func SessionLogout(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Logout(r.Context())
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

func SessionProfile(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Authenticated() {
			responses.WriteSuccess(w, map[string]any{"authenticated": false})
			return
		}

		profile, err := svc.FetchProfile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"authenticated": true,
			"profile":       profile,
		})
	}
}
