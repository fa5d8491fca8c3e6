package controllers

import (
	"net/http"

	"github.com/mosaikshop/storefront/api/responses"
	"github.com/mosaikshop/storefront/pkg/config"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mosaik-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}
