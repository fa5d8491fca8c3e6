package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mosaikshop/storefront/api/routes"
	"github.com/mosaikshop/storefront/internal/cart"
	"github.com/mosaikshop/storefront/internal/catalog"
	"github.com/mosaikshop/storefront/internal/checkout"
	"github.com/mosaikshop/storefront/internal/session"
	"github.com/mosaikshop/storefront/pkg/config"
	"github.com/mosaikshop/storefront/pkg/logger"
	"github.com/mosaikshop/storefront/pkg/metrics"
	"github.com/mosaikshop/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	guestStore, closeStore, err := buildGuestStore(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap guest store", err)
		os.Exit(1)
	}
	defer closeStore()

	sessionManager, err := session.NewManager(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	remoteClient, err := cart.NewRemoteClient(sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create remote cart client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	engine, err := cart.NewEngine(guestStore, remoteClient, sessionManager, logg, metrics.NewCartSyncMetrics(registry))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart engine", err)
		os.Exit(1)
	}

	sessionManager.OnChange(func(ctx context.Context, authenticated bool) {
		if authenticated {
			engine.HandleLogin(ctx)
			return
		}
		engine.HandleLogout(ctx)
	})

	engine.Start(context.Background())

	catalogClient, err := catalog.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog client", err)
		os.Exit(1)
	}

	checkoutClient, err := checkout.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout client", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"guest_store": cfg.GuestStore.Driver,
		"upstream":    cfg.Upstream.BaseURL,
	})
	logg.Info(ctx, "starting storefront gateway")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, engine, sessionManager, catalogClient, checkoutClient, registry),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "gateway stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during shutdown", err)
		}
	}

	// let in-flight cart persistence settle before exit
	engine.Flush()
}

func buildGuestStore(cfg *config.Config, logg *logger.Logger) (cart.GuestStore, func(), error) {
	switch cfg.GuestStore.Driver {
	case config.GuestStoreRedis:
		client, err := redis.New(context.Background(), cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		store, err := cart.NewRedisGuestStore(client, cfg.GuestStore.StorageKey)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}, nil
	default:
		store, err := cart.NewSQLiteGuestStore(cfg.GuestStore.SQLitePath, cfg.GuestStore.StorageKey)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
