package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orionos/internal/ratelimit"
	"orionos/internal/servicetoken"
	"orionos/internal/usertoken"
	"orionos/internal/util"
	"orionos/pkg/apps"
	"orionos/pkg/storage"
	"orionos/pkg/store"
	"orionos/services/desktop/internal/app"
	"orionos/services/desktop/internal/config"
	"orionos/services/desktop/internal/realtime"
	"orionos/services/desktop/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}
	internalKeys, err := cfg.VerifyPublicKeys()
	if err != nil {
		log.Fatalf("failed to parse internal jwt verify public keys: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	identityVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     jwtLeeway,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init jwks verifier: %v", err)
	}
	internalVerifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeys:     internalKeys,
		Audience:       servicetoken.DesktopAudience,
		AllowedIssuers: cfg.InternalJWTAllowedIssuers,
	})
	if err != nil {
		log.Fatalf("failed to init internal verifier: %v", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}
	objects, err := storage.NewMinioStore(context.Background(), storage.MinioConfig{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.PublicAssetBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	var sessions store.WindowSessionStore
	if cfg.RedisAddr != "" {
		redisSessions := store.NewRedisWindowSessionStore(cfg.RedisAddr, cfg.RedisPassword, sessionTTL)
		defer redisSessions.Close()
		sessions = redisSessions
	} else {
		slog.Warn("redis not configured, window sessions are process-local")
		sessions = store.NewMemoryWindowSessionStore(sessionTTL)
	}
	initLimiter, err := newLimiter(cfg, "orionos:ratelimit:initialize", cfg.InitializeRateLimitPerMinute)
	if err != nil {
		log.Fatalf("failed to init initialize limiter: %v", err)
	}
	uploadLimiter, err := newLimiter(cfg, "orionos:ratelimit:upload", cfg.UploadRateLimitPerMinute)
	if err != nil {
		log.Fatalf("failed to init upload limiter: %v", err)
	}

	origins := util.Origins(cfg.AllowedOrigins)
	hub := realtime.NewHub(origins)
	var publisher app.Publisher = hub
	if cfg.RedisAddr != "" {
		bus, err := realtime.NewRedisBus(realtime.RedisBusConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, hub)
		if err != nil {
			log.Fatalf("failed to init event bus: %v", err)
		}
		defer bus.Close()
		if err := bus.Start(ctx); err != nil {
			log.Fatalf("failed to start event bus: %v", err)
		}
		publisher = bus
	}
	registry := apps.DefaultRegistry()
	slog.Info("app handlers registered", "handlers", registry.Names())
	appCore, err := app.New(app.Config{
		Registry:          registry,
		Store:             dataStore,
		Sessions:          sessions,
		Objects:           objects,
		Publisher:         publisher,
		StorageLimitBytes: cfg.StorageLimitBytes,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if _, err := appCore.SeedApps(seedCtx); err != nil {
		cancel()
		log.Fatalf("failed to seed app catalog: %v", err)
	}
	cancel()

	httpServer, err := server.New(server.Config{
		App:               appCore,
		Identity:          identityVerifier,
		Internal:          internalVerifier,
		Realtime:          hub,
		InitializeLimiter: initLimiter,
		UploadLimiter:     uploadLimiter,
		TrustedProxies:    trusted,
		AllowedOrigins:    origins,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("desktop server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
		return
	case <-ctx.Done():
	}

	slog.Info("shutting down desktop server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
}

// newLimiter returns a per-minute limiter, shared through redis when one is
// configured. A non-positive limit disables limiting.
func newLimiter(cfg config.FileConfig, prefix string, perMinute int) (ratelimit.Limiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr != "" {
		return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, perMinute, time.Minute)
	}
	return ratelimit.NewMemoryFixedWindowLimiter(perMinute, time.Minute)
}
