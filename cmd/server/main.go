package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sxbin-backend/internal/api"
	"sxbin-backend/internal/auth"
	"sxbin-backend/internal/cleanup"
	"sxbin-backend/internal/config"
	"sxbin-backend/internal/database"
	"sxbin-backend/internal/logging"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/service"
	"sxbin-backend/internal/storage"
)

func main() {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	jwtExpiry, err := cfg.GetJWTExpiry()
	if err != nil {
		return fmt.Errorf("invalid JWT expiry: %w", err)
	}

	shutdownTimeout, err := cfg.GetShutdownTimeout()
	if err != nil {
		return fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	store, err := storage.NewObjectStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer store.Close()

	files := repository.NewFileRepository(pool)
	users := repository.NewUserRepository(pool)

	authenticator, err := auth.NewAuthenticator(cfg, users)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	jwtManager := auth.NewJWTManager([]byte(cfg.JWT.SecretKey), cfg.JWT.Issuer, jwtExpiry)

	var oauth *auth.OAuth2Provider
	if cfg.OAuth2.Enabled() {
		oauth = auth.NewOAuth2Provider(&cfg.OAuth2)
	}

	fileService := service.NewFileService(files, store, cfg.Upload, cfg.Storage.PublicURL, logger)
	userService := service.NewUserService(users, authenticator, logger)

	handlers := api.Handlers{
		Health: api.NewHealthHandler(database.NewReady(pool), store.GetName(), logger),
		Auth:   api.NewAuthHandler(userService, jwtManager, oauth, cfg.JWT, logger),
		Files:  api.NewFileHandler(fileService, cfg.Server.BaseURL, cfg.MaxUploadBytes(), logger),
		User:   api.NewUserHandler(userService, cfg.Server.BaseURL, logger),
	}
	router := api.NewRouter(
		handlers,
		api.Authenticate(jwtManager, userService, cfg.JWT.CookieName, logger),
		api.NewRateLimiter(cfg.RateLimit),
		oauth != nil,
		logger,
	)

	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.Server.TLS.Enabled() {
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	sweeper := cleanup.NewJob(files, store, logger)
	if !cfg.Cleanup.Disabled {
		if err := sweeper.Start(ctx, cfg.Cleanup); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.Server.TLS.Enabled()),
			zap.String("storage", store.GetName()),
			zap.String("auth", authenticator.GetName()),
		)

		var err error
		if cfg.Server.TLS.Enabled() {
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		sweeper.Stop(shutdownCtx)
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
