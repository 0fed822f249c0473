package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medifile/medifile/internal/config"
	"github.com/medifile/medifile/internal/domain/access"
	"github.com/medifile/medifile/internal/domain/document"
	"github.com/medifile/medifile/internal/domain/identity"
	"github.com/medifile/medifile/internal/platform/auth"
	"github.com/medifile/medifile/internal/platform/blobstore"
	"github.com/medifile/medifile/internal/platform/db"
	"github.com/medifile/medifile/internal/platform/middleware"
	"github.com/medifile/medifile/internal/platform/notifier"
	"github.com/medifile/medifile/internal/platform/telemetry"
	"github.com/medifile/medifile/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medifile-server",
		Short: "Medical document vault API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MediFile API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	metrics := telemetry.NewMetrics("medifile")

	// Change notifier. With NATS_URL set, events fan out across instances.
	hub := notifier.NewHub()
	if cfg.NATSURL != "" {
		bridge, err := notifier.ConnectBridge(cfg.NATSURL, hub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer bridge.Close()
	}

	// Blob storage
	var blobs blobstore.BlobStore
	if cfg.MinioEndpoint != "" {
		blobs, err = blobstore.NewMinioBlobStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to blob store")
		}
		logger.Info().Str("endpoint", cfg.MinioEndpoint).Str("bucket", cfg.MinioBucket).Msg("connected to blob store")
	} else {
		if cfg.IsProduction() {
			logger.Fatal().Msg("MINIO_ENDPOINT is required in production")
		}
		logger.Warn().Msg("MINIO_ENDPOINT not set; using in-memory blob store (uploads are lost on restart)")
		blobs = blobstore.NewInMemoryBlobStore()
	}

	// Domain services
	roleRepo := identity.NewRoleRepoPG(pool)
	profileRepo := identity.NewProfileRepoPG(pool)
	identitySvc, err := identity.NewService(roleRepo, profileRepo, cfg.RoleCacheSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create identity service")
	}
	scopeResolver := access.NewResolver(identitySvc)

	docRepo := document.NewRepoPG(pool)
	docSvc := document.NewService(docRepo, blobs, hub, metrics, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "64M"))
	e.Use(metrics.Middleware())

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		jwksURL := cfg.AuthJWKSURL
		if jwksURL == "" {
			provider, err := auth.NewOIDCProvider(cfg.AuthIssuer)
			if err != nil {
				logger.Fatal().Err(err).Msg("OIDC discovery failed; set AUTH_JWKS_URL explicitly")
			}
			jwksURL = provider.JWKSURI
			logger.Info().Str("jwks_url", jwksURL).Msg("discovered JWKS endpoint")
		}
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  jwksURL,
		}))
	}

	// Health and metrics sit outside the API group
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	apiV1.Use(identitySvc.RoleMiddleware())

	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterRoutes(apiV1)

	docHandler := document.NewHandler(docSvc, identitySvc, scopeResolver)
	docHandler.RegisterRoutes(apiV1)

	// Change stream
	stream := websocket.NewStream(hub)
	streamHandler := websocket.NewStreamHandler(stream, logger)
	streamHandler.RegisterRoutes(apiV1)

	gaugeCtx, gaugeCancel := context.WithCancel(ctx)
	defer gaugeCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gaugeCtx.Done():
				return
			case <-ticker.C:
				metrics.SetStreamSubscribers(stream.ClientCount())
			}
		}
	}()

	// Dev-only blob serving for the in-memory store. Object keys are
	// owner-prefixed, so access is limited to the caller's own files.
	if mem, ok := blobs.(*blobstore.InMemoryBlobStore); ok {
		e.GET("/files/:owner/:name", func(c echo.Context) error {
			owner := c.Param("owner")
			if auth.UserIDFromContext(c.Request().Context()) != owner {
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}
			rc, contentType, err := mem.Get(c.Request().Context(), owner+"/"+c.Param("name"))
			if err != nil {
				return echo.NewHTTPError(http.StatusNotFound, "file not found")
			}
			defer rc.Close()
			return c.Stream(http.StatusOK, contentType, rc)
		})
	}

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}
