package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	paymentHandler "github.com/jwalitptl/clinic-api/internal/handler/payment"
	promHandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	visitHandler "github.com/jwalitptl/clinic-api/internal/handler/visit"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	redisstore "github.com/jwalitptl/clinic-api/internal/repository/redis"
	"github.com/jwalitptl/clinic-api/internal/router"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	paymentService "github.com/jwalitptl/clinic-api/internal/service/payment"
	visitService "github.com/jwalitptl/clinic-api/internal/service/visit"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "clinic-api",
		Short:        "Clinic patient management API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(migrateCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func migrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied successfully.")
			return nil
		},
	}
}

// backend is the store plus the event publisher that goes with it.
type backend struct {
	store     *repository.Store
	publisher messaging.Publisher
	closers   []io.Closer
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		broker := redis.NewRedisBrokerFromClient(client, log.Logger)
		return &backend{
			store:     redisstore.NewStore(client, cfg.Redis.KeyPrefix, m),
			publisher: messaging.NewBrokerPublisher(broker, cfg.Outbox.Channel),
			closers:   []io.Closer{client},
		}, nil

	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		outbox := postgres.NewOutboxRepository(postgres.NewBaseRepository(db, m))
		return &backend{
			store:     postgres.NewStore(db, m),
			publisher: messaging.NewOutboxPublisher(outbox),
			closers:   []io.Closer{db},
		}, nil
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}).SetGlobal()
	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(cfg.Server.MetricsPrefix, reg)

	b, err := openBackend(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer b.Close()

	publisher := messaging.WithMetrics(b.publisher, m)

	verifier, err := authService.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins

	r := router.NewRouter(
		middleware.NewAuthMiddleware(verifier),
		[]router.PublicHandler{
			health.NewHandler(b.store.Health),
			promHandler.New(reg),
		},
		[]router.Handler{
			patientHandler.NewHandler(patientService.NewService(b.store, publisher)),
			paymentHandler.NewHandler(paymentService.NewService(b.store, publisher)),
			visitHandler.NewHandler(visitService.NewService(b.store)),
		},
		m,
		router.RouterConfig{
			RateLimit:  rate.Limit(cfg.Server.RateLimit),
			RateBurst:  cfg.Server.RateBurst,
			CORSConfig: corsConfig,
			StaticDir:  cfg.Server.StaticDir,
			IndexFile:  cfg.Server.IndexFile,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("store", cfg.Store.Backend).
			Str("auth", cfg.Auth.Provider).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited properly")
	return nil
}
