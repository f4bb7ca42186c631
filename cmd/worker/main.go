package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	promHandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load config")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	log.SetGlobal()

	if cfg.Store.Backend != config.BackendPostgres {
		log.Fatal(errors.New("outbox relay requires the postgres store"), "Unsupported store backend",
			"backend", cfg.Store.Backend)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(cfg.Server.MetricsPrefix+"_worker", reg)
	base := postgres.NewBaseRepository(db, m)

	processor, err := worker.NewOutboxProcessor(
		postgres.NewOutboxRepository(base),
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			Channel:       cfg.Outbox.Channel,
			MaxRetries:    cfg.Outbox.MaxRetries,
			ClaimTimeout:  cfg.Outbox.ClaimTimeout,
		},
		log,
		m,
	)
	if err != nil {
		log.Fatal(err, "Invalid outbox configuration")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	brokerCheck := worker.NewBrokerCheck(broker, cfg.Outbox.Channel+".health", 2*time.Second)
	health.NewHandler(&base, brokerCheck).RegisterRoutes(engine)
	promHandler.New(reg).RegisterRoutes(engine)
	srv := &http.Server{Addr: cfg.Outbox.HealthAddr, Handler: engine}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
}
