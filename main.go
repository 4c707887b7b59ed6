package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_watchlist_backend/config"
	"stock_watchlist_backend/controllers"
	"stock_watchlist_backend/logging"
	"stock_watchlist_backend/middleware"
	"stock_watchlist_backend/models"
	"stock_watchlist_backend/routes"
	"stock_watchlist_backend/scheduler"
	"stock_watchlist_backend/services/metrics"
	"stock_watchlist_backend/services/pricefetcher"
	"stock_watchlist_backend/services/pricestore"
	"stock_watchlist_backend/services/realtime"
	"stock_watchlist_backend/services/watchlist"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

// app holds every long-lived component so shutdown can release them in order
type app struct {
	db        *gorm.DB
	rdb       *goredis.Client
	mongo     *mongo.Client
	history   *pricestore.SQLiteHistory
	kafka     *realtime.KafkaTopicPublisher
	hub       *realtime.Hub
	refresher *scheduler.RefreshScheduler
	jobs      *scheduler.Jobs
	server    *http.Server
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("stock watchlist backend starting",
		zap.String("environment", cfg.Environment),
		zap.String("price_backend", cfg.PriceBackend),
		zap.Duration("update_interval", cfg.UpdateInterval),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a := &app{}
	if err := a.init(cfg, logger, reg, m); err != nil {
		a.close(logger)
		return err
	}

	go func() {
		logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	a.refresher.Start()
	if err := a.jobs.Start(); err != nil {
		logger.Error("failed to start housekeeping jobs", zap.Error(err))
	}

	a.gracefulShutdown(logger)
	return nil
}

func (a *app) init(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry, m *metrics.Metrics) error {
	ctx := context.Background()

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		return err
	}
	a.db = db
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	registry := realtime.NewRegistry(logger.Named("realtime"), m)
	health := controllers.NewHealthController(registry)
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	health.AddCheck("database", sqlDB.PingContext)

	// Price persistence
	var repo pricestore.Repository
	switch cfg.PriceBackend {
	case config.PriceBackendMongo:
		client, err := pricestore.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.mongo = client
		repo = pricestore.NewMongoRepository(client.Database(cfg.MongoDatabase).Collection(pricestore.MongoStocksCollection))
		health.AddCheck("mongodb", func(ctx context.Context) error { return client.Ping(ctx, nil) })
	case config.PriceBackendMemory:
		repo = pricestore.NewMemoryRepository()
	default:
		repo = pricestore.NewGormRepository(db)
	}
	logger.Info("price repository ready", zap.String("backend", cfg.PriceBackend))

	topic := realtime.NewMultiPublisher(m)

	if cfg.RedisEnabled {
		a.rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr(), err)
		}
		repo = pricestore.NewRedisCache(a.rdb, repo, cfg.RedisPriceTTL, logger.Named("price_cache"))
		topic.Add("redis", realtime.NewRedisTopicPublisher(a.rdb, nil))
		health.AddCheck("redis", func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() })
		logger.Info("redis enabled", zap.String("addr", cfg.RedisAddr()))
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = realtime.NewKafkaTopicPublisher(realtime.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), nil)
		topic.Add("kafka", a.kafka)
		logger.Info("kafka publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	storeOpts := []pricestore.Option{
		pricestore.WithLogger(logger.Named("price_store")),
		pricestore.WithMetrics(m),
	}
	var historyReader controllers.HistoryReader
	var historyPruner scheduler.HistoryPruner
	if cfg.HistoryEnabled {
		history, err := pricestore.OpenSQLiteHistory(cfg.HistoryPath)
		if err != nil {
			return err
		}
		a.history = history
		storeOpts = append(storeOpts, pricestore.WithHistory(history))
		historyReader, historyPruner = history, history
		health.AddCheck("history", history.Ping)
		logger.Info("price history enabled", zap.String("path", cfg.HistoryPath), zap.Duration("retention", cfg.HistoryRetention))
	}

	fetcher := pricefetcher.New(
		pricefetcher.WithHTTPClient(pricefetcher.NewHTTPClient(cfg.QuoteTimeout)),
		pricefetcher.WithURLTemplate(cfg.QuoteURLTemplate),
		pricefetcher.WithLogger(logger.Named("fetcher")),
		pricefetcher.WithMetrics(m),
	)
	store := pricestore.New(repo, fetcher, storeOpts...)
	watchRepo := watchlist.NewRepository(db, nil)

	a.hub = realtime.NewHub(registry, cfg.WSMaxClients, logger.Named("ws"))

	a.refresher = scheduler.NewRefreshScheduler(watchRepo, store, topic, registry,
		scheduler.WithInterval(cfg.UpdateInterval),
		scheduler.WithLogger(logger.Named("refresh")),
		scheduler.WithMetrics(m),
	)

	limiter := middleware.NewRateLimiter(cfg.LookupRatePerSec, cfg.LookupBurst)
	a.jobs = scheduler.NewJobs(historyPruner, cfg.HistoryRetention, registry, logger.Named("jobs"), m)
	if err := a.jobs.Every(time.Minute, limiter.Cleanup); err != nil {
		return fmt.Errorf("failed to schedule limiter cleanup: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger.Named("http")))

	routes.SetupRoutes(router, routes.Handlers{
		Stock:       controllers.NewStockController(store, logger.Named("stock")),
		Watchlist:   controllers.NewWatchlistController(watchRepo, logger.Named("watchlist")),
		History:     controllers.NewHistoryController(historyReader, logger.Named("history")),
		Health:      health,
		WebSocket:   a.hub.HandleWebSocket,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		LookupLimit: limiter.Middleware(),
	})

	a.server = &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
	return nil
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := models.MigrateStockModels(db); err != nil {
		return err
	}
	return models.MigrateWatchlistModels(db)
}

// gracefulShutdown blocks until SIGINT/SIGTERM, then stops everything
func (a *app) gracefulShutdown(logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

	// Stop producers first so nothing is published into closing sinks
	a.refresher.Stop()
	a.jobs.Stop()
	a.hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	a.close(logger)
	logger.Info("server shutdown completed")
}

// close releases every external connection that was opened
func (a *app) close(logger *zap.Logger) {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.mongo.Disconnect(ctx)
		cancel()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
			logger.Info("database connection closed")
		}
	}
}
