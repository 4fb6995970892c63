package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/client"
	"github.com/yourorg/market-data-service/internal/config"
	"github.com/yourorg/market-data-service/internal/handler"
	"github.com/yourorg/market-data-service/internal/kafka"
	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/middleware"
	"github.com/yourorg/market-data-service/internal/service"
	"github.com/yourorg/market-data-service/internal/stream"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Caches are explicit instances owned here and injected; nothing is
	// package-global.
	liveCache := cache.NewLiveCache()
	seriesCache := cache.NewTTLCache(cfg.Cache.SeriesTTL)
	assetsCache := cache.NewTTLCache(cfg.Cache.AssetsTTL)
	nameCache := cache.NewNameCache()

	// Initialize clients
	alpacaClient := client.NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, m, logger)
	alpacaClient.SetBaseURLs(cfg.Alpaca.DataURL, cfg.Alpaca.BrokerURL)
	yahooClient := client.NewYahooClient(m, logger)

	if !alpacaClient.HasCredentials() {
		logger.Warn("No Alpaca credentials configured; live stream disabled, REST paths will fail auth and fall back where possible")
	}

	// Optional Kafka tick fan-out
	var publisher stream.TickPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, logger)
		publisher = kafka.NewTickPublisher(producer, cfg.Kafka.TickTopic, logger)
		logger.Info("Kafka tick publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.TickTopic))
	}

	// Stream manager keeps the watch-list live in the cache
	streamManager := stream.NewManager(stream.Config{
		EndpointFast:      cfg.Stream.EndpointFast,
		EndpointDelayed:   cfg.Stream.EndpointDelayed,
		APIKey:            cfg.Alpaca.APIKey,
		APISecret:         cfg.Alpaca.APISecret,
		WatchList:         cfg.Stream.WatchList,
		ReconnectDelay:    cfg.Stream.ReconnectDelay,
		MaxReconnects:     cfg.Stream.MaxReconnects,
		AuthTimeout:       cfg.Stream.AuthTimeout,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
	}, liveCache, publisher, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Stream.Enabled && alpacaClient.HasCredentials() {
		streamManager.Start(ctx)
	}

	// Initialize services
	assetService := service.NewAssetService(alpacaClient, nameCache, assetsCache, m, logger)
	quoteService := service.NewQuoteService(
		alpacaClient,
		yahooClient,
		assetService,
		liveCache,
		streamManager,
		cfg.Stream.WatchList,
		m,
		logger,
	)
	candleService := service.NewCandleService(alpacaClient, yahooClient, quoteService, seriesCache, m, logger)
	timeframeService := service.NewTimeframeService(logger)

	// Initialize handlers
	quoteHandler := handler.NewQuoteHandler(quoteService, logger)
	candleHandler := handler.NewCandleHandler(candleService, logger)
	timeframeHandler := handler.NewTimeframeHandler(timeframeService, logger)
	assetHandler := handler.NewAssetHandler(assetService, logger)
	streamHandler := handler.NewStreamHandler(streamManager, liveCache, logger)

	// Set up HTTP server with Gin
	router := setupRouter(
		quoteHandler,
		candleHandler,
		timeframeHandler,
		assetHandler,
		streamHandler,
		logger,
		cfg,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info("Shutting down server...")

	streamManager.Stop()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("Failed to close Kafka producer", zap.Error(err))
		}
	}

	// Create a deadline for server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func setupRouter(
	quoteHandler *handler.QuoteHandler,
	candleHandler *handler.CandleHandler,
	timeframeHandler *handler.TimeframeHandler,
	assetHandler *handler.AssetHandler,
	streamHandler *handler.StreamHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Quote routes
		quotes := v1.Group("/quotes")
		{
			quotes.GET("/:symbol", quoteHandler.GetQuote)
		}

		// Market data routes
		marketData := v1.Group("/market-data")
		{
			marketData.GET("/candles", candleHandler.GetCandles)
		}

		// Timeframes routes
		timeframes := v1.Group("/timeframes")
		{
			timeframes.GET("", timeframeHandler.GetAllTimeframes)
			timeframes.GET("/validate/:timeframe", timeframeHandler.ValidateTimeframe)
		}

		// Asset routes
		assets := v1.Group("/assets")
		{
			assets.GET("/search", assetHandler.SearchAssets)
		}

		// Stream status
		v1.GET("/stream/status", streamHandler.GetStatus)

		// Service-to-service routes (requires service key)
		svc := v1.Group("/service")
		svc.Use(middleware.ServiceAuthMiddleware(cfg.ServiceKey, logger))
		{
			svc.POST("/stream/restart", streamHandler.Restart)
		}
	}
	return router
}
