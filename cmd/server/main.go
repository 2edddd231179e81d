package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/order-engine/internal/adapter/events"
	"github.com/rl1809/order-engine/internal/adapter/handler"
	"github.com/rl1809/order-engine/internal/adapter/sap"
	"github.com/rl1809/order-engine/internal/adapter/storage"
	"github.com/rl1809/order-engine/internal/core/domain"
	"github.com/rl1809/order-engine/internal/core/service"
	"github.com/rl1809/order-engine/internal/port"
	"github.com/rl1809/order-engine/pkg/metrics"
)

type config struct {
	HTTPAddr            string
	MySQLDSN            string
	RedisAddr           string
	KafkaBrokers        string
	SAPBaseURL          string
	ConfirmationTimeout time.Duration
	MountMockSAP        bool
}

func readConfig() config {
	timeoutMS, _ := strconv.Atoi(getenv("CONFIRMATION_TIMEOUT_MS", "5000"))
	return config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:            getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/orderengine?parseTime=true"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		SAPBaseURL:          getenv("SAP_BASE_URL", "http://localhost:8080"),
		ConfirmationTimeout: time.Duration(timeoutMS) * time.Millisecond,
		MountMockSAP:        getenv("MOCK_SAP", "true") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := readConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Optional Kafka broadcast of cache invalidations
	var publisher port.InvalidationPublisher
	kafkaPublisher := events.NewPublisher(cfg.KafkaBrokers, events.DefaultTopic, "order-engine")
	if kafkaPublisher != nil {
		publisher = kafkaPublisher
		logger.Info("invalidation events enabled", zap.String("topic", events.DefaultTopic))
	}

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, publisher)
	gateway := sap.NewClient(cfg.SAPBaseURL, cfg.ConfirmationTimeout)

	// Initialize service
	orderMetrics := metrics.New(prometheus.DefaultRegisterer)
	orderService := service.NewOrderService(
		mysqlAdapter, // orders
		mysqlAdapter, // products
		mysqlAdapter, // inventory ledger
		mysqlAdapter, // pricing config
		gateway,
		redisAdapter,
		domain.DefaultCurrencyTable(),
		orderMetrics,
		logger.Named("orders"),
	)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, logger.Named("http"))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpHandler.HealthCheck)
	mux.HandleFunc("POST /api/orders", httpHandler.CreateOrder)
	mux.HandleFunc("GET /api/orders", httpHandler.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", httpHandler.GetOrder)
	mux.HandleFunc("GET /api/price/{productId}", httpHandler.QuotePrice)
	mux.Handle("GET /metrics", metrics.Handler())
	if cfg.MountMockSAP {
		mux.Handle("/api/sap/", sap.NewMockHandler(logger.Named("mock-sap")))
		logger.Info("mock confirmation endpoint mounted")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	if kafkaPublisher != nil {
		kafkaPublisher.Close()
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
