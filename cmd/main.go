package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/api"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/events"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/gateway"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lock"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lookup"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/repository"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("refund-orchestrator", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Refund Orchestrator")

	// Connect to PostgreSQL
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		telemetry.Logger.Fatal("Failed to open gorm session", zap.Error(err))
	}

	// Connect to NATS for gateway refunds
	var gw interfaces.RefundGateway
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		gw = gateway.NewNATSGateway(nc, cfg.GatewayTimeout)
	} else {
		telemetry.Logger.Warn("NATS_URL not set, gateway refunds are disabled")
	}

	// Initialize ledger repository
	machine := workflow.New(nil)
	repo := repository.NewRefundRepository(db, machine, gw)
	if err := repo.AutoMigrate(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Refund locks live in Redis so every replica sees them
	var locker interfaces.Locker
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient)
	} else {
		telemetry.Logger.Warn("REDIS_URL not set, using in-process refund locks")
		locker = lock.NewLocalLocker()
	}

	// Connect to Kafka
	var publisher interfaces.EventPublisher = events.LogPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaWriter := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers),
			Topic:    cfg.StatusTopic,
			Balancer: &kafka.Hash{},
		}
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	orchestrator := service.NewOrchestrator(repo, publisher, locker, lookup.NewStatic(), machine, cfg.LockTTL)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(orchestrator),
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Refund Orchestrator starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
