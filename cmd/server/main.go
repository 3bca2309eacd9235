package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

// sweepBatch bounds how many ledger events and stale orders one sweep
// touches.
const sweepBatch = 100

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	processor := payment.NewClient(
		cfg.Payment.BaseURL,
		cfg.Payment.APIKey,
		cfg.Payment.WebhookSecret,
		cfg.Payment.Timeout,
	)

	orderService := service.NewOrderService(db, processor, eventPublisher, cfg.Business, cfg.Payment)
	cancellationService := service.NewCancellationService(db, eventPublisher)
	reconcileService := service.NewReconcileService(db, processor, eventPublisher, redisClient)
	fallbackService := service.NewFallbackService(db, processor, reconcileService, cfg.Payment.Timeout)

	sweep := func(ctx context.Context) error {
		cutoff := time.Now().Add(-cfg.Business.StalePendingAfter)
		if err := reconcileService.ReprocessPending(ctx, cutoff, sweepBatch); err != nil {
			return err
		}

		stale, err := db.ListStalePendingOrders(ctx, cutoff, sweepBatch)
		if err != nil {
			return err
		}
		for _, order := range stale {
			if _, err := fallbackService.SyncPaymentStatus(ctx, order.ID); err != nil {
				log.Printf("Sweep sync failed for order %d: %v", order.ID, err)
			}
		}
		return nil
	}

	sweeper := worker.NewReconciler(cfg.Business.SweepInterval, sweep, redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go func() {
		if err := sweeper.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Reconciliation sweep error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(
		orderService,
		cancellationService,
		reconcileService,
		fallbackService,
		sweeper,
		redisClient,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	log.Println("Server exited")
}
