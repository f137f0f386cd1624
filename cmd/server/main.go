package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/app"
	"github.com/nekogravitycat/marketplace-backend/internal/config"
	"github.com/nekogravitycat/marketplace-backend/internal/db"
	"github.com/nekogravitycat/marketplace-backend/internal/events"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to migrate db: %v", err)
	}

	// Connect Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	// Domain events go to RabbitMQ when configured, to the log otherwise.
	var publisher events.Publisher = events.LogPublisher{}
	if cfg.RabbitURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	container, err := app.NewContainer(app.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		DBPool:         pool,
		Redis:          rdb,
		Publisher:      publisher,
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTAccessTokenTTL,
		Location:       cfg.Location,
		ReservationTTL: cfg.ReservationTTL,
		SweepSchedule:  cfg.ReservationSweepSchedule,
		PaymentLockTTL: cfg.PaymentLockTTL,
		GatewaySecret:  cfg.PaymentGatewaySecret,
	})
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}

	// Background workers
	if err := container.Hub.Start(ctx); err != nil {
		log.Fatalf("failed to start realtime hub: %v", err)
	}
	container.Sweeper.Start()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	// Run server in separate goroutine
	go func() {
		log.Printf("server running on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	log.Println("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server; hijacked websocket connections are closed by the hub.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	container.Hub.Close()
	container.Sweeper.Stop(shutdownCtx)

	log.Println("server exited gracefully")
}
