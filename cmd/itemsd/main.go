package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bookstore/services/items/internal/config"
	"github.com/bookstore/services/items/internal/db"
	"github.com/bookstore/services/items/internal/events"
	grpcserver "github.com/bookstore/services/items/internal/grpc"
	"github.com/bookstore/services/items/internal/httpapi"
	"github.com/bookstore/services/items/internal/metrics"
	"github.com/bookstore/services/items/internal/model"
	"github.com/bookstore/services/items/internal/repo"
	"github.com/bookstore/services/items/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	log.Info("Items service starting", zap.String("store_driver", cfg.StoreDriver))

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Connect to RabbitMQ, events are optional
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		log.Info("Connecting to RabbitMQ")
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close()

	m := metrics.New(cfg.ServiceName)
	m.TrackInventorySize(cfg.ServiceName, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		count, err := store.Count(ctx)
		if err != nil {
			log.Warn("Failed to count items for metrics", zap.Error(err))
			return 0
		}
		return float64(count)
	})

	// Start gRPC server for health checks
	grpcServer := grpcserver.NewServer(store, publisher, log)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	go func() {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	// Start HTTP server
	api := httpapi.NewServer(store, publisher, m, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      api.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	grpcServer.GracefulStop()

	if err := api.Wait(ctx); err != nil {
		log.Warn("Pending events were not published before shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// openStore returns the store selected by STORE_DRIVER and a func releasing it
func openStore(cfg *config.Config, log *zap.Logger) (repo.ItemStore, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		return repo.NewMemoryRepository(model.SeedInventory(), log), func() {}, nil
	}

	log.Info("Connecting to database...", zap.String("driver", cfg.StoreDriver))
	database, err := db.Connect(cfg.StoreDriver, cfg.StoreDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database, model.SeedInventory()); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	closeDB := func() {
		if err := database.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}
	return repo.NewItemRepository(database, log), closeDB, nil
}
