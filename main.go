package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/config"
	"formcloud-bridge/internal/dispatch"
	"formcloud-bridge/internal/handlers"
	"formcloud-bridge/internal/middleware"
	"formcloud-bridge/internal/pipeline"
	"formcloud-bridge/internal/redis"
	"formcloud-bridge/internal/token"
	"formcloud-bridge/internal/transform"
)

func main() {
	// Set up CPU usage
	_ = godotenv.Load()
	nCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nCPU)
	fmt.Printf("Number of CPUs: %d\n", nCPU)

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	// Token cache: Redis when configured, in-process otherwise
	var cache token.Cache = token.NewMemoryCache()
	if cfg.RedisAddress != "" {
		db, _ := strconv.Atoi(cfg.RedisDB)
		rdb, err := redis.Connect(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()

		cache = token.NewRedisCache(rdb)
		logger.Info("Using Redis token cache",
			logging.Field{Key: "address", Value: cfg.RedisAddress},
		)
	}

	// Wire the pipeline
	tokens := token.NewManager(cache, cfg.LoginAttemptsMax, cfg.RequestTokenWait, logger)
	dispatcher := dispatch.NewDispatcher(tokens, cfg.DoNotSend, logger)
	engine := transform.NewEngine(cfg.PhonePrefix, cfg.BooleanExemptFields)
	orchestrator := pipeline.NewOrchestrator(cfg, engine, dispatcher, logger)
	h := handlers.New(orchestrator, logger)

	// Set up routes
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	h.RegisterRoutes(router)

	// Set up HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting",
			logging.Field{Key: "port", Value: cfg.Port},
			logging.Field{Key: "do_not_send", Value: cfg.DoNotSend},
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
