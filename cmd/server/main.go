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

	"github.com/jgirmay/cardstudy/internal/config"
	"github.com/jgirmay/cardstudy/internal/database"
	"github.com/jgirmay/cardstudy/internal/metrics"
	"github.com/jgirmay/cardstudy/internal/router"
	"github.com/jgirmay/cardstudy/pkg/study"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting cardstudy server...")
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Port: %d", cfg.Port)

	db, err := database.InitPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database initialized successfully at: %s", cfg.DatabaseURL)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Database migrations completed successfully")

	store := study.NewSQLiteStore(db.DB)
	businessMetrics := metrics.NewBusinessMetricsRegistry()
	service := study.NewService(store, study.SystemClock{}).WithMetrics(businessMetrics)
	studyRouter := study.NewRouter(service)

	httpMetrics := metrics.NewHTTPMetricsRegistry()

	engine := router.Setup(cfg, db, studyRouter, httpMetrics, businessMetrics)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Port)
		log.Printf("Health check available at: http://localhost:%d/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
