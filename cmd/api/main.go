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

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seedscout/seedscout_api/internal/cache"
	"github.com/seedscout/seedscout_api/internal/config"
	"github.com/seedscout/seedscout_api/internal/database"
	"github.com/seedscout/seedscout_api/internal/handler"
	"github.com/seedscout/seedscout_api/internal/middleware"
	"github.com/seedscout/seedscout_api/internal/queue"
	"github.com/seedscout/seedscout_api/internal/repository"
	"github.com/seedscout/seedscout_api/internal/scheduler"
	"github.com/seedscout/seedscout_api/internal/scraper"
	"github.com/seedscout/seedscout_api/internal/service"
	"github.com/seedscout/seedscout_api/internal/sse"
	"github.com/seedscout/seedscout_api/internal/worker"
	"github.com/seedscout/seedscout_api/pkg/renderer"
)

// main is the application entrypoint for the SeedScout price API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting seedscout api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Initialize repositories
	productRepo := repository.NewProductRepository(db)
	quoteRepo := repository.NewPriceQuoteRepository(db)
	jobRepo := repository.NewScrapeJobRepository(db)

	// 5. Initialize queue and status broadcast
	jobQueue := queue.New(jobRepo, cfg.Scraper.MaxAttempts, cfg.Scraper.BackoffBase)
	hub := sse.NewHub()
	notifier := sse.NewHubNotifier(hub)

	// 6. Initialize renderer client and vendor adapters
	renderClient := renderer.NewClient(renderer.Config{
		BaseURL:        cfg.Renderer.BaseURL,
		Timeout:        cfg.Renderer.Timeout,
		RequestsPerSec: cfg.Renderer.RequestsPerSec,
		Burst:          cfg.Renderer.Burst,
	})
	registry := scraper.NewRegistry()
	scraper.RegisterDefaults(registry, renderClient)
	log.Info().Strs("vendors", registry.Vendors()).Msg("Vendor adapters registered")

	// 7. Initialize services
	priceCache := cache.NewPriceCache(redisClient, cfg.Cache.ReadTTL, cfg.Cache.TrendingTTL)
	reconcileSvc := service.NewReconcileService(productRepo, quoteRepo, cfg.Scraper.ValidityWindow)
	priceSvc := service.NewPriceService(productRepo, quoteRepo, priceCache)

	// 8. Initialize scheduler
	sched := scheduler.New(jobQueue, registry, cfg.Scheduler.CronSpec, cfg.Scheduler.VendorStagger)

	// 9. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(db, redisClient, hub),
		Price:  handler.NewPriceHandler(priceSvc),
		Admin:  handler.NewAdminHandler(sched, jobQueue),
		SSE:    handler.NewSSEHandler(hub),
	}

	// 10. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers)

	// 11. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 12. Start workers and scheduler
	limiter := worker.NewSlidingWindowLimiter(cfg.Scraper.RateLimitMax, cfg.Scraper.RateLimitSpan)
	go worker.NewScrapeWorker(jobQueue, registry, reconcileSvc, notifier, limiter, cfg.Scraper.DequeueWait).Start(ctx)
	go worker.NewReaperWorker(quoteRepo, productRepo, cfg.Scraper.ReaperInterval).Start(ctx)

	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("scheduler start failed")
		fmt.Fprintf(os.Stderr, "scheduler start failed: %v\n", err)
		os.Exit(1)
	}

	// 13. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 15. Stop scheduler and workers
	sched.Stop()
	cancel()

	// 16. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health *handler.HealthHandler
	Price  *handler.PriceHandler
	Admin  *handler.AdminHandler
	SSE    *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers) {
	router.GET("/health", handlers.Health.GetHealth)
	router.GET("/queue/stats", handlers.Admin.GetQueueStats)
	router.GET("/events", handlers.SSE.Stream)

	prices := router.Group("/prices")
	{
		prices.GET("/today", handlers.Price.GetToday)
		prices.GET("/search", handlers.Price.Search)
		prices.GET("/seed/:slug", handlers.Price.GetSeed)
		prices.GET("/compare", handlers.Price.Compare)
		prices.GET("/trending", handlers.Price.GetTrending)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/scrape/:vendor", handlers.Admin.TriggerScrape)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
