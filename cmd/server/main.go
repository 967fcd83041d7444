package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencarpool/carpool/internal/cache"
	"github.com/opencarpool/carpool/internal/config"
	"github.com/opencarpool/carpool/internal/database"
	"github.com/opencarpool/carpool/internal/handler"
	"github.com/opencarpool/carpool/internal/middleware"
	"github.com/opencarpool/carpool/internal/policy"
	"github.com/opencarpool/carpool/internal/repository"
	"github.com/opencarpool/carpool/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Initialize cache
	var geoCache cache.RideGeoCache
	if cfg.GeoPrefilterEnabled {
		geoCache = cache.NewRideGeoCache(redis.Client)
	}

	// Initialize repositories
	rideRepo := repository.NewRideRepository(db.DB)
	requestRepo := repository.NewRequestRepository(db.DB)

	// Initialize policies
	capacityPolicy := policy.NewCapacityPolicy(cfg.RejectPendingWhenFull)
	detourPolicy := policy.NewMaxDetourPolicy(cfg.MaxDetourPercent)

	// Initialize services
	rideService := service.NewRideService(rideRepo, geoCache)
	searchService := service.NewSearchService(rideRepo, geoCache, cfg.DefaultPageLimit)
	requestService := service.NewRequestService(requestRepo, rideRepo, capacityPolicy, detourPolicy)
	solverService := service.NewSolverService(rideRepo, cfg.DefaultMaxDetourKm)
	pricingService := service.NewPricingService(rideRepo, service.FareConfig{
		BaseFare:            cfg.BaseFare,
		PerKmRate:           cfg.PerKmRate,
		PeakSurcharge:       cfg.PeakSurcharge,
		MorningPeakStart:    cfg.MorningPeakStart,
		MorningPeakEnd:      cfg.MorningPeakEnd,
		EveningPeakStart:    cfg.EveningPeakStart,
		EveningPeakEnd:      cfg.EveningPeakEnd,
		MarketBufferM:       cfg.MarketBufferM,
		MarketWindowDays:    cfg.MarketWindowDays,
		FallbackAvgPrice:    cfg.FallbackAvgPrice,
		FallbackCompetitors: cfg.FallbackCompetitors,
	})
	analyticsService := service.NewAnalyticsService(rideRepo,
		cfg.PopularRoutesRadiusM, cfg.PopularRoutesLimit, cfg.HeatmapCellSizeM)

	// Initialize handlers
	rideHandler := handler.NewRideHandler(rideService, searchService, requestService, solverService, cfg.DefaultSearchRadiusM)
	requestHandler := handler.NewRequestHandler(requestService)
	analyticsHandler := handler.NewAnalyticsHandler(pricingService, analyticsService)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	// Rate limiter (100 requests per minute per IP)
	rateLimiter := middleware.NewRateLimiter(redis.Client, 100, time.Minute)
	r.Use(rateLimiter.Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		rideHandler.RegisterRoutes(r)
		requestHandler.RegisterRoutes(r)
		analyticsHandler.RegisterRoutes(r)
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
