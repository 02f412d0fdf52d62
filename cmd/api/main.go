package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchforge/relevance/internal/adapters/cache"
	"github.com/searchforge/relevance/internal/adapters/database"
	"github.com/searchforge/relevance/internal/adapters/events"
	"github.com/searchforge/relevance/internal/adapters/search"
	"github.com/searchforge/relevance/internal/application/services"
	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/providers"
	"github.com/searchforge/relevance/internal/domain/repositories"
	"github.com/searchforge/relevance/internal/infrastructure/clients/postgres"
	"github.com/searchforge/relevance/internal/infrastructure/clients/redis"
	"github.com/searchforge/relevance/internal/infrastructure/clients/typesense"
	"github.com/searchforge/relevance/internal/infrastructure/observability"
	"github.com/searchforge/relevance/pkg/breaker"
	"github.com/searchforge/relevance/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - search works without caching
	} else {
		defer redisClient.Close()
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatalf("Failed to initialize Typesense client: %v", err)
	}
	if err := typesenseClient.InitSchema(ctx); err != nil {
		log.Printf("Warning: Failed to init Typesense schema: %v", err)
	}

	// Breakers protect degradable dependencies; every state change is
	// visible in metrics.
	registry := breaker.NewRegistry()
	cacheBreaker := registry.Get("cache", breaker.Config{
		Threshold:        cfg.Breaker.Threshold,
		Timeout:          time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	})
	cacheBreaker.OnStateChange(func(name string, from, to breaker.State) {
		observability.RecordBreakerTransition(context.Background(), metrics, name, string(from), string(to))
	})

	// Adapters
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewProtectedAdapter(cache.NewRedisAdapter(redisClient), cacheBreaker)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	historyRepo := database.NewSearchHistoryAdapter(pgClient)
	experimentRepo := database.NewExperimentAdapter(pgClient)

	typesenseAdapter := search.NewTypesenseAdapter(typesenseClient)
	var searchRepo repositories.DocumentSearchRepository = typesenseAdapter

	// Services
	flags := services.NewFeatureFlags()

	synonyms := services.NewSynonymExpansionService()
	if cfg.Dictionaries.SynonymsPath != "" {
		if err := synonyms.LoadFile(cfg.Dictionaries.SynonymsPath, cfg.Dictionaries.Format); err != nil {
			log.Printf("Warning: Failed to load synonym dictionary: %v", err)
		} else if err := typesenseAdapter.SyncSynonyms(ctx, synonyms.Groups()); err != nil {
			log.Printf("Warning: Failed to sync synonyms to search backend: %v", err)
		}
	}

	experiments := services.NewExperimentService(experimentRepo, services.ExperimentConfig{
		MinSampleSize:   cfg.Experiments.MinSampleSize,
		ConfidenceLevel: cfg.Experiments.ConfidenceLevel,
	})

	clickBoosts := services.NewClickBoostService(historyRepo, services.ClickBoostConfig{
		WindowDays:        cfg.Search.ClickWindowDays,
		DecayWindowDays:   cfg.Search.DecayWindowDays,
		MinClicksForBoost: cfg.Search.MinClicksForBoost,
	})

	defaultWeights := services.RankingWeights{
		ClickBoostWeight: cfg.Search.ClickBoostWeight,
		FreshnessWeight:  cfg.Search.FreshnessWeight,
	}
	ranking := services.NewSearchRankingService(
		clickBoosts,
		flags,
		defaultWeights,
		cfg.Search.EntityBoostFactors,
		cfg.Search.FreshnessWindowDays,
	)

	analytics := services.NewSearchAnalyticsService(historyRepo, experiments)

	searchService := services.NewSearchService(services.SearchServiceDeps{
		Parser:            services.NewQueryParserService(),
		Intents:           services.NewIntentClassificationService(cfg.Search.MinIntentConfidence, entities.IntentType(cfg.Search.DefaultIntent)),
		Synonyms:          synonyms,
		Ranking:           ranking,
		Analytics:         analytics,
		Experiments:       experiments,
		SearchRepo:        searchRepo,
		Cache:             cacheProvider,
		Flags:             flags,
		Metrics:           metrics,
		DefaultWeights:    defaultWeights,
		DefaultLimit:      cfg.Search.DefaultResultLimit,
		CacheSeconds:      cfg.Search.ResponseCacheSeconds,
		RankingExperiment: cfg.Experiments.RankingExperiment,
	})
	// Warmup search verifies the full pipeline before the process
	// reports itself ready.
	warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
	if _, err := searchService.Search(warmupCtx, services.SearchRequest{Query: "warmup", Limit: 1}); err != nil {
		log.Printf("Warning: Warmup search failed: %v", err)
	}
	warmupCancel()

	// Click ingestion: clicks published by the result-serving layer are
	// turned into history rows (click boost input) and experiment events.
	if eventBus != nil {
		clicks, err := eventBus.Subscribe(ctx, providers.EventChannelClicks)
		if err != nil {
			log.Printf("Warning: Failed to subscribe to click events: %v", err)
		} else {
			go func() {
				for click := range clicks {
					ingestCtx, ingestCancel := context.WithTimeout(context.Background(), 5*time.Second)
					if err := analytics.RecordClick(ingestCtx, click, cfg.Experiments.RankingExperiment); err != nil {
						log.Printf("Warning: Failed to ingest click %s: %v", click.ID, err)
					}
					ingestCancel()
				}
			}()
			log.Println("Click ingestion consumer started")
		}
	}

	log.Println("Search relevance core running")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Stopped")
}
