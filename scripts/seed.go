package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/searchforge/relevance/internal/adapters/database"
	"github.com/searchforge/relevance/internal/adapters/search"
	"github.com/searchforge/relevance/internal/application/services"
	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/infrastructure/clients/postgres"
	"github.com/searchforge/relevance/internal/infrastructure/clients/typesense"
	"github.com/searchforge/relevance/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	var searchRepo *search.TypesenseAdapter
	if err == nil {
		if err := tsClient.InitSchema(context.Background()); err != nil {
			log.Printf("Failed to init schema: %v", err)
		}
		searchRepo = search.NewTypesenseAdapter(tsClient)
	}

	historyRepo := database.NewSearchHistoryAdapter(pgClient)
	experimentRepo := database.NewExperimentAdapter(pgClient)
	experiments := services.NewExperimentService(experimentRepo, services.ExperimentConfig{
		MinSampleSize:   cfg.Experiments.MinSampleSize,
		ConfidenceLevel: cfg.Experiments.ConfidenceLevel,
	})

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				experiment_events,
				experiment_assignments,
				experiments,
				search_events
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	now := time.Now()

	// 1. Seed documents
	documents := []entities.Document{
		{ID: uuid.New().String(), EntityType: "article", Title: "How to reset your password", Body: "Step by step guide to resetting a forgotten password.", Tags: []string{"account", "guide"}, IsActive: true, CreatedAt: now.AddDate(0, 0, -3), UpdatedAt: now.AddDate(0, 0, -3)},
		{ID: uuid.New().String(), EntityType: "article", Title: "What is two-factor authentication", Body: "An explainer on 2FA and why it matters.", Tags: []string{"security", "guide"}, IsActive: true, CreatedAt: now.AddDate(0, 0, -40), UpdatedAt: now.AddDate(0, 0, -40)},
		{ID: uuid.New().String(), EntityType: "product", Title: "Lightweight laptop 14\"", Body: "A thin and light notebook for travel.", Tags: []string{"laptop", "portable"}, IsActive: true, CreatedAt: now.AddDate(0, 0, -10), UpdatedAt: now.AddDate(0, 0, -10)},
		{ID: uuid.New().String(), EntityType: "product", Title: "Workstation laptop 16\"", Body: "High performance notebook for heavy workloads.", Tags: []string{"laptop", "workstation"}, IsActive: true, CreatedAt: now.AddDate(0, -6, 0), UpdatedAt: now.AddDate(0, -6, 0)},
		{ID: uuid.New().String(), EntityType: "product", Title: "Discontinued netbook", Body: "Legacy small form factor notebook.", Tags: []string{"laptop"}, IsActive: false, CreatedAt: now.AddDate(-2, 0, 0), UpdatedAt: now.AddDate(-1, 0, 0)},
		{ID: uuid.New().String(), EntityType: "faq", Title: "Where do I find my invoices", Body: "Invoices live under billing settings.", Tags: []string{"billing"}, IsActive: true, CreatedAt: now.AddDate(0, -1, 0), UpdatedAt: now.AddDate(0, -1, 0)},
	}

	if searchRepo != nil {
		for _, d := range documents {
			if err := searchRepo.Index(ctx, &d); err != nil {
				log.Printf("Failed to index document %q: %v", d.Title, err)
			}
		}
		log.Printf("Indexed %d documents", len(documents))
	}

	// 2. Seed click history so click boosting has signal on day one
	queries := []string{"laptop", "reset password", "invoices"}
	for i := 0; i < 40; i++ {
		doc := documents[i%3]
		event := &entities.SearchEvent{
			ID:               uuid.New().String(),
			Query:            queries[i%len(queries)],
			NormalizedQuery:  queries[i%len(queries)],
			DetectedIntent:   "informational",
			IntentConfidence: 0.7,
			ResultCount:      5,
			LatencyMs:        20 + i%15,
			SessionID:        uuid.New().String(),
			UserID:           uuid.New().String(),
			Clicked:          i%2 == 0,
			CreatedAt:        now.AddDate(0, 0, -(i % 14)),
		}
		if event.Clicked {
			event.ClickPosition = 1 + i%4
			event.ClickedEntityType = doc.EntityType
			event.ClickedEntityID = doc.ID
		}
		if err := historyRepo.LogEvent(ctx, event); err != nil {
			log.Printf("Failed to log search event: %v", err)
		}
	}
	log.Println("Seeded search history")

	// 3. Seed the ranking weights experiment
	control, _ := json.Marshal(services.RankingWeights{ClickBoostWeight: 0.5, FreshnessWeight: 0.2})
	treatment, _ := json.Marshal(services.RankingWeights{ClickBoostWeight: 0.8, FreshnessWeight: 0.1})
	exp := &entities.Experiment{
		Name:        "ranking-weights",
		Description: "Heavier click boost weighting against the production baseline",
		Variants: map[string]json.RawMessage{
			"control":   control,
			"treatment": treatment,
		},
		TrafficPercentage: 50,
		PrimaryMetric:     "click",
	}
	if err := experiments.Create(ctx, exp); err != nil {
		log.Printf("Failed to create experiment: %v", err)
	} else if err := experiments.Start(ctx, exp.Name); err != nil {
		log.Printf("Failed to start experiment: %v", err)
	} else {
		log.Printf("Experiment %q running at %d%% traffic", exp.Name, exp.TrafficPercentage)
	}

	log.Println("Seeding complete")
}
