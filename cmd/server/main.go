package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/marcus/opportunity-finder/internal/api"
	"github.com/marcus/opportunity-finder/internal/classify"
	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/db"
	"github.com/marcus/opportunity-finder/internal/pipeline"
	"github.com/marcus/opportunity-finder/internal/store"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	classifier := classify.NewOllamaClient(cfg.Classifier.Endpoint, cfg.Classifier.Model)
	gateway := classify.NewGateway(cfg, classify.NewRegistry(cfg), classifier)
	p := pipeline.New(cfg, gateway, store.New()).WithArchiver(db.NewArchive(pool))

	srv := api.NewServer(cfg, p, pool)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
