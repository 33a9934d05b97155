// Batch runner: reads documents from a JSON file, runs one analysis
// pass and renders the gap report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/marcus/opportunity-finder/internal/classify"
	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/db"
	"github.com/marcus/opportunity-finder/internal/models"
	"github.com/marcus/opportunity-finder/internal/pipeline"
	"github.com/marcus/opportunity-finder/internal/store"
)

func main() {
	_ = godotenv.Load()

	var (
		docsFile   = flag.String("file", "documents.json", "JSON file with an array of documents")
		configFile = flag.String("config", "", "optional config overlay file")
		archive    = flag.Bool("archive", false, "archive the run to Postgres")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	raw, err := os.ReadFile(*docsFile)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *docsFile, err)
	}
	var docs []models.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		log.Fatalf("Failed to parse %s: %v", *docsFile, err)
	}

	ctx := context.Background()
	classifier := classify.NewOllamaClient(cfg.Classifier.Endpoint, cfg.Classifier.Model)
	gateway := classify.NewGateway(cfg, classify.NewRegistry(cfg), classifier)
	p := pipeline.New(cfg, gateway, store.New())

	if *archive {
		pool, err := db.Connect(ctx)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		p = p.WithArchiver(db.NewArchive(pool))
	}

	report, stats, err := p.Run(ctx, docs)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Printf("Run %s: %d found, %d classified, %d fallbacks (%.0f%% fallback ratio) in %v\n\n",
		stats.RunID, stats.Found, stats.Classified, stats.Fallbacks, report.FallbackRatio*100, stats.Duration)

	counts := table.NewWriter()
	counts.SetOutputMirror(os.Stdout)
	counts.AppendHeader(table.Row{"Category", "Classified", "Underserved"})
	underserved := map[models.Category]bool{}
	for _, c := range report.UnderservedCategories {
		underserved[c] = true
	}
	for _, c := range models.AllCategories {
		mark := ""
		if underserved[c] {
			mark = "yes"
		}
		counts.AppendRow(table.Row{string(c), report.CategoryCounts[c], mark})
	}
	counts.Render()
	fmt.Println()

	top := table.NewWriter()
	top.SetOutputMirror(os.Stdout)
	top.AppendHeader(table.Row{"Score", "Quadrant", "TRL", "Category", "Source", "Insight"})
	for _, opp := range report.TopOpportunities {
		insight := opp.Classification.KeyInsight
		if len(insight) > 60 {
			insight = insight[:60] + "..."
		}
		top.AppendRow(table.Row{
			opp.StrategicFitScore,
			string(opp.Quadrant),
			string(opp.TRLBucket),
			string(opp.Document.Category),
			opp.Document.SourceName,
			insight,
		})
	}
	top.Render()
}
