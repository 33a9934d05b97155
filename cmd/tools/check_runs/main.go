// Lists archived analysis runs.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/marcus/opportunity-finder/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := db.NewArchive(pool).ListRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Found", "Classified", "Fallbacks", "Skipped", "Duration", "Started At"})

	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID[:8], r.Found, r.Classified, r.Fallbacks, r.Skipped,
			r.Duration.String(), r.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
