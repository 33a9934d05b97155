package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcus/opportunity-finder/internal/models"
	"github.com/marcus/opportunity-finder/internal/pipeline"
)

// Archive persists completed pipeline runs. It satisfies
// pipeline.Archiver.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// ArchiveRun writes the run, its opportunities and its report in one
// transaction so a partially written run never appears in listings.
func (a *Archive) ArchiveRun(ctx context.Context, stats pipeline.RunStats, opps []models.Opportunity, report models.GapReport) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_runs (id, documents_found, classified, fallbacks, skipped, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stats.RunID, stats.Found, stats.Classified, stats.Fallbacks, stats.Skipped,
		stats.StartedAt, stats.FinishedAt, stats.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", stats.RunID, err)
	}

	for _, opp := range opps {
		tagsJSON, err := json.Marshal(opp.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", opp.Document.ID, err)
		}
		classJSON, err := json.Marshal(opp.Classification)
		if err != nil {
			return fmt.Errorf("marshal classification for %s: %w", opp.Document.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO opportunities (run_id, document_id, source_name, category, raw_text,
				published_at, collected_at, tags, classification, is_fallback,
				strategic_fit_score, trl_bucket, quadrant)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			stats.RunID, opp.Document.ID, opp.Document.SourceName, string(opp.Document.Category),
			opp.Document.RawText, opp.Document.PublishedAt, opp.Document.CollectedAt,
			tagsJSON, classJSON, opp.Classification.IsFallback,
			opp.StrategicFitScore, string(opp.TRLBucket), string(opp.Quadrant))
		if err != nil {
			return fmt.Errorf("insert opportunity %s: %w", opp.Document.ID, err)
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO gap_reports (run_id, report, generated_at)
		VALUES ($1, $2, $3)`,
		stats.RunID, reportJSON, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert report for run %s: %w", stats.RunID, err)
	}

	return tx.Commit(ctx)
}

// RunSummary is one row of the archived-run listing.
type RunSummary struct {
	ID         string
	Found      int
	Classified int
	Fallbacks  int
	Skipped    int
	StartedAt  time.Time
	Duration   time.Duration
}

// ListRuns returns archived runs, newest first.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx, `
		SELECT id, documents_found, classified, fallbacks, skipped, started_at, duration_ms
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Found, &r.Classified, &r.Fallbacks, &r.Skipped, &r.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestReport returns the most recently archived gap report.
func (a *Archive) LatestReport(ctx context.Context) (models.GapReport, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `
		SELECT report FROM gap_reports ORDER BY generated_at DESC LIMIT 1`).Scan(&raw)
	if err != nil {
		return models.GapReport{}, fmt.Errorf("load latest report: %w", err)
	}
	var report models.GapReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return models.GapReport{}, fmt.Errorf("decode latest report: %w", err)
	}
	return report, nil
}
