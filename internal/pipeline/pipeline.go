// Package pipeline orchestrates one analysis run: documents fan out to
// a bounded worker pool for extraction and classification, land in the
// opportunity store in completion order, and the analyzer produces the
// run's gap report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/opportunity-finder/internal/analyze"
	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
	"github.com/marcus/opportunity-finder/internal/signal"
	"github.com/marcus/opportunity-finder/internal/store"
)

// Classifier produces exactly one classification result per document.
// *classify.Gateway is the production implementation.
type Classifier interface {
	Classify(ctx context.Context, doc models.Document, tags models.SignalTags) models.ClassificationResult
}

// Archiver persists a completed run. Optional; runs work without one.
type Archiver interface {
	ArchiveRun(ctx context.Context, stats RunStats, opps []models.Opportunity, report models.GapReport) error
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	RunID      string        `json:"run_id"`
	Found      int           `json:"found"`
	Classified int           `json:"classified"`
	Fallbacks  int           `json:"fallbacks"`
	Skipped    int           `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Pipeline wires the extractor, gateway, store and analyzer together.
type Pipeline struct {
	cfg        *config.Config
	extractor  *signal.Extractor
	classifier Classifier
	store      *store.Store
	analyzer   *analyze.Analyzer
	archiver   Archiver
}

func New(cfg *config.Config, classifier Classifier, st *store.Store) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		extractor:  signal.NewExtractor(cfg),
		classifier: classifier,
		store:      st,
		analyzer:   analyze.NewAnalyzer(cfg),
	}
}

// WithArchiver attaches a run archive. Archive failures are reported
// but never block the report.
func (p *Pipeline) WithArchiver(a Archiver) *Pipeline {
	p.archiver = a
	return p
}

// Store exposes the backing store for read-side consumers.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Run processes a batch of documents and returns the gap report for the
// full store contents. Cancellation mid-run does not lose documents:
// every document still gets a record, the unclassified ones as canceled
// fallbacks. The only error paths are an empty batch and a failed
// archive write.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) (models.GapReport, RunStats, error) {
	stats := RunStats{
		RunID:     uuid.NewString(),
		Found:     len(docs),
		StartedAt: time.Now(),
	}
	if len(docs) == 0 {
		return models.GapReport{}, stats, fmt.Errorf("pipeline: no documents to process")
	}

	jobs := make(chan models.Document)
	var wg sync.WaitGroup
	var mu sync.Mutex

	workers := p.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				classified, fellBack := p.process(ctx, doc)
				mu.Lock()
				if !classified {
					stats.Skipped++
				} else if fellBack {
					stats.Fallbacks++
				} else {
					stats.Classified++
				}
				mu.Unlock()
			}
		}()
	}

	for _, doc := range docs {
		jobs <- doc
	}
	close(jobs)
	wg.Wait()

	scored, report := p.analyzer.Analyze(p.store.Snapshot(), time.Now())
	p.store.Rescore(scored)

	stats.FinishedAt = time.Now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	log.Printf("pipeline: run %s finished: %d found, %d classified, %d fallbacks, %d skipped in %v",
		stats.RunID, stats.Found, stats.Classified, stats.Fallbacks, stats.Skipped, stats.Duration)

	if p.archiver != nil {
		if err := p.archiver.ArchiveRun(ctx, stats, p.store.Snapshot(), report); err != nil {
			return report, stats, fmt.Errorf("archive run %s: %w", stats.RunID, err)
		}
	}
	return report, stats, nil
}

// process runs one document through extract, classify and append.
// Returns whether a record was stored and whether it is a fallback.
func (p *Pipeline) process(ctx context.Context, doc models.Document) (stored, fellBack bool) {
	if doc.ID == "" {
		doc.ID = models.DocumentID(doc.SourceName, doc.RawText)
	}
	if doc.CollectedAt.IsZero() {
		doc.CollectedAt = time.Now()
	}

	tags := p.extractor.Tag(doc)
	doc.Category = p.extractor.Categorize(doc, tags)

	result := p.classifier.Classify(ctx, doc, tags)

	err := p.store.Append(models.Opportunity{
		Document:       doc,
		Tags:           tags,
		Classification: result,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Printf("pipeline: skipping duplicate document %s", doc.ID)
		} else {
			log.Printf("pipeline: dropping document %s: %v", doc.ID, err)
		}
		return false, false
	}
	return true, result.IsFallback
}
