// Package classify sends documents to the external classification
// service and guarantees exactly one structured result per document,
// substituting a deterministic fallback record when the service cannot
// produce a usable response.
package classify

import (
	"context"
	"log"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

// Gateway wraps a Classifier with rate limiting, per-attempt timeouts,
// retry with backoff, and response validation. It never returns an
// error: every document gets exactly one ClassificationResult.
type Gateway struct {
	registry   *Registry
	classifier Classifier
	limiter    *rate.Limiter
	retry      config.RetryConfig
}

func NewGateway(cfg *config.Config, registry *Registry, classifier Classifier) *Gateway {
	return &Gateway{
		registry:   registry,
		classifier: classifier,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
		retry:      cfg.Retry,
	}
}

// Classify produces the classification result for one tagged document.
// Transient faults retry with exponential backoff up to the configured
// attempt budget; terminal faults and exhausted budgets yield a fallback
// record carrying the last failure kind.
func (g *Gateway) Classify(ctx context.Context, doc models.Document, tags models.SignalTags) models.ClassificationResult {
	desc, ok := g.registry.Lookup(doc.Category)
	if !ok {
		log.Printf("classify: no schema for category %q (doc %s)", doc.Category, doc.ID)
		// No descriptor to build a payload from; use the infrastructure
		// shape as the neutral default.
		fb, _ := g.registry.Lookup(models.CategoryInfrastructure)
		return g.fallback(fb, doc.ID, models.ErrKindUnsupportedSchema)
	}

	prompt := desc.BuildPrompt(doc, tags)
	lastKind := models.ErrKindServiceError

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.fallback(desc, doc.ID, models.ErrKindCanceled)
		}

		result, kind, transient := g.attempt(ctx, desc, doc.ID, prompt)
		if kind == "" {
			return result
		}
		if !transient {
			return g.fallback(desc, doc.ID, kind)
		}
		lastKind = kind

		if attempt < g.retry.MaxAttempts {
			backoff := g.retry.BackoffBase() * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			log.Printf("classify: attempt %d/%d for doc %s failed (%s), retrying in %v",
				attempt, g.retry.MaxAttempts, doc.ID, kind, backoff+jitter)
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return g.fallback(desc, doc.ID, models.ErrKindCanceled)
			}
		}
	}

	log.Printf("classify: retries exhausted for doc %s, last failure %s", doc.ID, lastKind)
	return g.fallback(desc, doc.ID, lastKind)
}

// attempt makes one rate-limited call and validates the response. An
// empty kind means success.
func (g *Gateway) attempt(ctx context.Context, desc *Descriptor, docID, prompt string) (models.ClassificationResult, models.ErrorKind, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.retry.AttemptTimeout())
	defer cancel()

	resp, err := g.classifier.Complete(attemptCtx, prompt, true)
	if err != nil {
		// The attempt deadline reads as DeadlineExceeded even when the
		// run context was canceled; check the parent first.
		if ctx.Err() == context.Canceled {
			return models.ClassificationResult{}, models.ErrKindCanceled, false
		}
		kind, transient := classifyErr(err)
		return models.ClassificationResult{}, kind, transient
	}

	payload, ok := cleanResponse(resp)
	if !ok {
		return models.ClassificationResult{}, models.ErrKindMalformedResponse, true
	}

	result, err := desc.Validate(docID, []byte(payload))
	if err != nil {
		kind, transient := classifyErr(err)
		return models.ClassificationResult{}, kind, transient
	}
	return result, "", false
}

func (g *Gateway) fallback(desc *Descriptor, docID string, kind models.ErrorKind) models.ClassificationResult {
	fb := desc.Fallback(docID)
	fb.ErrorKind = kind
	return fb
}
