// Package signal derives cheap deterministic annotations from raw
// document text: funding detection, amount extraction, stage matching,
// utility relevance and the final category assignment. No I/O, no
// shared state; the same document and configuration always produce the
// same tags.
package signal

import (
	"strings"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

// Extractor tags documents against one immutable configuration.
type Extractor struct {
	cfg *config.Config
}

func NewExtractor(cfg *config.Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Tag computes the signal annotations for one document. It is total:
// empty or garbage text yields zero-valued tags, never an error.
func (e *Extractor) Tag(doc models.Document) models.SignalTags {
	lower := strings.ToLower(doc.RawText)

	var tags models.SignalTags
	for _, kw := range e.cfg.FundingKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			tags.HasFundingContent = true
			break
		}
	}

	for _, m := range parseAmounts(doc.RawText) {
		tags.AmountCandidates = append(tags.AmountCandidates, m.Raw)
		if tags.FundingAmountRaw == "" {
			tags.FundingAmountRaw = m.Raw
			tags.FundingAmountUSDM = m.USDM
		}
	}

	// Vocabulary order decides, not position in the document: the first
	// vocabulary entry found anywhere in the text wins.
	for _, stage := range e.cfg.StageVocabulary {
		if strings.Contains(lower, strings.ToLower(stage)) {
			tags.FundingStage = stage
			break
		}
	}

	for _, kw := range e.cfg.UtilityKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			tags.MatchedKeywords = append(tags.MatchedKeywords, kw)
		}
	}
	tags.UtilityRelevance = len(tags.MatchedKeywords) > 0

	return tags
}

// Categorize assigns the document category from its source profile and
// tags. Pinned sources keep their configured category unconditionally;
// otherwise funding content promotes to funding, then the source default
// applies, then whatever category the caller already set.
func (e *Extractor) Categorize(doc models.Document, tags models.SignalTags) models.Category {
	profile, known := e.cfg.Profile(doc.SourceName)
	if known && profile.PinCategory {
		if c := models.Category(profile.DefaultCategory); c.Valid() {
			return c
		}
	}
	if tags.HasFundingContent {
		return models.CategoryFunding
	}
	if known {
		if c := models.Category(profile.DefaultCategory); c.Valid() {
			return c
		}
	}
	if doc.Category.Valid() {
		return doc.Category
	}
	return models.CategoryInfrastructure
}
