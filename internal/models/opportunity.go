package models

import "time"

// TRLBucket groups technology readiness levels into the three maturity
// bands used by the quadrant model.
type TRLBucket string

const (
	BucketResearch    TRLBucket = "Research"    // TRL 1-3
	BucketDevelopment TRLBucket = "Development" // TRL 4-6
	BucketCommercial  TRLBucket = "Commercial"  // TRL 7-9
)

// Rank orders buckets for tie-breaking: Commercial > Development > Research.
func (b TRLBucket) Rank() int {
	switch b {
	case BucketCommercial:
		return 3
	case BucketDevelopment:
		return 2
	case BucketResearch:
		return 1
	}
	return 0
}

// Quadrant is the strategic quadrant an opportunity lands in, a pure
// function of (strategic fit score, TRL bucket).
type Quadrant string

const (
	QuadrantSweetSpot         Quadrant = "SweetSpot"
	QuadrantResearchBet       Quadrant = "ResearchBet"
	QuadrantEmergingHighValue Quadrant = "EmergingHighValue"
	QuadrantMonitor           Quadrant = "Monitor"
)

// Opportunity joins a Document with its SignalTags and
// ClassificationResult. The scoring fields are owned by the analyzer and
// recomputed wholesale on every analysis run.
type Opportunity struct {
	Document       Document             `json:"document"`
	Tags           SignalTags           `json:"tags"`
	Classification ClassificationResult `json:"classification"`

	StrategicFitScore int       `json:"strategic_fit_score"`
	TRLBucket         TRLBucket `json:"trl_bucket"`
	Quadrant          Quadrant  `json:"quadrant"`
}

// GapReport is the run-scoped aggregate over the opportunity store. It is
// a pure function of the store contents; re-running analysis on the same
// store yields identical content except GeneratedAt.
type GapReport struct {
	TotalDocuments int `json:"total_documents"`
	// CategoryCounts tallies successfully classified records per
	// category; fallback records show up in FallbackCount instead.
	// Every category is present, zero included.
	CategoryCounts            map[Category]int `json:"category_counts"`
	FundingAmountDistribution []float64        `json:"funding_amount_distribution"`
	UnderservedCategories     []Category       `json:"underserved_categories"`
	TopOpportunities          []Opportunity    `json:"top_opportunities"`
	FallbackCount             int              `json:"fallback_count"`
	FallbackRatio             float64          `json:"fallback_ratio"`
	GeneratedAt               time.Time        `json:"generated_at"`
}
