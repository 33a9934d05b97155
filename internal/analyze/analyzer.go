// Package analyze scores stored opportunities and produces the gap
// report. Everything here is pure over (records, configuration, clock):
// no I/O, no randomness, no hidden state.
package analyze

import (
	"sort"
	"strings"
	"time"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

// topLimit bounds how many records the report's ranking carries.
const topLimit = 20

// stageTRL maps a funding stage to an assumed technology readiness
// level when the classification carries no explicit TRL.
var stageTRL = map[string]int{
	"Seed":     3,
	"Series A": 5,
	"Series B": 6,
	"Series C": 7,
	"Growth":   8,
}

// thesisKeywords maps text signals to the thesis tags of the score band
// table, checked in order so the strongest grid signals win.
var thesisKeywords = []struct {
	tag      string
	keywords []string
}{
	{"Grid Infrastructure & Transmission", []string{"transmission", "substation", "interconnection", "grid infrastructure", "distribution network"}},
	{"Energy Storage & Flexibility", []string{"storage", "battery", "batteries"}},
	{"Smart Grid & Digitalization", []string{"smart grid", "smart meter", "grid software", "digitalization", "grid analytics"}},
	{"Renewable Generation", []string{"solar", "wind", "renewable", "geothermal", "hydroelectric"}},
	{"Demand Response & Efficiency", []string{"demand response", "energy efficiency", "load management"}},
	{"Microgrids & Resilience", []string{"microgrid", "resilience", "islanding"}},
	{"EV Infrastructure", []string{"ev charging", "electric vehicle", "charging station", "charging network"}},
}

// Analyzer computes scores, buckets, quadrants and gap reports against
// one immutable configuration.
type Analyzer struct {
	cfg *config.Config
}

func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze scores every record and builds the gap report. The input
// slice is not modified; the returned slice carries the recomputed
// analyzer-owned fields. Idempotent: same records and clock in, same
// report out.
func (a *Analyzer) Analyze(records []models.Opportunity, now time.Time) ([]models.Opportunity, models.GapReport) {
	scored := make([]models.Opportunity, len(records))
	for i, rec := range records {
		scored[i] = a.Score(rec)
	}

	report := models.GapReport{
		TotalDocuments: len(scored),
		CategoryCounts: map[models.Category]int{},
		GeneratedAt:    now,
	}
	for _, c := range models.AllCategories {
		report.CategoryCounts[c] = 0
	}

	var amounts []float64
	for _, rec := range scored {
		// Counts cover successfully classified records; fallbacks are
		// reported separately so a degraded service reads as missing
		// coverage, not as served categories.
		if rec.Classification.IsFallback {
			report.FallbackCount++
		} else {
			report.CategoryCounts[rec.Document.Category]++
		}
		if rec.Tags.FundingAmountUSDM != nil {
			amounts = append(amounts, *rec.Tags.FundingAmountUSDM)
		}
	}
	sort.Float64s(amounts)
	report.FundingAmountDistribution = amounts
	if report.TotalDocuments > 0 {
		report.FallbackRatio = float64(report.FallbackCount) / float64(report.TotalDocuments)
	}

	report.UnderservedCategories = a.underserved(report.CategoryCounts, report.TotalDocuments)
	report.TopOpportunities = rank(scored)

	return scored, report
}

// Score recomputes the analyzer-owned fields of one record.
func (a *Analyzer) Score(rec models.Opportunity) models.Opportunity {
	band := a.cfg.Band(a.thesisTag(rec))
	score := band.Midpoint()
	if us := rec.Classification.UtilityStrategic; us != nil && us.RegulatedAssetPotential {
		score += 5
	}
	if rec.Classification.IsFallback {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	rec.StrategicFitScore = score
	rec.TRLBucket = bucketTRL(trl(rec))
	rec.Quadrant = quadrant(score, rec.TRLBucket)
	return rec
}

// thesisTag resolves the score-band key for a record. Utility strategic
// records carry an explicit tag; everything else is inferred from the
// classified technology type and the raw text.
func (a *Analyzer) thesisTag(rec models.Opportunity) string {
	if us := rec.Classification.UtilityStrategic; us != nil {
		return us.InvestmentThesisTag
	}
	text := rec.Document.RawText
	if inf := rec.Classification.Infrastructure; inf != nil {
		text = inf.TechnologyType + " " + text
	}
	return inferThesisTag(text)
}

func inferThesisTag(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range thesisKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.tag
			}
		}
	}
	return "Other"
}

// trl returns the explicit or stage-derived TRL, or 0 when unknown.
func trl(rec models.Opportunity) int {
	if us := rec.Classification.UtilityStrategic; us != nil {
		return us.TechnologyReadinessLevel
	}
	if stage := rec.Tags.FundingStage; stage != "" {
		if v, ok := stageTRL[stage]; ok {
			return v
		}
		return 4
	}
	return 0
}

// bucketTRL buckets 1-3 Research, 4-6 Development, 7-9 Commercial.
// Unknown defaults to Development: unproven until shown otherwise.
func bucketTRL(v int) models.TRLBucket {
	switch {
	case v >= 1 && v <= 3:
		return models.BucketResearch
	case v >= 7 && v <= 9:
		return models.BucketCommercial
	default:
		return models.BucketDevelopment
	}
}

// quadrant is evaluated in a fixed order so the assignment is a pure
// function of (score, bucket).
func quadrant(score int, bucket models.TRLBucket) models.Quadrant {
	commercial := bucket == models.BucketCommercial
	switch {
	case score >= 70 && commercial:
		return models.QuadrantSweetSpot
	case score >= 70:
		return models.QuadrantResearchBet
	case commercial:
		return models.QuadrantEmergingHighValue
	default:
		return models.QuadrantMonitor
	}
}

// underserved flags categories at or below the count or share
// thresholds. Boundaries are inclusive so a category sitting exactly on
// the threshold is still flagged.
func (a *Analyzer) underserved(counts map[models.Category]int, total int) []models.Category {
	var out []models.Category
	for _, c := range models.AllCategories {
		n := counts[c]
		if n <= a.cfg.Gap.MinCount {
			out = append(out, c)
			continue
		}
		if total > 0 && float64(n)/float64(total) <= a.cfg.Gap.MinShare {
			out = append(out, c)
		}
	}
	return out
}

// rank orders records by score descending, TRL bucket rank descending,
// then document ID ascending, and keeps the head of the list.
func rank(records []models.Opportunity) []models.Opportunity {
	ranked := make([]models.Opportunity, len(records))
	copy(ranked, records)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].StrategicFitScore != ranked[j].StrategicFitScore {
			return ranked[i].StrategicFitScore > ranked[j].StrategicFitScore
		}
		if ranked[i].TRLBucket.Rank() != ranked[j].TRLBucket.Rank() {
			return ranked[i].TRLBucket.Rank() > ranked[j].TRLBucket.Rank()
		}
		return ranked[i].Document.ID < ranked[j].Document.ID
	})
	if len(ranked) > topLimit {
		ranked = ranked[:topLimit]
	}
	return ranked
}
