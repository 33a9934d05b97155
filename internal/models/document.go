package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Category is the coarse content category assigned exactly once by the
// signal extractor and never mutated downstream.
type Category string

const (
	CategoryFunding          Category = "funding"
	CategoryInfrastructure   Category = "infrastructure"
	CategoryUtilityStrategic Category = "utility_strategic"
)

// AllCategories lists every category in report order.
var AllCategories = []Category{
	CategoryFunding,
	CategoryInfrastructure,
	CategoryUtilityStrategic,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFunding, CategoryInfrastructure, CategoryUtilityStrategic:
		return true
	}
	return false
}

// Document is one unit of raw content handed over by the ingestion
// collaborator. RawText is plain text; any HTML is stripped at the API
// boundary before a Document is built.
type Document struct {
	ID          string     `json:"id"`
	SourceName  string     `json:"source_name"`
	Category    Category   `json:"category"`
	RawText     string     `json:"raw_text"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`
}

// DocumentID derives the stable document ID from the source name and raw
// text. Upstream may assign its own ID; this is the fallback when it
// doesn't.
func DocumentID(sourceName, rawText string) string {
	h := sha256.New()
	h.Write([]byte(sourceName))
	h.Write([]byte{'\n'})
	h.Write([]byte(rawText))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// SignalTags are the cheap derived annotations attached 1:1 to a Document
// by the signal extractor.
type SignalTags struct {
	HasFundingContent bool     `json:"has_funding_content"`
	FundingAmountRaw  string   `json:"funding_amount_raw,omitempty"`
	// FundingAmountUSDM is the first amount normalized to millions USD.
	// Nil whenever FundingAmountRaw is empty or did not parse; never a
	// sentinel zero.
	FundingAmountUSDM *float64 `json:"funding_amount_usdm,omitempty"`
	FundingStage      string   `json:"funding_stage,omitempty"`
	UtilityRelevance  bool     `json:"utility_relevance"`
	MatchedKeywords   []string `json:"matched_keywords,omitempty"`
	// AmountCandidates keeps every currency amount seen, in document
	// order. First match wins for FundingAmountRaw; the rest are retained
	// so reviewers can audit documents stating more than one figure.
	AmountCandidates []string `json:"amount_candidates,omitempty"`
}

// NeedsAmountReview reports whether the document stated more than one
// distinct amount, in which case the chosen first match should be
// reviewed rather than trusted blindly.
func (t SignalTags) NeedsAmountReview() bool {
	if len(t.AmountCandidates) < 2 {
		return false
	}
	first := t.AmountCandidates[0]
	for _, c := range t.AmountCandidates[1:] {
		if c != first {
			return true
		}
	}
	return false
}
