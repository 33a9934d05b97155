package classify

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

// maxPromptText bounds how much document text is sent per request.
const maxPromptText = 4000

// Descriptor binds one category to its schema: the prompt sent to the
// service, response validation, and the default payload used for
// fallback records.
type Descriptor struct {
	Name        models.SchemaName
	BuildPrompt func(doc models.Document, tags models.SignalTags) string
	Validate    func(docID string, payload []byte) (models.ClassificationResult, error)
	Fallback    func(docID string) models.ClassificationResult
}

// Registry maps document categories to schema descriptors.
type Registry struct {
	cfg        *config.Config
	byCategory map[models.Category]*Descriptor
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{cfg: cfg, byCategory: map[models.Category]*Descriptor{}}
	r.byCategory[models.CategoryFunding] = r.fundingDescriptor()
	r.byCategory[models.CategoryInfrastructure] = r.infrastructureDescriptor()
	r.byCategory[models.CategoryUtilityStrategic] = r.utilityStrategicDescriptor()
	return r
}

// Lookup returns the descriptor for a category. Unknown categories have
// no schema and classify as unsupported.
func (r *Registry) Lookup(cat models.Category) (*Descriptor, bool) {
	d, ok := r.byCategory[cat]
	return d, ok
}

type wireCommon struct {
	StrategicRelevance *string `json:"strategic_relevance"`
	KeyInsight         string  `json:"key_insight"`
}

// validateCommon decodes the shared fields. A missing relevance is a
// structural failure; an out-of-domain one coerces to Medium.
func validateCommon(payload []byte) (wireCommon, models.Relevance, error) {
	var c wireCommon
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, "", &ValidationError{Msg: err.Error()}
	}
	if c.StrategicRelevance == nil || strings.TrimSpace(*c.StrategicRelevance) == "" {
		return c, "", &ValidationError{Msg: "missing strategic_relevance"}
	}
	rel := coerceRelevance(*c.StrategicRelevance)
	if c.KeyInsight == "" {
		c.KeyInsight = models.NotSpecified
	}
	return c, rel, nil
}

func coerceRelevance(s string) models.Relevance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return models.RelevanceHigh
	case "medium":
		return models.RelevanceMedium
	case "low":
		return models.RelevanceLow
	}
	log.Printf("classify: coercing unknown strategic_relevance %q to Medium", s)
	return models.RelevanceMedium
}

// coerceEnum matches a value against its domain case-insensitively and
// returns the canonical spelling, or "Not specified" for values outside
// the domain. Out-of-domain values are logged, never dropped silently.
func coerceEnum(field, value string, domain []string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return models.NotSpecified
	}
	for _, d := range domain {
		if strings.EqualFold(trimmed, d) {
			return d
		}
	}
	log.Printf("classify: coercing out-of-domain %s %q to %q", field, value, models.NotSpecified)
	return models.NotSpecified
}

// clampInt forces v into [lo, hi], logging when it had to move.
func clampInt(field string, v, lo, hi int) int {
	if v < lo {
		log.Printf("classify: clamping %s %d to %d", field, v, lo)
		return lo
	}
	if v > hi {
		log.Printf("classify: clamping %s %d to %d", field, v, hi)
		return hi
	}
	return v
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotSpecified
	}
	return s
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var projectStages = []string{"Announced", "Planning", "Permitting", "Construction", "Operational"}

func (r *Registry) fundingDescriptor() *Descriptor {
	return &Descriptor{
		Name: models.SchemaFunding,
		BuildPrompt: func(doc models.Document, tags models.SignalTags) string {
			return fmt.Sprintf(`You are an energy-sector investment analyst. Extract the funding round described in the text into JSON.

Source: %s
Detected amount: %s
Text:
%s

JSON Schema:
{
	"strategic_relevance": "High" | "Medium" | "Low",
	"key_insight": "one sentence on why this matters to an electric utility",
	"company_name": "string",
	"lead_investor": "string or null",
	"other_investors": ["string"],
	"investment_type": %q,
	"total_funding_amount": "string as stated in the text"
}

Respond ONLY with the JSON object.`, doc.SourceName, orNotSpecified(tags.FundingAmountRaw), clip(doc.RawText, maxPromptText), strings.Join(r.cfg.StageVocabulary, " | "))
		},
		Validate: func(docID string, payload []byte) (models.ClassificationResult, error) {
			common, rel, err := validateCommon(payload)
			if err != nil {
				return models.ClassificationResult{}, err
			}
			var w struct {
				CompanyName        string   `json:"company_name"`
				LeadInvestor       string   `json:"lead_investor"`
				OtherInvestors     []string `json:"other_investors"`
				InvestmentType     string   `json:"investment_type"`
				TotalFundingAmount string   `json:"total_funding_amount"`
			}
			if err := json.Unmarshal(payload, &w); err != nil {
				return models.ClassificationResult{}, &ValidationError{Msg: err.Error()}
			}
			if strings.TrimSpace(w.CompanyName) == "" {
				return models.ClassificationResult{}, &ValidationError{Msg: "missing company_name"}
			}
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaFunding,
				StrategicRelevance: rel,
				KeyInsight:         common.KeyInsight,
				Funding: &models.FundingSchema{
					CompanyName:        w.CompanyName,
					LeadInvestor:       orNotSpecified(w.LeadInvestor),
					OtherInvestors:     w.OtherInvestors,
					InvestmentType:     coerceEnum("investment_type", w.InvestmentType, r.cfg.StageVocabulary),
					TotalFundingAmount: orNotSpecified(w.TotalFundingAmount),
				},
			}, nil
		},
		Fallback: func(docID string) models.ClassificationResult {
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaFunding,
				StrategicRelevance: models.RelevanceLow,
				KeyInsight:         fallbackInsight,
				IsFallback:         true,
				Funding: &models.FundingSchema{
					CompanyName:        models.NotSpecified,
					LeadInvestor:       models.NotSpecified,
					InvestmentType:     models.NotSpecified,
					TotalFundingAmount: models.NotSpecified,
				},
			}
		},
	}
}

func (r *Registry) infrastructureDescriptor() *Descriptor {
	return &Descriptor{
		Name: models.SchemaInfrastructure,
		BuildPrompt: func(doc models.Document, tags models.SignalTags) string {
			return fmt.Sprintf(`You are a grid infrastructure analyst. Extract the project described in the text into JSON.

Source: %s
Matched keywords: %s
Text:
%s

JSON Schema:
{
	"strategic_relevance": "High" | "Medium" | "Low",
	"key_insight": "one sentence on why this matters to an electric utility",
	"technology_type": "string",
	"location": "string or null",
	"project_stage": "Announced" | "Planning" | "Permitting" | "Construction" | "Operational",
	"grid_infrastructure_keywords": ["string"]
}

Respond ONLY with the JSON object.`, doc.SourceName, strings.Join(tags.MatchedKeywords, ", "), clip(doc.RawText, maxPromptText))
		},
		Validate: func(docID string, payload []byte) (models.ClassificationResult, error) {
			common, rel, err := validateCommon(payload)
			if err != nil {
				return models.ClassificationResult{}, err
			}
			var w struct {
				TechnologyType             string   `json:"technology_type"`
				Location                   string   `json:"location"`
				ProjectStage               string   `json:"project_stage"`
				GridInfrastructureKeywords []string `json:"grid_infrastructure_keywords"`
			}
			if err := json.Unmarshal(payload, &w); err != nil {
				return models.ClassificationResult{}, &ValidationError{Msg: err.Error()}
			}
			if strings.TrimSpace(w.TechnologyType) == "" {
				return models.ClassificationResult{}, &ValidationError{Msg: "missing technology_type"}
			}
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaInfrastructure,
				StrategicRelevance: rel,
				KeyInsight:         common.KeyInsight,
				Infrastructure: &models.InfrastructureSchema{
					TechnologyType:             w.TechnologyType,
					Location:                   orNotSpecified(w.Location),
					ProjectStage:               coerceEnum("project_stage", w.ProjectStage, projectStages),
					GridInfrastructureKeywords: w.GridInfrastructureKeywords,
				},
			}, nil
		},
		Fallback: func(docID string) models.ClassificationResult {
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaInfrastructure,
				StrategicRelevance: models.RelevanceLow,
				KeyInsight:         fallbackInsight,
				IsFallback:         true,
				Infrastructure: &models.InfrastructureSchema{
					TechnologyType: models.NotSpecified,
					Location:       models.NotSpecified,
					ProjectStage:   models.NotSpecified,
				},
			}
		},
	}
}

func (r *Registry) utilityStrategicDescriptor() *Descriptor {
	thesisTags := make([]string, 0, len(r.cfg.ScoreBands))
	for tag := range r.cfg.ScoreBands {
		thesisTags = append(thesisTags, tag)
	}
	// Stable enum order so identical documents produce identical prompts.
	sort.Strings(thesisTags)
	return &Descriptor{
		Name: models.SchemaUtilityStrategic,
		BuildPrompt: func(doc models.Document, tags models.SignalTags) string {
			return fmt.Sprintf(`You are a utility strategic-investment analyst evaluating opportunities for a regulated NY electric utility. Extract the analysis into JSON.

Source: %s
Text:
%s

JSON Schema:
{
	"strategic_relevance": "High" | "Medium" | "Low",
	"key_insight": "one sentence on the strategic takeaway",
	"investment_thesis_tag": %q,
	"technology_readiness_level": 1-9,
	"regulated_asset_potential": boolean,
	"ny_service_territory_relevance": boolean,
	"grid_impact_score": 1-10,
	"clcpa_compliance_value": "string",
	"capital_investment_required": "string",
	"implementation_timeline": "string",
	"risk_assessment": "string",
	"strategic_priority": "High" | "Medium" | "Low"
}

Respond ONLY with the JSON object.`, doc.SourceName, clip(doc.RawText, maxPromptText), strings.Join(thesisTags, " | "))
		},
		Validate: func(docID string, payload []byte) (models.ClassificationResult, error) {
			common, rel, err := validateCommon(payload)
			if err != nil {
				return models.ClassificationResult{}, err
			}
			var w struct {
				InvestmentThesisTag         string `json:"investment_thesis_tag"`
				TechnologyReadinessLevel    *int   `json:"technology_readiness_level"`
				RegulatedAssetPotential     bool   `json:"regulated_asset_potential"`
				NYServiceTerritoryRelevance bool   `json:"ny_service_territory_relevance"`
				GridImpactScore             *int   `json:"grid_impact_score"`
				CLCPAComplianceValue        string `json:"clcpa_compliance_value"`
				CapitalInvestmentRequired   string `json:"capital_investment_required"`
				ImplementationTimeline      string `json:"implementation_timeline"`
				RiskAssessment              string `json:"risk_assessment"`
				StrategicPriority           string `json:"strategic_priority"`
			}
			if err := json.Unmarshal(payload, &w); err != nil {
				return models.ClassificationResult{}, &ValidationError{Msg: err.Error()}
			}
			if w.TechnologyReadinessLevel == nil {
				return models.ClassificationResult{}, &ValidationError{Msg: "missing technology_readiness_level"}
			}
			if w.GridImpactScore == nil {
				return models.ClassificationResult{}, &ValidationError{Msg: "missing grid_impact_score"}
			}
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaUtilityStrategic,
				StrategicRelevance: rel,
				KeyInsight:         common.KeyInsight,
				UtilityStrategic: &models.UtilityStrategicSchema{
					InvestmentThesisTag:         coerceEnum("investment_thesis_tag", w.InvestmentThesisTag, thesisTags),
					TechnologyReadinessLevel:    clampInt("technology_readiness_level", *w.TechnologyReadinessLevel, 1, 9),
					RegulatedAssetPotential:     w.RegulatedAssetPotential,
					NYServiceTerritoryRelevance: w.NYServiceTerritoryRelevance,
					GridImpactScore:             clampInt("grid_impact_score", *w.GridImpactScore, 1, 10),
					CLCPAComplianceValue:        orNotSpecified(w.CLCPAComplianceValue),
					CapitalInvestmentRequired:   orNotSpecified(w.CapitalInvestmentRequired),
					ImplementationTimeline:      orNotSpecified(w.ImplementationTimeline),
					RiskAssessment:              orNotSpecified(w.RiskAssessment),
					StrategicPriority:           coerceEnum("strategic_priority", w.StrategicPriority, []string{"High", "Medium", "Low"}),
				},
			}, nil
		},
		Fallback: func(docID string) models.ClassificationResult {
			return models.ClassificationResult{
				DocumentID:         docID,
				SchemaName:         models.SchemaUtilityStrategic,
				StrategicRelevance: models.RelevanceLow,
				KeyInsight:         fallbackInsight,
				IsFallback:         true,
				UtilityStrategic: &models.UtilityStrategicSchema{
					InvestmentThesisTag:         "Other",
					TechnologyReadinessLevel:    4,
					RegulatedAssetPotential:     false,
					NYServiceTerritoryRelevance: false,
					GridImpactScore:             5,
					CLCPAComplianceValue:        models.NotSpecified,
					CapitalInvestmentRequired:   models.NotSpecified,
					ImplementationTimeline:      models.NotSpecified,
					RiskAssessment:              models.NotSpecified,
					StrategicPriority:           "Low",
				},
			}
		},
	}
}

// fallbackInsight is the key insight stamped on every fallback record.
const fallbackInsight = "Analysis failed - requires manual review"
