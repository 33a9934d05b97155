package models

// SchemaName identifies which structured schema a classification result
// carries. One schema per category.
type SchemaName string

const (
	SchemaFunding          SchemaName = "funding"
	SchemaInfrastructure   SchemaName = "infrastructure"
	SchemaUtilityStrategic SchemaName = "utility_strategic"
)

// Relevance is the service's coarse strategic-relevance verdict.
type Relevance string

const (
	RelevanceHigh   Relevance = "High"
	RelevanceMedium Relevance = "Medium"
	RelevanceLow    Relevance = "Low"
)

// ErrorKind is the terminal failure reason recorded on fallback records.
type ErrorKind string

const (
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindRateLimited       ErrorKind = "rate_limited"
	ErrKindServiceError      ErrorKind = "service_error"
	ErrKindMalformedResponse ErrorKind = "malformed_response"
	ErrKindValidationFailed  ErrorKind = "validation_failed"
	ErrKindUnsupportedSchema ErrorKind = "unsupported_schema"
	ErrKindCanceled          ErrorKind = "canceled"
)

// NotSpecified is the sentinel an out-of-domain enum value is coerced to
// during validation. Unrecognized values are never silently dropped.
const NotSpecified = "Not specified"

// FundingSchema is the variant payload for funding-round documents.
type FundingSchema struct {
	CompanyName        string   `json:"company_name"`
	LeadInvestor       string   `json:"lead_investor"`
	OtherInvestors     []string `json:"other_investors,omitempty"`
	InvestmentType     string   `json:"investment_type"`
	TotalFundingAmount string   `json:"total_funding_amount"`
}

// InfrastructureSchema is the variant payload for grid/infrastructure
// project documents.
type InfrastructureSchema struct {
	TechnologyType             string   `json:"technology_type"`
	Location                   string   `json:"location"`
	ProjectStage               string   `json:"project_stage"`
	GridInfrastructureKeywords []string `json:"grid_infrastructure_keywords,omitempty"`
}

// UtilityStrategicSchema is the variant payload for utility strategic
// investment documents. Field set follows the utility investment
// analysis schema: thesis tag, TRL, rate-base suitability, territory
// relevance, grid impact and the qualitative assessment fields.
type UtilityStrategicSchema struct {
	InvestmentThesisTag         string `json:"investment_thesis_tag"`
	TechnologyReadinessLevel    int    `json:"technology_readiness_level"`
	RegulatedAssetPotential     bool   `json:"regulated_asset_potential"`
	NYServiceTerritoryRelevance bool   `json:"ny_service_territory_relevance"`
	GridImpactScore             int    `json:"grid_impact_score"`
	CLCPAComplianceValue        string `json:"clcpa_compliance_value"`
	CapitalInvestmentRequired   string `json:"capital_investment_required"`
	ImplementationTimeline      string `json:"implementation_timeline"`
	RiskAssessment              string `json:"risk_assessment"`
	StrategicPriority           string `json:"strategic_priority"`
}

// ClassificationResult is the structured output of the classification
// gateway for one document: a tagged union keyed by SchemaName with
// exactly one variant payload set.
type ClassificationResult struct {
	DocumentID         string     `json:"document_id"`
	SchemaName         SchemaName `json:"schema_name"`
	StrategicRelevance Relevance  `json:"strategic_relevance"`
	KeyInsight         string     `json:"key_insight"`
	// IsFallback marks records synthesized locally when the external
	// service could not produce a usable response. Every field of a
	// fallback record is a documented default, not service output.
	IsFallback bool      `json:"is_fallback"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`

	Funding          *FundingSchema          `json:"funding,omitempty"`
	Infrastructure   *InfrastructureSchema   `json:"infrastructure,omitempty"`
	UtilityStrategic *UtilityStrategicSchema `json:"utility_strategic,omitempty"`
}
