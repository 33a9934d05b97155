package classify

import (
	"errors"
	"testing"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return NewRegistry(cfg)
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose wrapped", `Here you go: {"a":1} hope that helps`, `{"a":1}`, true},
		{"nested braces", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"braces in strings", `{"a":"{not a brace}"}`, `{"a":"{not a brace}"}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCleanResponseStripsFences(t *testing.T) {
	got, ok := cleanResponse("```json\n{\"a\":1}\n```")
	if !ok || got != `{"a":1}` {
		t.Errorf("got (%q, %v)", got, ok)
	}
}

func TestUtilityStrategicPromptDeterministic(t *testing.T) {
	doc := models.Document{ID: "d1", SourceName: "utility-strategy-desk", Category: models.CategoryUtilityStrategic, RawText: "storage pilot"}
	tags := models.SignalTags{}

	r1 := testRegistry(t)
	d1, _ := r1.Lookup(models.CategoryUtilityStrategic)
	want := d1.BuildPrompt(doc, tags)
	for i := 0; i < 5; i++ {
		r2 := testRegistry(t)
		d2, _ := r2.Lookup(models.CategoryUtilityStrategic)
		if got := d2.BuildPrompt(doc, tags); got != want {
			t.Fatalf("prompt differs between registry instances:\n%s\n----\n%s", got, want)
		}
	}
}

func TestValidateFundingCoercesInvestmentType(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryFunding)

	tests := []struct {
		in   string
		want string
	}{
		{"series b", "Series B"},
		{"SEED", "Seed"},
		{"mezzanine tranche", models.NotSpecified},
		{"", models.NotSpecified},
	}
	for _, tt := range tests {
		payload := `{"strategic_relevance":"Medium","key_insight":"x","company_name":"Acme","investment_type":"` + tt.in + `"}`
		res, err := desc.Validate("d1", []byte(payload))
		if err != nil {
			t.Fatalf("investment_type %q: %v", tt.in, err)
		}
		if res.Funding.InvestmentType != tt.want {
			t.Errorf("investment_type %q coerced to %q, want %q", tt.in, res.Funding.InvestmentType, tt.want)
		}
	}
}

func TestValidateFundingMissingCompany(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryFunding)

	_, err := desc.Validate("d1", []byte(`{"strategic_relevance":"High","key_insight":"x"}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestValidateMissingRelevance(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryInfrastructure)

	_, err := desc.Validate("d1", []byte(`{"key_insight":"x","technology_type":"HVDC"}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError for missing strategic_relevance", err)
	}
}

func TestValidateRelevanceCoercion(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryInfrastructure)

	tests := []struct {
		in   string
		want models.Relevance
	}{
		{"high", models.RelevanceHigh},
		{"LOW", models.RelevanceLow},
		{"critical", models.RelevanceMedium},
	}
	for _, tt := range tests {
		payload := `{"strategic_relevance":"` + tt.in + `","key_insight":"x","technology_type":"HVDC","project_stage":"Construction"}`
		res, err := desc.Validate("d1", []byte(payload))
		if err != nil {
			t.Fatalf("relevance %q: %v", tt.in, err)
		}
		if res.StrategicRelevance != tt.want {
			t.Errorf("relevance %q -> %q, want %q", tt.in, res.StrategicRelevance, tt.want)
		}
	}
}

func TestValidateUtilityStrategicClamping(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryUtilityStrategic)

	payload := `{
		"strategic_relevance":"High","key_insight":"x",
		"investment_thesis_tag":"Energy Storage & Flexibility",
		"technology_readiness_level":15,
		"grid_impact_score":0,
		"regulated_asset_potential":true,
		"ny_service_territory_relevance":true,
		"strategic_priority":"urgent"
	}`
	res, err := desc.Validate("d1", []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	us := res.UtilityStrategic
	if us.TechnologyReadinessLevel != 9 {
		t.Errorf("TRL = %d, want clamped to 9", us.TechnologyReadinessLevel)
	}
	if us.GridImpactScore != 1 {
		t.Errorf("GridImpactScore = %d, want clamped to 1", us.GridImpactScore)
	}
	if us.InvestmentThesisTag != "Energy Storage & Flexibility" {
		t.Errorf("thesis tag = %q", us.InvestmentThesisTag)
	}
	if us.StrategicPriority != models.NotSpecified {
		t.Errorf("StrategicPriority = %q, want coerced to Not specified", us.StrategicPriority)
	}
	if us.RiskAssessment != models.NotSpecified {
		t.Errorf("RiskAssessment = %q, empty fields default to Not specified", us.RiskAssessment)
	}
}

func TestValidateUtilityStrategicMissingTRL(t *testing.T) {
	r := testRegistry(t)
	desc, _ := r.Lookup(models.CategoryUtilityStrategic)

	payload := `{"strategic_relevance":"High","key_insight":"x","investment_thesis_tag":"Other","grid_impact_score":5}`
	_, err := desc.Validate("d1", []byte(payload))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError for missing TRL", err)
	}
}

func TestFallbackShapes(t *testing.T) {
	r := testRegistry(t)
	for _, cat := range models.AllCategories {
		desc, ok := r.Lookup(cat)
		if !ok {
			t.Fatalf("no descriptor for %s", cat)
		}
		fb := desc.Fallback("d1")
		if !fb.IsFallback {
			t.Errorf("%s: IsFallback = false", cat)
		}
		if fb.StrategicRelevance != models.RelevanceLow {
			t.Errorf("%s: relevance = %s, want Low", cat, fb.StrategicRelevance)
		}
		variants := 0
		if fb.Funding != nil {
			variants++
		}
		if fb.Infrastructure != nil {
			variants++
		}
		if fb.UtilityStrategic != nil {
			variants++
		}
		if variants != 1 {
			t.Errorf("%s: %d variant payloads set, want exactly 1", cat, variants)
		}
	}
}
