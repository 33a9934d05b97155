package classify

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/marcus/opportunity-finder/internal/config"
	"github.com/marcus/opportunity-finder/internal/models"
)

type scripted struct {
	resp string
	err  error
}

// fakeClassifier replays a scripted sequence of responses; the last
// entry repeats once the script is exhausted.
type fakeClassifier struct {
	mu     sync.Mutex
	script []scripted
	calls  int
}

func (f *fakeClassifier) Complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	s := f.script[i]
	return s.resp, s.err
}

func fastConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Retry.BackoffBaseMS = 1
	cfg.Retry.AttemptTimeoutSeconds = 1
	cfg.RateLimitRPS = 1000
	return cfg
}

func newTestGateway(t *testing.T, fake *fakeClassifier) *Gateway {
	t.Helper()
	cfg := fastConfig(t)
	return NewGateway(cfg, NewRegistry(cfg), fake)
}

const goodFunding = `{"strategic_relevance":"High","key_insight":"storage scaling","company_name":"VoltStore","lead_investor":"GridVC","investment_type":"Series B","total_funding_amount":"$160M"}`

func fundingDoc() (models.Document, models.SignalTags) {
	doc := models.Document{ID: "doc-1", SourceName: "venture-announcements", Category: models.CategoryFunding, RawText: "VoltStore raises $160M Series B"}
	return doc, models.SignalTags{HasFundingContent: true, FundingAmountRaw: "$160M"}
}

func TestClassifySuccess(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{resp: goodFunding}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if res.IsFallback {
		t.Fatalf("IsFallback = true, ErrorKind = %s", res.ErrorKind)
	}
	if res.SchemaName != models.SchemaFunding || res.Funding == nil {
		t.Fatalf("wrong variant: %+v", res)
	}
	if res.Funding.CompanyName != "VoltStore" {
		t.Errorf("CompanyName = %q", res.Funding.CompanyName)
	}
	if res.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q", res.DocumentID)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestClassifyProseWrappedResponse(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{resp: "Sure, here is the analysis:\n```json\n" + goodFunding + "\n```"}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if res.IsFallback {
		t.Fatalf("IsFallback = true for extractable response, ErrorKind = %s", res.ErrorKind)
	}
	if res.Funding == nil || res.Funding.CompanyName != "VoltStore" {
		t.Fatalf("extracted payload not validated: %+v", res.Funding)
	}
}

func TestClassifyRetriesTransientThenSucceeds(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{
		{err: &StatusError{Code: http.StatusInternalServerError}},
		{err: &StatusError{Code: http.StatusTooManyRequests}},
		{resp: goodFunding},
	}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if res.IsFallback {
		t.Fatalf("IsFallback = true after recoverable faults, ErrorKind = %s", res.ErrorKind)
	}
	if fake.calls != 3 {
		t.Errorf("calls = %d, want 3", fake.calls)
	}
}

func TestClassifyExhaustedRetriesFallsBack(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{err: &StatusError{Code: http.StatusBadGateway}}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if !res.IsFallback {
		t.Fatal("IsFallback = false, want fallback after exhausted retries")
	}
	if res.ErrorKind != models.ErrKindServiceError {
		t.Errorf("ErrorKind = %s, want service_error", res.ErrorKind)
	}
	if res.StrategicRelevance != models.RelevanceLow {
		t.Errorf("StrategicRelevance = %s, want Low", res.StrategicRelevance)
	}
	if res.Funding == nil || res.Funding.CompanyName != models.NotSpecified {
		t.Errorf("fallback payload = %+v, want Not specified defaults", res.Funding)
	}
	if fake.calls != 3 {
		t.Errorf("calls = %d, want MaxAttempts", fake.calls)
	}
}

func TestClassifyTerminalStatusNoRetry(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{err: &StatusError{Code: http.StatusBadRequest}}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if !res.IsFallback || res.ErrorKind != models.ErrKindServiceError {
		t.Fatalf("result = %+v, want service_error fallback", res)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx is terminal)", fake.calls)
	}
}

func TestClassifyMalformedResponseFallsBack(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{resp: "sorry, I cannot help with that"}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if !res.IsFallback || res.ErrorKind != models.ErrKindMalformedResponse {
		t.Fatalf("result kind = %s, want malformed_response fallback", res.ErrorKind)
	}
}

func TestClassifyValidationFailureFallsBack(t *testing.T) {
	// Well-formed JSON missing the required company_name.
	fake := &fakeClassifier{script: []scripted{{resp: `{"strategic_relevance":"High","key_insight":"x"}`}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	res := g.Classify(context.Background(), doc, tags)
	if !res.IsFallback || res.ErrorKind != models.ErrKindValidationFailed {
		t.Fatalf("result kind = %s, want validation_failed fallback", res.ErrorKind)
	}
	if fake.calls != 3 {
		t.Errorf("calls = %d, structural failures should exhaust the retry budget", fake.calls)
	}
}

func TestClassifyCanceledContext(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{resp: goodFunding}}}
	g := newTestGateway(t, fake)
	doc, tags := fundingDoc()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := g.Classify(ctx, doc, tags)
	if !res.IsFallback || res.ErrorKind != models.ErrKindCanceled {
		t.Fatalf("result kind = %s, want canceled fallback", res.ErrorKind)
	}
}

func TestClassifyUnknownCategory(t *testing.T) {
	fake := &fakeClassifier{script: []scripted{{resp: goodFunding}}}
	g := newTestGateway(t, fake)

	res := g.Classify(context.Background(), models.Document{ID: "doc-x", Category: "bogus"}, models.SignalTags{})
	if !res.IsFallback || res.ErrorKind != models.ErrKindUnsupportedSchema {
		t.Fatalf("result kind = %s, want unsupported_schema fallback", res.ErrorKind)
	}
	if fake.calls != 0 {
		t.Errorf("calls = %d, want 0 for unknown category", fake.calls)
	}
}
