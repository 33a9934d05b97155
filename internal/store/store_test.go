package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marcus/opportunity-finder/internal/models"
)

func opp(id string) models.Opportunity {
	return models.Opportunity{Document: models.Document{ID: id, Category: models.CategoryFunding}}
}

func TestAppendAndGet(t *testing.T) {
	s := New()
	if err := s.Append(opp("a")); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Get("a")
	if !ok || got.Document.ID != "a" {
		t.Fatalf("Get(a) = (%+v, %v)", got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) = true")
	}
}

func TestAppendDuplicateRejected(t *testing.T) {
	s := New()
	if err := s.Append(opp("a")); err != nil {
		t.Fatal(err)
	}
	err := s.Append(opp("a"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestAppendEmptyID(t *testing.T) {
	if err := New().Append(models.Opportunity{}); err == nil {
		t.Fatal("expected error for empty document id")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	s.Append(opp("a"))
	snap := s.Snapshot()
	s.Append(opp("b"))

	if len(snap) != 1 {
		t.Fatalf("snapshot grew after later append: %d records", len(snap))
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(opp(fmt.Sprintf("doc-%d", i)))
		}(i)
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("Len = %d, want 50", s.Len())
	}
}

func TestRescore(t *testing.T) {
	s := New()
	s.Append(opp("a"))
	s.Append(opp("b"))

	scored := []models.Opportunity{
		{Document: models.Document{ID: "a"}, StrategicFitScore: 91, TRLBucket: models.BucketCommercial, Quadrant: models.QuadrantSweetSpot},
	}
	s.Rescore(scored)

	got, _ := s.Get("a")
	if got.StrategicFitScore != 91 || got.Quadrant != models.QuadrantSweetSpot {
		t.Errorf("a not rescored: %+v", got)
	}
	if got.Document.Category != models.CategoryFunding {
		t.Error("Rescore touched the document")
	}
	b, _ := s.Get("b")
	if b.StrategicFitScore != 0 {
		t.Errorf("b unexpectedly rescored: %+v", b)
	}
}
