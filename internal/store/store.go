// Package store holds the in-memory, append-only opportunity store for
// the lifetime of a run. Records are never mutated or removed; the
// analyzer reads consistent snapshots.
package store

import (
	"fmt"
	"sync"

	"github.com/marcus/opportunity-finder/internal/models"
)

// ErrDuplicate is returned when a document ID is appended twice.
var ErrDuplicate = fmt.Errorf("store: duplicate document id")

// Store is safe for concurrent appends and snapshots.
type Store struct {
	mu   sync.Mutex
	byID map[string]int
	recs []models.Opportunity
}

func New() *Store {
	return &Store{byID: map[string]int{}}
}

// Append adds one opportunity record. Appends happen in completion
// order, not submission order. A second append with the same document
// ID is rejected.
func (s *Store) Append(opp models.Opportunity) error {
	id := opp.Document.ID
	if id == "" {
		return fmt.Errorf("store: empty document id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	s.byID[id] = len(s.recs)
	s.recs = append(s.recs, opp)
	return nil
}

// Get returns the record for a document ID.
func (s *Store) Get(id string) (models.Opportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return models.Opportunity{}, false
	}
	return s.recs[i], true
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// Snapshot returns a copy of all records in append order. Later appends
// do not show through the returned slice.
func (s *Store) Snapshot() []models.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Opportunity, len(s.recs))
	copy(out, s.recs)
	return out
}

// Rescore replaces the analyzer-owned fields of every stored record with
// the values computed on the given scored snapshot, matched by document
// ID. Document, tags and classification are left untouched.
func (s *Store) Rescore(scored []models.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scored {
		if i, ok := s.byID[sc.Document.ID]; ok {
			s.recs[i].StrategicFitScore = sc.StrategicFitScore
			s.recs[i].TRLBucket = sc.TRLBucket
			s.recs[i].Quadrant = sc.Quadrant
		}
	}
}
