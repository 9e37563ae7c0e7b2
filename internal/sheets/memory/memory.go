package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "openbudget/internal/sheets"
)

var _ ports.ReportPublisher = (*Store)(nil)

// Store keeps published reports in process memory.
type Store struct {
	mu      sync.Mutex
	reports []ports.ReportSnapshot
}

func New() *Store {
	return &Store{}
}

// PublishReport stores the snapshot and returns a synthetic reference.
func (s *Store) PublishReport(_ context.Context, snap ports.ReportSnapshot) (string, error) {
	if snap.Report == nil {
		return "", errors.New("report is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, snap)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns the published snapshots for a budget in publish order.
// An empty code returns all of them.
func (s *Store) Reports(budgetCode string) []ports.ReportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.ReportSnapshot
	for _, r := range s.reports {
		if budgetCode == "" || r.Report.Budget == budgetCode {
			out = append(out, r)
		}
	}
	return out
}
