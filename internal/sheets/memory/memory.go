package memory

import (
	"context"
	"fmt"
	"sync"

	ports "partita/internal/sheets"
)

// Store is an in-memory report archive for tests and local development.
type Store struct {
	mu      sync.Mutex
	reports []ports.Report
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendSummary stores the report and returns a synthetic row reference.
func (s *Store) AppendSummary(_ context.Context, r ports.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of the archived reports.
func (s *Store) Reports() []ports.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Report(nil), s.reports...)
}
