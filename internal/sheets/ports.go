package sheets

import (
	"context"
	"time"

	"partita/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter archives a computed billing summary document.
	ReportWriter interface {
		AppendSummary(ctx context.Context, r Report) (rowRef string, err error)
	}
)

// Report is the flattened form of a billing summary, ready to append to
// the archive sheet as a single row.
type Report struct {
	GeneratedAt time.Time
	View        string
	Months      []string
	EntryCount  int
	BaseTotal   core.Money
	StampDuty   core.Money
	Surcharge   core.Money
	GrandTotal  core.Money
}
