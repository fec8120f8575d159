package worker

import (
	"context"
	"fmt"
	"log/slog"

	"partita/internal/amqp"
	"partita/internal/billing"
	"partita/internal/core"
	"partita/internal/sheets"
)

// EntryLister provides the stored time entries the worker recomputes from.
type EntryLister interface {
	ListEntries(ctx context.Context) ([]core.TimeEntry, error)
}

// ExportWorker archives billing summaries into the report spreadsheet.
// It recomputes every summary from storage so the archived row reflects
// the stored state at processing time, not at request time.
type ExportWorker struct {
	entries EntryLister
	archive sheets.ReportWriter
}

func NewExportWorker(entries EntryLister, archive sheets.ReportWriter) *ExportWorker {
	return &ExportWorker{entries: entries, archive: archive}
}

// HandleExportMessage processes a single summary export request from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.SummaryExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"view", msg.View,
		"projects", len(msg.ProjectIDs),
		"months", len(msg.Months))

	all, err := w.entries.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("list entries from storage: %w", err)
	}

	q := billing.Query{
		View:       billing.View(msg.View),
		ProjectIDs: toSet(msg.ProjectIDs),
		Months:     toSet(msg.Months),
		StampDuty:  msg.StampDuty,
		Surcharge:  msg.Surcharge,
	}
	summary, err := billing.Aggregate(all, q)
	if err != nil {
		return fmt.Errorf("aggregate summary: %w", err)
	}

	report := sheets.Report{
		GeneratedAt: msg.Timestamp,
		View:        msg.View,
		Months:      msg.Months,
		EntryCount:  len(summary.Entries),
		BaseTotal:   summary.BaseTotal,
		StampDuty:   summary.StampDuty,
		Surcharge:   summary.Surcharge,
		GrandTotal:  summary.GrandTotal,
	}

	ref, err := w.archive.AppendSummary(ctx, report)
	if err != nil {
		return fmt.Errorf("append summary to archive: %w", err)
	}

	slog.InfoContext(ctx, "Successfully archived summary",
		"sheets_ref", ref,
		"entries", report.EntryCount,
		"grand_total_cents", report.GrandTotal.Cents)

	return nil
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
