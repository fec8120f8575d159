package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"partita/internal/amqp"
	"partita/internal/core"
	"partita/internal/storage"
)

var (
	// ErrEntryLimitReached means the trial plan ran out of entry slots.
	ErrEntryLimitReached = errors.New("entry limit reached for current plan")
	// ErrExportNotAllowed means the current plan cannot archive reports.
	ErrExportNotAllowed = errors.New("report export not allowed for current plan")
)

// EntryService orchestrates time entry operations across SQLite and AMQP.
// Writes land in SQLite first; report exports travel as async messages so
// a slow or absent broker never blocks the request.
type EntryService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	profile    core.Profile
}

func NewEntryService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, profile core.Profile) *EntryService {
	return &EntryService{
		storage:    storage,
		amqpClient: amqpClient,
		profile:    profile,
	}
}

// CreateEntry validates the plan gate and persists a new entry.
func (s *EntryService) CreateEntry(ctx context.Context, e *core.TimeEntry) error {
	count, err := s.storage.CountEntries(ctx)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if !s.profile.CanCreateEntry(count) {
		return ErrEntryLimitReached
	}

	if err := s.storage.SaveEntry(ctx, e); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// UpdateEntry replaces a stored entry with the submitted row.
func (s *EntryService) UpdateEntry(ctx context.Context, e *core.TimeEntry) error {
	if e.ID == "" {
		return storage.ErrEntryNotFound
	}
	if _, err := s.storage.GetEntry(ctx, e.ID); err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	if err := s.storage.SaveEntry(ctx, e); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// DeleteEntry removes an entry and its expenses.
func (s *EntryService) DeleteEntry(ctx context.Context, id string) error {
	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// MarkBilled flags the selected entries as invoiced, all or nothing.
func (s *EntryService) MarkBilled(ctx context.Context, ids []string) error {
	return s.storage.MarkBilled(ctx, ids)
}

// MarkPaid flags the selected entries as paid. Payment implies invoicing,
// so the storage layer raises the billed flag in the same statement.
func (s *EntryService) MarkPaid(ctx context.Context, ids []string) error {
	return s.storage.MarkPaid(ctx, ids)
}

// UpdateRate rewrites the rate on the selected entries, all or nothing.
func (s *EntryService) UpdateRate(ctx context.Context, ids []string, rateCents int64) error {
	if rateCents <= 0 {
		return core.ErrNegativeRate
	}
	return s.storage.UpdateRate(ctx, ids, rateCents)
}

// RequestSummaryExport publishes an archive request for the worker.
// Unlike entry writes, the publish is the operation here, so a broker
// failure is returned to the caller.
func (s *EntryService) RequestSummaryExport(ctx context.Context, msg *amqp.SummaryExportMessage) error {
	if !s.profile.CanExportReports() {
		return ErrExportNotAllowed
	}
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, cannot export summary")
		return errors.New("export broker not configured")
	}
	if err := s.amqpClient.PublishSummaryExport(ctx, msg); err != nil {
		return fmt.Errorf("publish export message: %w", err)
	}
	return nil
}

// Close closes both storage and AMQP connections.
func (s *EntryService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close entry service: %v", errs)
	}
	return nil
}
