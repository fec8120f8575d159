package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"partita/internal/amqp"
	"partita/internal/core"
	"partita/internal/storage"
)

func newTestService(t *testing.T, profile core.Profile) *EntryService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "partita.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewEntryService(repo, nil, profile)
}

func sampleEntry(project string) *core.TimeEntry {
	return &core.TimeEntry{
		ProjectID:   project,
		StartTime:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		DurationSec: 3600,
		Rate:        core.Money{Cents: 4000},
		Billing:     core.BillingHourly,
	}
}

func TestCreateEntryPersists(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanPro})
	e := sampleEntry("acme")
	if err := svc.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected generated entry ID")
	}
}

func TestCreateEntryTrialLimit(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanTrial, TrialEntryLimit: 1})

	if err := svc.CreateEntry(context.Background(), sampleEntry("acme")); err != nil {
		t.Fatalf("first CreateEntry: %v", err)
	}
	err := svc.CreateEntry(context.Background(), sampleEntry("acme"))
	if !errors.Is(err, ErrEntryLimitReached) {
		t.Fatalf("expected ErrEntryLimitReached, got %v", err)
	}
}

func TestUpdateEntryRequiresExisting(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanPro})

	e := sampleEntry("acme")
	e.ID = "missing"
	if err := svc.UpdateEntry(context.Background(), e); err == nil {
		t.Fatal("expected error updating unknown entry")
	}

	created := sampleEntry("acme")
	if err := svc.CreateEntry(context.Background(), created); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	created.Rate = core.Money{Cents: 5500}
	if err := svc.UpdateEntry(context.Background(), created); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
}

func TestUpdateRateRejectsNonPositive(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanPro})
	err := svc.UpdateRate(context.Background(), []string{"a"}, 0)
	if !errors.Is(err, core.ErrNegativeRate) {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}
}

func TestRequestSummaryExportPlanGate(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanTrial, TrialEntryLimit: 10})
	msg := amqp.NewSummaryExportMessage("pending", []string{"acme"}, []string{"2026-03"}, true, false)
	if err := svc.RequestSummaryExport(context.Background(), msg); !errors.Is(err, ErrExportNotAllowed) {
		t.Fatalf("expected ErrExportNotAllowed, got %v", err)
	}
}

func TestRequestSummaryExportWithoutBroker(t *testing.T) {
	svc := newTestService(t, core.Profile{Plan: core.PlanPro})
	msg := amqp.NewSummaryExportMessage("pending", []string{"acme"}, []string{"2026-03"}, true, false)
	if err := svc.RequestSummaryExport(context.Background(), msg); err == nil {
		t.Fatal("expected error without AMQP client")
	}
}
