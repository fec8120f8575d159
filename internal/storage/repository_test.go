package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"partita/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "partita.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testProject(t *testing.T, repo *SQLiteRepository) core.Project {
	t.Helper()
	p := core.Project{
		Name:           "Acme",
		Color:          "#336699",
		DefaultRate:    core.Money{Cents: 2500},
		DefaultBilling: core.BillingHourly,
		Shifts:         []core.ShiftPreset{{Name: "Mattina", Start: "08:00", End: "14:00"}},
		ActivityTypes:  []string{"sviluppo", "riunione"},
	}
	if err := repo.CreateProject(context.Background(), &p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func testEntry(projectID string, start time.Time) core.TimeEntry {
	return core.TimeEntry{
		ProjectID:   projectID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		DurationSec: 7200,
		Rate:        core.Money{Cents: 2500},
		Billing:     core.BillingHourly,
		Expenses: []core.Expense{
			{Description: "treno", Amount: core.Money{Cents: 1250}},
		},
	}
}

func TestProjectRoundTrip(t *testing.T) {
	repo := testRepo(t)
	want := testProject(t, repo)

	got, err := repo.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 project, got %d", len(got))
	}
	p := got[0]
	if p.ID != want.ID || p.Name != "Acme" || p.DefaultRate.Cents != 2500 {
		t.Fatalf("project mismatch: %+v", p)
	}
	if len(p.Shifts) != 1 || p.Shifts[0].Start != "08:00" {
		t.Fatalf("shift presets not loaded: %+v", p.Shifts)
	}
	if len(p.ActivityTypes) != 2 {
		t.Fatalf("activity types not loaded: %+v", p.ActivityTypes)
	}
}

func TestSaveAndGetEntry(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("save entry: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected generated entry id")
	}

	got, err := repo.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !got.StartTime.Equal(e.StartTime) || got.DurationSec != 7200 || got.Rate.Cents != 2500 {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if len(got.Expenses) != 1 || got.Expenses[0].Amount.Cents != 1250 {
		t.Fatalf("expenses not loaded: %+v", got.Expenses)
	}
	if core.ComputeEarnings(*got).Cents != 5000+1250 {
		t.Fatalf("earnings from stored entry: got %d", core.ComputeEarnings(*got).Cents)
	}
}

func TestListEntriesKeepsExpensesOnEveryEntry(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		e := testEntry(p.ID, time.Date(2025, 3, 10+i, 9, 0, 0, 0, time.UTC))
		if err := repo.SaveEntry(ctx, &e); err != nil {
			t.Fatalf("save entry: %v", err)
		}
	}

	got, err := repo.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	for i, e := range got {
		if len(e.Expenses) != 1 || e.Expenses[0].Amount.Cents != 1250 {
			t.Fatalf("entry %d (%s): expenses lost: %+v", i, e.ID, e.Expenses)
		}
	}
}

func TestSaveEntryIsFullRowReplace(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("save entry: %v", err)
	}

	e.Rate.Cents = 3000
	e.Expenses = nil
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("re-save entry: %v", err)
	}

	got, err := repo.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Rate.Cents != 3000 || len(got.Expenses) != 0 {
		t.Fatalf("re-save must replace the whole row, got %+v", got)
	}
}

func TestSaveEntryRejectsInvalid(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	e.Rate.Cents = -100
	if err := repo.SaveEntry(context.Background(), &e); !errors.Is(err, core.ErrNegativeRate) {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}

	e = testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	e.Paid = true
	if err := repo.SaveEntry(context.Background(), &e); !errors.Is(err, core.ErrPaidNotBilled) {
		t.Fatalf("expected ErrPaidNotBilled, got %v", err)
	}
}

func TestBulkMutations(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		e := testEntry(p.ID, time.Date(2025, 3, 10+i, 9, 0, 0, 0, time.UTC))
		if err := repo.SaveEntry(ctx, &e); err != nil {
			t.Fatalf("save entry: %v", err)
		}
		ids = append(ids, e.ID)
	}

	if err := repo.MarkBilled(ctx, ids[:2]); err != nil {
		t.Fatalf("mark billed: %v", err)
	}
	entries, err := repo.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	billed := 0
	for _, e := range entries {
		if e.Billed {
			billed++
		}
	}
	if billed != 2 {
		t.Fatalf("expected 2 billed entries, got %d", billed)
	}

	if err := repo.UpdateRate(ctx, ids, 4000); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	entries, _ = repo.ListEntries(ctx)
	for _, e := range entries {
		if e.Rate.Cents != 4000 {
			t.Fatalf("rate not updated on %s: %d", e.ID, e.Rate.Cents)
		}
	}
}

func TestBulkMutationEmptySelection(t *testing.T) {
	repo := testRepo(t)
	if err := repo.MarkBilled(context.Background(), nil); !errors.Is(err, ErrNoEntriesSelected) {
		t.Fatalf("expected ErrNoEntriesSelected, got %v", err)
	}
	if err := repo.UpdateRate(context.Background(), []string{}, 1000); !errors.Is(err, ErrNoEntriesSelected) {
		t.Fatalf("expected ErrNoEntriesSelected, got %v", err)
	}
}

func TestBulkMutationAllOrNothing(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("save entry: %v", err)
	}

	err := repo.MarkBilled(ctx, []string{e.ID, "missing"})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	got, _ := repo.GetEntry(ctx, e.ID)
	if got.Billed {
		t.Fatal("failed batch must not modify any entry")
	}
}

func TestMarkPaidImpliesBilled(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("save entry: %v", err)
	}
	if err := repo.MarkPaid(ctx, []string{e.ID}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	got, _ := repo.GetEntry(ctx, e.ID)
	if !got.Paid || !got.Billed {
		t.Fatalf("paid entry must also be billed, got %+v", got)
	}
}

func TestListPaidEntriesByYear(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	in := testEntry(p.ID, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	out := testEntry(p.ID, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	unpaid := testEntry(p.ID, time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	for _, e := range []*core.TimeEntry{&in, &out, &unpaid} {
		if err := repo.SaveEntry(ctx, e); err != nil {
			t.Fatalf("save entry: %v", err)
		}
	}
	if err := repo.MarkPaid(ctx, []string{in.ID, out.ID}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	got, err := repo.ListPaidEntries(ctx, 2025)
	if err != nil {
		t.Fatalf("list paid entries: %v", err)
	}
	if len(got) != 1 || got[0].ID != in.ID {
		t.Fatalf("expected only the 2025 paid entry, got %+v", got)
	}
}

func TestBusinessExpenses(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	b := core.BusinessExpense{
		Category:    "Software",
		Description: "IDE license",
		Amount:      core.Money{Cents: 9900},
		Date:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.AddBusinessExpense(ctx, &b); err != nil {
		t.Fatalf("add business expense: %v", err)
	}
	old := core.BusinessExpense{
		Category:    "Hardware",
		Description: "laptop",
		Amount:      core.Money{Cents: 150000},
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.AddBusinessExpense(ctx, &old); err != nil {
		t.Fatalf("add business expense: %v", err)
	}

	got, err := repo.ListBusinessExpenses(ctx, 2025)
	if err != nil {
		t.Fatalf("list business expenses: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Software" {
		t.Fatalf("expected only the 2025 expense, got %+v", got)
	}
}

func TestCountEntriesAndDelete(t *testing.T) {
	repo := testRepo(t)
	p := testProject(t, repo)
	ctx := context.Background()

	e := testEntry(p.ID, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := repo.SaveEntry(ctx, &e); err != nil {
		t.Fatalf("save entry: %v", err)
	}

	if n, err := repo.CountEntries(ctx); err != nil || n != 1 {
		t.Fatalf("expected count 1, got %d (err=%v)", n, err)
	}

	if err := repo.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := repo.DeleteEntry(ctx, e.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if n, _ := repo.CountEntries(ctx); n != 0 {
		t.Fatalf("expected count 0, got %d", n)
	}
}
