// Package storage persists projects, time entries and business expenses in
// SQLite. Mutations return no data: callers re-query after a write rather
// than patching in-memory state.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"partita/internal/core"
)

var (
	ErrNoEntriesSelected = errors.New("no entries selected")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrProjectNotFound   = errors.New("project not found")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateProject inserts a project with its shift presets and activity
// types. A missing ID is generated.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p *core.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validate project: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO projects (id, name, color, default_rate_cents, default_billing) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Color, p.DefaultRate.Cents, string(p.DefaultBilling),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	for _, sh := range p.Shifts {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO project_shifts (project_id, name, start_time, end_time) VALUES (?, ?, ?, ?)",
			p.ID, sh.Name, sh.Start, sh.End,
		)
		if err != nil {
			return fmt.Errorf("insert shift preset: %w", err)
		}
	}
	for _, at := range p.ActivityTypes {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO project_activity_types (project_id, name) VALUES (?, ?)",
			p.ID, at,
		)
		if err != nil {
			return fmt.Errorf("insert activity type: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Project created", "project_id", p.ID, "name", p.Name)
	return nil
}

// ListProjects returns all projects with their presets, ordered by name.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, color, default_rate_cents, default_billing FROM projects ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []core.Project
	for rows.Next() {
		var p core.Project
		var billing string
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.DefaultRate.Cents, &billing); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.DefaultBilling = core.BillingType(billing)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	for i := range projects {
		if err := r.loadProjectPresets(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (r *SQLiteRepository) loadProjectPresets(ctx context.Context, p *core.Project) error {
	shiftRows, err := r.db.QueryContext(ctx,
		"SELECT name, start_time, end_time FROM project_shifts WHERE project_id = ?", p.ID,
	)
	if err != nil {
		return fmt.Errorf("query shift presets: %w", err)
	}
	defer shiftRows.Close()
	for shiftRows.Next() {
		var sh core.ShiftPreset
		if err := shiftRows.Scan(&sh.Name, &sh.Start, &sh.End); err != nil {
			return fmt.Errorf("scan shift preset: %w", err)
		}
		p.Shifts = append(p.Shifts, sh)
	}
	if err := shiftRows.Err(); err != nil {
		return fmt.Errorf("iterate shift presets: %w", err)
	}

	actRows, err := r.db.QueryContext(ctx,
		"SELECT name FROM project_activity_types WHERE project_id = ?", p.ID,
	)
	if err != nil {
		return fmt.Errorf("query activity types: %w", err)
	}
	defer actRows.Close()
	for actRows.Next() {
		var name string
		if err := actRows.Scan(&name); err != nil {
			return fmt.Errorf("scan activity type: %w", err)
		}
		p.ActivityTypes = append(p.ActivityTypes, name)
	}
	return actRows.Err()
}

// SaveEntry writes the full entry row, replacing any previous version and
// its itemized expenses. Single-field edits go through here as a full
// read-modify-write; there is no partial update primitive.
func (r *SQLiteRepository) SaveEntry(ctx context.Context, e *core.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate entry: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var endMS any
	if !e.EndTime.IsZero() {
		endMS = e.EndTime.UnixMilli()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO time_entries (id, project_id, start_time_ms, end_time_ms, duration_sec, rate_cents, billing_type, night_shift, is_billed, is_paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			start_time_ms = excluded.start_time_ms,
			end_time_ms = excluded.end_time_ms,
			duration_sec = excluded.duration_sec,
			rate_cents = excluded.rate_cents,
			billing_type = excluded.billing_type,
			night_shift = excluded.night_shift,
			is_billed = excluded.is_billed,
			is_paid = excluded.is_paid`,
		e.ID, e.ProjectID, e.StartTime.UnixMilli(), endMS, e.DurationSec,
		e.Rate.Cents, string(e.Billing), e.NightShift, e.Billed, e.Paid,
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM entry_expenses WHERE entry_id = ?", e.ID); err != nil {
		return fmt.Errorf("clear entry expenses: %w", err)
	}
	for i := range e.Expenses {
		x := &e.Expenses[i]
		if x.ID == "" {
			x.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entry_expenses (id, entry_id, description, amount_cents) VALUES (?, ?, ?, ?)",
			x.ID, e.ID, x.Description, x.Amount.Cents,
		)
		if err != nil {
			return fmt.Errorf("insert entry expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"entry_id", e.ID,
		"project_id", e.ProjectID,
		"billing_type", string(e.Billing),
		"rate_cents", e.Rate.Cents)
	return nil
}

// GetEntry retrieves one entry with its itemized expenses.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (*core.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, start_time_ms, end_time_ms, duration_sec, rate_cents, billing_type, night_shift, is_billed, is_paid
		FROM time_entries WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	if err := r.loadExpenses(ctx, map[string]*core.TimeEntry{e.ID: e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries returns every entry, oldest first, expenses included.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.TimeEntry, error) {
	return r.listEntries(ctx, `
		SELECT id, project_id, start_time_ms, end_time_ms, duration_sec, rate_cents, billing_type, night_shift, is_billed, is_paid
		FROM time_entries ORDER BY start_time_ms`)
}

// ListPaidEntries returns the entries marked paid whose start time falls
// within the given UTC calendar year.
func (r *SQLiteRepository) ListPaidEntries(ctx context.Context, year int) ([]core.TimeEntry, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	to := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	return r.listEntries(ctx, `
		SELECT id, project_id, start_time_ms, end_time_ms, duration_sec, rate_cents, billing_type, night_shift, is_billed, is_paid
		FROM time_entries WHERE is_paid = 1 AND start_time_ms >= ? AND start_time_ms < ?
		ORDER BY start_time_ms`, from, to)
}

func (r *SQLiteRepository) listEntries(ctx context.Context, query string, args ...any) ([]core.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	// Index only after the scan loop: appending may reallocate the slice,
	// which would leave earlier pointers aimed at the old backing array.
	byID := make(map[string]*core.TimeEntry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}

	if err := r.loadExpenses(ctx, byID); err != nil {
		return nil, err
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*core.TimeEntry, error) {
	var e core.TimeEntry
	var startMS int64
	var endMS sql.NullInt64
	var billing string
	err := row.Scan(&e.ID, &e.ProjectID, &startMS, &endMS, &e.DurationSec,
		&e.Rate.Cents, &billing, &e.NightShift, &e.Billed, &e.Paid)
	if err != nil {
		return nil, err
	}
	e.StartTime = time.UnixMilli(startMS).UTC()
	if endMS.Valid {
		e.EndTime = time.UnixMilli(endMS.Int64).UTC()
	}
	e.Billing = core.BillingType(billing)
	return &e, nil
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context, byID map[string]*core.TimeEntry) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]any, 0, len(byID))
	placeholders := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
		placeholders = append(placeholders, "?")
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, entry_id, description, amount_cents FROM entry_expenses WHERE entry_id IN ("+
			strings.Join(placeholders, ", ")+") ORDER BY rowid", ids...)
	if err != nil {
		return fmt.Errorf("query entry expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var x core.Expense
		var entryID string
		if err := rows.Scan(&x.ID, &entryID, &x.Description, &x.Amount.Cents); err != nil {
			return fmt.Errorf("scan entry expense: %w", err)
		}
		if e, ok := byID[entryID]; ok {
			e.Expenses = append(e.Expenses, x)
		}
	}
	return rows.Err()
}

// CountEntries returns the total number of stored entries. The trial plan
// gate consults this before creating a new one.
func (r *SQLiteRepository) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM time_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// DeleteEntry removes an entry outright; expenses cascade.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	slog.InfoContext(ctx, "Entry deleted", "entry_id", id)
	return nil
}

// MarkBilled flags the given entries as invoiced. The update is
// all-or-nothing: if any id does not exist, no entry is modified.
func (r *SQLiteRepository) MarkBilled(ctx context.Context, ids []string) error {
	return r.bulkUpdate(ctx, ids, "UPDATE time_entries SET is_billed = 1 WHERE id = ?")
}

// MarkPaid flags the given entries as paid. Payment implies billing, so
// the billed flag is set in the same statement.
func (r *SQLiteRepository) MarkPaid(ctx context.Context, ids []string) error {
	return r.bulkUpdate(ctx, ids, "UPDATE time_entries SET is_paid = 1, is_billed = 1 WHERE id = ?")
}

// UpdateRate overwrites the rate of every selected entry, regardless of
// billing type. All-or-nothing, like the other bulk mutations.
func (r *SQLiteRepository) UpdateRate(ctx context.Context, ids []string, rateCents int64) error {
	if rateCents < 0 {
		return core.ErrNegativeRate
	}
	return r.bulkUpdate(ctx, ids, "UPDATE time_entries SET rate_cents = ? WHERE id = ?", rateCents)
}

// bulkUpdate runs stmt once per id inside a single transaction, rolling
// back unless every id matched a row.
func (r *SQLiteRepository) bulkUpdate(ctx context.Context, ids []string, stmt string, extraArgs ...any) error {
	if len(ids) == 0 {
		return ErrNoEntriesSelected
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		args := append(append([]any{}, extraArgs...), id)
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("update entry %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Bulk entry update applied", "entry_count", len(ids))
	return nil
}

// AddBusinessExpense stores one yearly overhead cost.
func (r *SQLiteRepository) AddBusinessExpense(ctx context.Context, b *core.BusinessExpense) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate business expense: %w", err)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO business_expenses (id, category, description, amount_cents, expense_date_ms) VALUES (?, ?, ?, ?, ?)",
		b.ID, b.Category, b.Description, b.Amount.Cents, b.Date.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert business expense: %w", err)
	}

	slog.InfoContext(ctx, "Business expense saved",
		"category", b.Category,
		"amount_cents", b.Amount.Cents)
	return nil
}

// ListBusinessExpenses returns the overhead costs dated within the given
// UTC calendar year, oldest first.
func (r *SQLiteRepository) ListBusinessExpenses(ctx context.Context, year int) ([]core.BusinessExpense, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	to := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, description, amount_cents, expense_date_ms
		FROM business_expenses WHERE expense_date_ms >= ? AND expense_date_ms < ?
		ORDER BY expense_date_ms`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query business expenses: %w", err)
	}
	defer rows.Close()

	var out []core.BusinessExpense
	for rows.Next() {
		var b core.BusinessExpense
		var dateMS int64
		if err := rows.Scan(&b.ID, &b.Category, &b.Description, &b.Amount.Cents, &dateMS); err != nil {
			return nil, fmt.Errorf("scan business expense: %w", err)
		}
		b.Date = time.UnixMilli(dateMS).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate business expenses: %w", err)
	}
	return out, nil
}
