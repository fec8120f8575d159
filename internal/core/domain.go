package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// BillingHourly scales the rate by the tracked duration.
	BillingHourly BillingType = "hourly"
	// BillingDaily treats the rate as a flat fee for the day; duration is ignored.
	BillingDaily BillingType = "daily"
)

type (
	BillingType string

	Money struct {
		Cents int64
	}

	// Expense is an itemized extra cost attached to a time entry
	// (travel, materials). Always additive, regardless of billing type.
	Expense struct {
		ID          string
		Description string
		Amount      Money
	}

	// TimeEntry is one unit of billable work. Billed and Paid are
	// independent lifecycle flags, except that Paid implies Billed.
	TimeEntry struct {
		ID          string
		ProjectID   string
		StartTime   time.Time
		EndTime     time.Time // zero for whole-day entries without a specific time
		DurationSec int64
		Rate        Money // hourly rate or flat daily fee, depending on Billing
		Billing     BillingType
		Expenses    []Expense
		NightShift  bool // display classification only, no monetary effect
		Billed      bool
		Paid        bool
	}

	// ShiftPreset is a named start/end time pair a project offers when
	// logging entries ("Mattina" 08:00-14:00).
	ShiftPreset struct {
		Name  string
		Start string // HH:MM
		End   string // HH:MM
	}

	// Project is a client or work-site. Entries reference it weakly by ID.
	Project struct {
		ID             string
		Name           string
		Color          string
		DefaultRate    Money
		DefaultBilling BillingType
		Shifts         []ShiftPreset
		ActivityTypes  []string
	}

	// BusinessExpense is a yearly overhead cost (software, hardware,
	// accountant fees) subtracted flat in the fiscal projection.
	BusinessExpense struct {
		ID          string
		Category    string
		Description string
		Amount      Money
		Date        time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeRate     = errors.New("negative rate")
	ErrNegativeDuration = errors.New("negative duration")
	ErrInvalidBilling   = errors.New("invalid billing type")
	ErrMissingProject   = errors.New("missing project reference")
	ErrMissingStartTime = errors.New("missing start time")
	ErrPaidNotBilled    = errors.New("entry marked paid but not billed")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
)

// Valid reports whether bt is one of the two known billing types.
// The empty string is accepted and treated as hourly everywhere.
func (bt BillingType) Valid() bool {
	switch bt {
	case BillingHourly, BillingDaily, "":
		return true
	default:
		return false
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Euros returns the euro value as a float64 for display purposes.
// Calculations stay in cents to avoid floating-point drift.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (x Expense) Validate() error {
	if len(strings.TrimSpace(x.Description)) == 0 {
		return ErrEmptyDescription
	}
	return x.Amount.Validate()
}

func (e TimeEntry) Validate() error {
	if strings.TrimSpace(e.ProjectID) == "" {
		return ErrMissingProject
	}
	if e.StartTime.IsZero() {
		return ErrMissingStartTime
	}
	if !e.Billing.Valid() {
		return ErrInvalidBilling
	}
	if e.Rate.Cents < 0 {
		return ErrNegativeRate
	}
	if e.DurationSec < 0 {
		return ErrNegativeDuration
	}
	if e.Paid && !e.Billed {
		return ErrPaidNotBilled
	}
	for _, x := range e.Expenses {
		if err := x.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Project) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if !p.DefaultBilling.Valid() {
		return ErrInvalidBilling
	}
	if p.DefaultRate.Cents < 0 {
		return ErrNegativeRate
	}
	return nil
}

func (b BusinessExpense) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(b.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(b.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if b.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return b.Amount.Validate()
}

// MonthKey returns the UTC-normalized YYYY-MM bucket of t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
