package fiscal

import (
	"errors"
	"testing"
	"time"

	"partita/internal/core"
)

func paidEntry(year int, cents int64) core.TimeEntry {
	return core.TimeEntry{
		ID:          "e",
		ProjectID:   "p",
		StartTime:   time.Date(year, 6, 15, 9, 0, 0, 0, time.UTC),
		DurationSec: 3600,
		Rate:        core.Money{Cents: cents},
		Billing:     core.BillingHourly,
		Billed:      true,
		Paid:        true,
	}
}

func TestProjectCascadeScenario(t *testing.T) {
	// Gross 1040.00 with one stamp: the worked reference figures.
	p, err := Project(2025, []core.TimeEntry{paidEntry(2025, 104000)}, nil, 1, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"gross paid", p.GrossPaid.Cents, 104000},
		{"total stamps", p.TotalStamps.Cents, 200},
		{"base with stamps", p.BaseWithStamps.Cents, 100000},
		{"surcharge withheld", p.SurchargeWithheld.Cents, 4000},
		{"base pure", p.BasePure.Cents, 99800},
		{"taxable income", p.TaxableIncome.Cents, 77844},
		{"social fund", p.SocialFund.Cents, 11287},
		{"substitute tax", p.SubstituteTax.Cents, 3328},
		{"mandatory reserve", p.MandatoryReserve.Cents, 14615},
		{"net income", p.NetIncome.Cents, 104000 - 4000 - 14615 - 200},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}
}

func TestProjectClampsBasePure(t *testing.T) {
	// Ten stamps against a 10.00 surcharge-reversed base: clamp, never negative.
	p, err := Project(2025, []core.TimeEntry{paidEntry(2025, 1040)}, nil, 10, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BaseWithStamps.Cents != 1000 {
		t.Fatalf("expected base 1000, got %d", p.BaseWithStamps.Cents)
	}
	if p.BasePure.Cents != 0 {
		t.Fatalf("base pure must clamp to exactly 0, got %d", p.BasePure.Cents)
	}
	if p.TaxableIncome.Cents != 0 || p.MandatoryReserve.Cents != 0 {
		t.Fatalf("downstream figures must be zero after the clamp, got %+v", p)
	}
	// Net can legitimately go negative here; the clamp only guards taxable income.
	if p.NetIncome.Cents != 1040-40-2000 {
		t.Fatalf("expected net %d, got %d", 1040-40-2000, p.NetIncome.Cents)
	}
}

func TestProjectSelectsPaidEntriesOfYear(t *testing.T) {
	entries := []core.TimeEntry{
		paidEntry(2025, 10400),
		paidEntry(2024, 99999), // other year
	}
	unpaid := paidEntry(2025, 55555)
	unpaid.Paid = false
	entries = append(entries, unpaid)

	p, err := Project(2025, entries, nil, 0, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.GrossPaid.Cents != 10400 {
		t.Fatalf("expected gross 10400, got %d", p.GrossPaid.Cents)
	}
}

func TestProjectExpenseBreakdown(t *testing.T) {
	expenses := []core.BusinessExpense{
		{Category: "Software", Description: "IDE", Amount: core.Money{Cents: 9900}, Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Category: "Hardware", Description: "laptop", Amount: core.Money{Cents: 150000}, Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{Category: "Software", Description: "CI", Amount: core.Money{Cents: 4800}, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Category: "Hardware", Description: "old year", Amount: core.Money{Cents: 70000}, Date: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	p, err := Project(2025, nil, expenses, 0, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.YearlyExpenses.Cents != 9900+150000+4800 {
		t.Fatalf("expected yearly total %d, got %d", 9900+150000+4800, p.YearlyExpenses.Cents)
	}
	if len(p.ExpenseBreakdown) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(p.ExpenseBreakdown))
	}
	if p.ExpenseBreakdown[0].Name != "Hardware" || p.ExpenseBreakdown[0].Amount.Cents != 150000 {
		t.Fatalf("expected Hardware first, got %+v", p.ExpenseBreakdown[0])
	}
	if p.ExpenseBreakdown[1].Name != "Software" || p.ExpenseBreakdown[1].Amount.Cents != 14700 {
		t.Fatalf("expected Software 14700, got %+v", p.ExpenseBreakdown[1])
	}
	if p.NetIncome.Cents != -p.YearlyExpenses.Cents {
		t.Fatalf("zero gross: net must equal minus expenses, got %d", p.NetIncome.Cents)
	}
}

func TestProjectRateValidation(t *testing.T) {
	if _, err := Project(2025, nil, nil, 0, Rates{CoefficientPct: 0, SubstituteTaxPct: 5}); !errors.Is(err, ErrInvalidCoefficient) {
		t.Fatalf("expected ErrInvalidCoefficient, got %v", err)
	}
	if _, err := Project(2025, nil, nil, 0, Rates{CoefficientPct: 78, SubstituteTaxPct: 101}); !errors.Is(err, ErrInvalidTaxRate) {
		t.Fatalf("expected ErrInvalidTaxRate, got %v", err)
	}
	if _, err := Project(2025, nil, nil, -1, DefaultRates()); !errors.Is(err, ErrNegativeStampCount) {
		t.Fatalf("expected ErrNegativeStampCount, got %v", err)
	}
}

func TestProjectAlternativeRates(t *testing.T) {
	// Standard 15% substitute tax after the startup window.
	rates := Rates{CoefficientPct: 78, SubstituteTaxPct: 15}
	p, err := Project(2025, []core.TimeEntry{paidEntry(2025, 104000)}, nil, 0, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// taxable = 78% of 100000 = 78000; fund = 11310; tax = 15% of 66690.
	if p.SubstituteTax.Cents != 10004 {
		t.Fatalf("expected substitute tax 10004, got %d", p.SubstituteTax.Cents)
	}
}
