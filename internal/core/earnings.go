package core

// ComputeEarnings returns the monetary value of one time entry.
//
// Daily entries bill the rate as a flat fee and never scale it by the
// tracked duration, even when one is recorded. Hourly entries (the default
// for an unset billing type) bill rate * hours, rounded half-up to the
// cent; a zero rate or zero duration yields a zero base. Itemized expenses
// are added on top in every mode.
//
// The function is pure and total: it never mutates the entry and performs
// no further rounding beyond the single hourly division.
func ComputeEarnings(e TimeEntry) Money {
	var base int64
	switch e.Billing {
	case BillingDaily:
		base = e.Rate.Cents
	default:
		if e.Rate.Cents > 0 && e.DurationSec > 0 {
			base = divHalfUp(e.Rate.Cents*e.DurationSec, 3600)
		}
	}
	total := base
	for _, x := range e.Expenses {
		total += x.Amount.Cents
	}
	return Money{Cents: total}
}

// SumEarnings totals ComputeEarnings over a set of entries.
func SumEarnings(entries []TimeEntry) Money {
	var total int64
	for _, e := range entries {
		total += ComputeEarnings(e).Cents
	}
	return Money{Cents: total}
}
