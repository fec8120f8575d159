// Package billing filters time entries into a printable summary document
// and computes its totals: base amount, stamp duty, percentage surcharge
// and grand total.
package billing

import (
	"errors"
	"sort"

	"partita/internal/core"
)

const (
	// ViewPending selects entries not yet invoiced.
	ViewPending View = "pending"
	// ViewBilled selects entries already invoiced.
	ViewBilled View = "billed"

	// StampDutyCents is the fixed bollo amount, charged once per document.
	StampDutyCents int64 = 200
	// SurchargePct is the rivalsa percentage charged on (base + stamp).
	SurchargePct int64 = 4
	// SurchargeThresholdCents gates the surcharge: it applies only when
	// the post-stamp subtotal strictly exceeds this value.
	SurchargeThresholdCents int64 = 10_000
)

type View string

func (v View) Valid() bool {
	return v == ViewPending || v == ViewBilled
}

// Query is the immutable request for one summary computation. Selection
// state lives with the caller; the aggregator only reads it.
type Query struct {
	View       View
	ProjectIDs map[string]bool
	Months     map[string]bool // YYYY-MM buckets, UTC-normalized
	StampDuty  bool
	Surcharge  bool
}

// Summary is a filtered, chronologically sorted entry list plus the four
// document scalars. SurchargeAllowed reports whether the threshold gate is
// open so the caller can disable the toggle live.
type Summary struct {
	Entries          []core.TimeEntry
	BaseTotal        core.Money
	StampDuty        core.Money
	Surcharge        core.Money
	GrandTotal       core.Money
	SurchargeAllowed bool
}

var ErrInvalidView = errors.New("invalid billing view")

// Filter returns the entries matching q, sorted ascending by start time.
// An empty project or month selection yields an empty result outright.
func Filter(entries []core.TimeEntry, q Query) ([]core.TimeEntry, error) {
	if !q.View.Valid() {
		return nil, ErrInvalidView
	}
	if len(q.ProjectIDs) == 0 || len(q.Months) == 0 {
		return nil, nil
	}

	var out []core.TimeEntry
	for _, e := range entries {
		if e.Billed != (q.View == ViewBilled) {
			continue
		}
		if !q.ProjectIDs[e.ProjectID] {
			continue
		}
		if !q.Months[core.MonthKey(e.StartTime)] {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// Aggregate filters entries per q and computes the document totals.
//
// The surcharge is computed on the post-stamp subtotal, never on the base
// alone, and is forced off whenever the subtotal sits at or below the
// threshold, regardless of the toggle. This also covers the case where a
// selection change drops the subtotal after the user enabled the toggle.
func Aggregate(entries []core.TimeEntry, q Query) (Summary, error) {
	filtered, err := Filter(entries, q)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Entries: filtered}
	s.BaseTotal = core.SumEarnings(filtered)

	// The stamp is charged per document; an empty selection produces no
	// document, so every total stays zero.
	subtotal := s.BaseTotal.Cents
	if q.StampDuty && len(filtered) > 0 {
		s.StampDuty = core.Money{Cents: StampDutyCents}
		subtotal += StampDutyCents
	}

	s.SurchargeAllowed = subtotal > SurchargeThresholdCents
	if q.Surcharge && s.SurchargeAllowed {
		s.Surcharge = core.Money{Cents: pctHalfUp(subtotal, SurchargePct)}
	}

	s.GrandTotal = core.Money{Cents: subtotal + s.Surcharge.Cents}
	return s, nil
}

// pctHalfUp computes pct% of n in cents with half-up rounding.
func pctHalfUp(n, pct int64) int64 {
	return (n*pct + 50) / 100
}
