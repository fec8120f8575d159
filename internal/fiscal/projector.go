// Package fiscal computes the regime forfettario gross-to-net cascade for
// a calendar year: surcharge reversal, stamp deduction, flat-rate
// coefficient, social-fund contribution and substitute tax.
package fiscal

import (
	"errors"
	"sort"

	"partita/internal/core"
)

const (
	// StampCents is the bollo value per stamp.
	StampCents int64 = 200
	// SurchargePct is the rivalsa share assumed embedded in paid totals.
	SurchargePct int64 = 4
	// SocialFundPerMille is the cassa contribution rate (14.5%).
	SocialFundPerMille int64 = 145

	// DefaultCoefficientPct is the deemed-profitability coefficient for
	// professional services (ATECO 62/74 group).
	DefaultCoefficientPct = 78
	// DefaultSubstituteTaxPct is the startup substitute tax rate; the
	// standard rate after the first five years is 15.
	DefaultSubstituteTaxPct = 5
)

// Rates carries the two profession-specific knobs of the cascade.
type Rates struct {
	CoefficientPct   int // coefficiente di redditività, whole percent
	SubstituteTaxPct int // imposta sostitutiva, whole percent
}

func DefaultRates() Rates {
	return Rates{
		CoefficientPct:   DefaultCoefficientPct,
		SubstituteTaxPct: DefaultSubstituteTaxPct,
	}
}

func (r Rates) Validate() error {
	if r.CoefficientPct < 1 || r.CoefficientPct > 100 {
		return ErrInvalidCoefficient
	}
	if r.SubstituteTaxPct < 0 || r.SubstituteTaxPct > 100 {
		return ErrInvalidTaxRate
	}
	return nil
}

var (
	ErrInvalidCoefficient = errors.New("coefficient out of range")
	ErrInvalidTaxRate     = errors.New("substitute tax rate out of range")
	ErrNegativeStampCount = errors.New("negative stamp count")
)

// CategoryAmount is an expense total labeled by category.
type CategoryAmount struct {
	Name   string
	Amount core.Money
}

// Projection exposes every intermediate figure of the cascade so the
// dashboard can display and audit each step, not just the net result.
type Projection struct {
	Year              int
	GrossPaid         core.Money
	TotalStamps       core.Money
	BaseWithStamps    core.Money
	SurchargeWithheld core.Money
	BasePure          core.Money
	TaxableIncome     core.Money
	SocialFund        core.Money
	SubstituteTax     core.Money
	MandatoryReserve  core.Money
	YearlyExpenses    core.Money
	NetIncome         core.Money
	ExpenseBreakdown  []CategoryAmount
}

// Project runs the deduction cascade for one year. The step order is a
// business-rule contract: each figure feeds the next.
//
//  1. gross = sum of earnings over entries marked paid in the year
//  2. stamps = stampCount * 2.00
//  3. reverse the 4% surcharge embedded in gross
//  4. subtract stamps, clamped at zero
//  5. apply the flat-rate coefficient
//  6. social fund at 14.5% of taxable income
//  7. substitute tax on taxable income net of the contribution
//  8..10. reserve, yearly expense total, net income
//
// Everything is recomputed from scratch on every call.
func Project(year int, paid []core.TimeEntry, expenses []core.BusinessExpense, stampCount int, rates Rates) (Projection, error) {
	if err := rates.Validate(); err != nil {
		return Projection{}, err
	}
	if stampCount < 0 {
		return Projection{}, ErrNegativeStampCount
	}

	p := Projection{Year: year}

	var gross int64
	for _, e := range paid {
		if !e.Paid || e.StartTime.UTC().Year() != year {
			continue
		}
		gross += core.ComputeEarnings(e).Cents
	}
	p.GrossPaid = core.Money{Cents: gross}
	p.TotalStamps = core.Money{Cents: int64(stampCount) * StampCents}

	base := divHalfUp(gross*100, 100+SurchargePct)
	p.BaseWithStamps = core.Money{Cents: base}
	p.SurchargeWithheld = core.Money{Cents: gross - base}

	pure := base - p.TotalStamps.Cents
	if pure < 0 {
		pure = 0
	}
	p.BasePure = core.Money{Cents: pure}

	taxable := divHalfUp(pure*int64(rates.CoefficientPct), 100)
	p.TaxableIncome = core.Money{Cents: taxable}

	fund := divHalfUp(taxable*SocialFundPerMille, 1000)
	p.SocialFund = core.Money{Cents: fund}

	taxBase := taxable - fund
	if taxBase < 0 {
		taxBase = 0
	}
	p.SubstituteTax = core.Money{Cents: divHalfUp(taxBase*int64(rates.SubstituteTaxPct), 100)}
	p.MandatoryReserve = core.Money{Cents: fund + p.SubstituteTax.Cents}

	p.YearlyExpenses, p.ExpenseBreakdown = sumExpenses(year, expenses)

	p.NetIncome = core.Money{Cents: gross -
		p.SurchargeWithheld.Cents -
		p.MandatoryReserve.Cents -
		p.YearlyExpenses.Cents -
		p.TotalStamps.Cents}

	return p, nil
}

// sumExpenses totals business expenses dated within the year and breaks
// them down by category, largest first.
func sumExpenses(year int, expenses []core.BusinessExpense) (core.Money, []CategoryAmount) {
	var total int64
	byCat := map[string]int64{}
	for _, b := range expenses {
		if b.Date.UTC().Year() != year {
			continue
		}
		total += b.Amount.Cents
		byCat[b.Category] += b.Amount.Cents
	}

	breakdown := make([]CategoryAmount, 0, len(byCat))
	for name, cents := range byCat {
		breakdown = append(breakdown, CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Amount.Cents != breakdown[j].Amount.Cents {
			return breakdown[i].Amount.Cents > breakdown[j].Amount.Cents
		}
		return breakdown[i].Name < breakdown[j].Name
	})
	return core.Money{Cents: total}, breakdown
}

func divHalfUp(n, d int64) int64 {
	return (n + d/2) / d
}
