package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"partita/internal/core"
	"partita/internal/fiscal"
)

// handleFiscalDashboard renders the yearly projection partial. Paid
// entries and business expenses load concurrently; both feeds are needed
// before the cascade runs.
func (s *Server) handleFiscalDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	year := time.Now().UTC().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 2000 && y < 2200 {
			year = y
		}
	}
	stampCount := 0
	if v := strings.TrimSpace(r.URL.Query().Get("stamps")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			stampCount = n
		}
	}

	rates := s.rates
	if v := strings.TrimSpace(r.URL.Query().Get("tax")); v != "" {
		if pct, err := strconv.Atoi(v); err == nil {
			rates.SubstituteTaxPct = pct
		}
	}

	projection, err := s.getProjection(r, year, stampCount, rates)
	if err != nil {
		slog.ErrorContext(r.Context(), "Fiscal projection error", "error", err, "year", year)
		_, _ = w.Write([]byte(`<section id="fiscal-dashboard"><div class="placeholder">Errore caricando proiezione</div></section>`))
		return
	}

	if err := s.templates.ExecuteTemplate(w, "fiscal_dashboard.html", s.projectionViewData(projection, rates)); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "fiscal_dashboard.html")
		_, _ = w.Write([]byte(`<section id="fiscal-dashboard"><div class="placeholder">Errore rendering proiezione</div></section>`))
	}
}

func projectionCacheKey(year, stampCount int, rates fiscal.Rates) string {
	return "projection:" + strconv.Itoa(year) +
		":" + strconv.Itoa(stampCount) +
		":" + strconv.Itoa(rates.CoefficientPct) +
		":" + strconv.Itoa(rates.SubstituteTaxPct)
}

func (s *Server) getProjection(r *http.Request, year, stampCount int, rates fiscal.Rates) (fiscal.Projection, error) {
	key := projectionCacheKey(year, stampCount, rates)
	if cached, found := s.projectionCache.Get(key); found {
		return cached, nil
	}

	var (
		paid     []core.TimeEntry
		expenses []core.BusinessExpense
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		paid, err = s.repo.ListPaidEntries(ctx, year)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ListBusinessExpenses(ctx, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return fiscal.Projection{}, err
	}

	projection, err := fiscal.Project(year, paid, expenses, stampCount, rates)
	if err != nil {
		return fiscal.Projection{}, err
	}

	s.projectionCache.Set(key, projection)
	return projection, nil
}

type projectionView struct {
	Year              int
	CoefficientPct    int
	SubstituteTaxPct  int
	GrossPaid         string
	TotalStamps       string
	BaseWithStamps    string
	SurchargeWithheld string
	BasePure          string
	TaxableIncome     string
	SocialFund        string
	SubstituteTax     string
	MandatoryReserve  string
	YearlyExpenses    string
	NetIncome         string
	Breakdown         []breakdownRow
}

type breakdownRow struct {
	Name   string
	Amount string
}

func (s *Server) projectionViewData(p fiscal.Projection, rates fiscal.Rates) projectionView {
	data := projectionView{
		Year:              p.Year,
		CoefficientPct:    rates.CoefficientPct,
		SubstituteTaxPct:  rates.SubstituteTaxPct,
		GrossPaid:         formatEuros(p.GrossPaid.Cents),
		TotalStamps:       formatEuros(p.TotalStamps.Cents),
		BaseWithStamps:    formatEuros(p.BaseWithStamps.Cents),
		SurchargeWithheld: formatEuros(p.SurchargeWithheld.Cents),
		BasePure:          formatEuros(p.BasePure.Cents),
		TaxableIncome:     formatEuros(p.TaxableIncome.Cents),
		SocialFund:        formatEuros(p.SocialFund.Cents),
		SubstituteTax:     formatEuros(p.SubstituteTax.Cents),
		MandatoryReserve:  formatEuros(p.MandatoryReserve.Cents),
		YearlyExpenses:    formatEuros(p.YearlyExpenses.Cents),
		NetIncome:         formatEuros(p.NetIncome.Cents),
	}
	for _, c := range p.ExpenseBreakdown {
		data.Breakdown = append(data.Breakdown, breakdownRow{
			Name:   c.Name,
			Amount: formatEuros(c.Amount.Cents),
		})
	}
	return data
}
