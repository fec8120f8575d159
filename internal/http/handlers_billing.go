package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"partita/internal/amqp"
	"partita/internal/billing"
	"partita/internal/core"
	"partita/internal/services"
)

// billingParams reads the summary selection out of query or form values.
func billingParams(values url.Values) (view string, projects, months []string, stamp, surcharge bool) {
	view = strings.TrimSpace(values.Get("view"))
	if view == "" {
		view = string(billing.ViewPending)
	}
	for _, p := range values["project"] {
		if p = strings.TrimSpace(p); p != "" {
			projects = append(projects, p)
		}
	}
	for _, m := range values["month"] {
		if m = strings.TrimSpace(m); m != "" {
			months = append(months, m)
		}
	}
	stamp = values.Get("stamp") != ""
	surcharge = values.Get("surcharge") != ""
	return
}

func summaryCacheKey(view string, projects, months []string, stamp, surcharge bool) string {
	ps := append([]string(nil), projects...)
	ms := append([]string(nil), months...)
	sort.Strings(ps)
	sort.Strings(ms)
	key := "summary:" + view + ":" + strings.Join(ps, ",") + ":" + strings.Join(ms, ",")
	if stamp {
		key += ":stamp"
	}
	if surcharge {
		key += ":surcharge"
	}
	return key
}

// getSummary computes (or serves from cache) the billing summary for the
// given selection.
func (s *Server) getSummary(r *http.Request, view string, projects, months []string, stamp, surcharge bool) (billing.Summary, error) {
	key := summaryCacheKey(view, projects, months, stamp, surcharge)
	if cached, found := s.summaryCache.Get(key); found {
		return cached, nil
	}

	entries, err := s.repo.ListEntries(r.Context())
	if err != nil {
		return billing.Summary{}, err
	}

	q := billing.Query{
		View:       billing.View(view),
		ProjectIDs: toSet(projects),
		Months:     toSet(months),
		StampDuty:  stamp,
		Surcharge:  surcharge,
	}
	summary, err := billing.Aggregate(entries, q)
	if err != nil {
		return billing.Summary{}, err
	}

	s.summaryCache.Set(key, summary)
	return summary, nil
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

type summaryView struct {
	View             string
	Months           []string
	Rows             []summaryRow
	BaseTotal        string
	StampDuty        string
	Surcharge        string
	GrandTotal       string
	HasStamp         bool
	HasSurcharge     bool
	SurchargeAllowed bool
	Empty            bool
}

type summaryRow struct {
	Date     string
	Project  string
	Billing  string
	Earnings string
}

func (s *Server) summaryViewData(view string, months []string, summary billing.Summary) summaryView {
	data := summaryView{
		View:             view,
		Months:           months,
		BaseTotal:        formatEuros(summary.BaseTotal.Cents),
		StampDuty:        formatEuros(summary.StampDuty.Cents),
		Surcharge:        formatEuros(summary.Surcharge.Cents),
		GrandTotal:       formatEuros(summary.GrandTotal.Cents),
		HasStamp:         summary.StampDuty.Cents > 0,
		HasSurcharge:     summary.Surcharge.Cents > 0,
		SurchargeAllowed: summary.SurchargeAllowed,
		Empty:            len(summary.Entries) == 0,
	}
	for _, e := range summary.Entries {
		data.Rows = append(data.Rows, summaryRow{
			Date:     e.StartTime.UTC().Format("2006-01-02"),
			Project:  e.ProjectID,
			Billing:  string(e.Billing),
			Earnings: formatEuros(core.ComputeEarnings(e).Cents),
		})
	}
	return data
}

// handleBillingSummary renders the summary partial for the current
// selection and toggles.
func (s *Server) handleBillingSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	view, projects, months, stamp, surcharge := billingParams(r.URL.Query())
	summary, err := s.getSummary(r, view, projects, months, stamp, surcharge)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidView) {
			writeError(w, http.StatusBadRequest, "Vista non valida")
			return
		}
		slog.ErrorContext(r.Context(), "Billing summary error", "error", err, "view", view)
		_, _ = w.Write([]byte(`<section id="billing-summary"><div class="placeholder">Errore caricando riepilogo</div></section>`))
		return
	}

	if err := s.templates.ExecuteTemplate(w, "billing_summary.html", s.summaryViewData(view, months, summary)); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "billing_summary.html")
		_, _ = w.Write([]byte(`<section id="billing-summary"><div class="placeholder">Errore rendering riepilogo</div></section>`))
	}
}

// handlePrintSummary renders the full printable document for the same
// selection the partial shows.
func (s *Server) handlePrintSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	view, projects, months, stamp, surcharge := billingParams(r.URL.Query())
	summary, err := s.getSummary(r, view, projects, months, stamp, surcharge)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidView) {
			writeError(w, http.StatusBadRequest, "Vista non valida")
			return
		}
		slog.ErrorContext(r.Context(), "Print summary error", "error", err, "view", view)
		http.Error(w, "errore caricando riepilogo", http.StatusInternalServerError)
		return
	}

	if err := s.templates.ExecuteTemplate(w, "print_summary.html", s.summaryViewData(view, months, summary)); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "print_summary.html")
		http.Error(w, "errore rendering documento", http.StatusInternalServerError)
	}
}

// handleExportSummary queues the current selection for archival in the
// report spreadsheet.
func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	view, projects, months, stamp, surcharge := billingParams(r.Form)
	if !billing.View(view).Valid() {
		writeError(w, http.StatusBadRequest, "Vista non valida")
		return
	}

	msg := amqp.NewSummaryExportMessage(view, projects, months, stamp, surcharge)
	if err := s.service.RequestSummaryExport(r.Context(), msg); err != nil {
		if errors.Is(err, services.ErrExportNotAllowed) {
			writeError(w, http.StatusForbidden, "Esportazione non disponibile nel piano di prova")
			return
		}
		slog.ErrorContext(r.Context(), "Summary export error", "error", err, "view", view)
		writeError(w, http.StatusInternalServerError, "Errore nell'invio dell'esportazione")
		return
	}

	writeSuccess(w, "Esportazione avviata")
}
