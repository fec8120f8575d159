package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"partita/internal/core"
	applog "partita/internal/log"
	"partita/internal/services"
	"partita/internal/storage"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	projects, err := s.repo.ListProjects(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Project list error", "error", err)
	}
	entries, err := s.repo.ListEntries(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Entry list error", "error", err)
	}

	type entryRow struct {
		ID       string
		Project  string
		Date     string
		Billing  string
		Earnings string
		Night    bool
		Billed   bool
		Paid     bool
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	data := struct {
		Today    string
		Projects []core.Project
		Entries  []entryRow
	}{
		Today:    time.Now().UTC().Format("2006-01-02"),
		Projects: projects,
	}
	for _, e := range entries {
		name := projectNames[e.ProjectID]
		if name == "" {
			name = e.ProjectID
		}
		data.Entries = append(data.Entries, entryRow{
			ID:       e.ID,
			Project:  name,
			Date:     e.StartTime.UTC().Format("2006-01-02"),
			Billing:  string(e.Billing),
			Earnings: formatEuros(core.ComputeEarnings(e).Cents),
			Night:    e.NightShift,
			Billed:   e.Billed,
			Paid:     e.Paid,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	p := core.Project{
		Name:           sanitizeInput(r.Form.Get("name")),
		Color:          sanitizeInput(r.Form.Get("color")),
		DefaultBilling: core.BillingType(strings.TrimSpace(r.Form.Get("billing"))),
	}
	if v := strings.TrimSpace(r.Form.Get("rate")); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Tariffa non valida")
			return
		}
		p.DefaultRate = core.Money{Cents: cents}
	}
	for _, a := range r.Form["activity"] {
		if a = sanitizeInput(a); a != "" {
			p.ActivityTypes = append(p.ActivityTypes, a)
		}
	}

	if err := s.repo.CreateProject(r.Context(), &p); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Project create error", "error", err, "name", p.Name)
		writeError(w, http.StatusUnprocessableEntity, "Dati progetto non validi")
		return
	}

	w.Header().Set("HX-Trigger", "project:created")
	writeSuccess(w, "Progetto creato: "+p.Name)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	e, err := s.entryFromForm(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.service.CreateEntry(r.Context(), e); err != nil {
		if errors.Is(err, services.ErrEntryLimitReached) {
			writeError(w, http.StatusForbidden, "Limite voci del piano di prova raggiunto")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Entry create error", "error", err, "project_id", e.ProjectID)
		writeError(w, http.StatusUnprocessableEntity, "Dati non validi")
		return
	}

	s.invalidateViews()
	w.Header().Set("HX-Trigger", "entry:created")
	writeSuccess(w, "Voce registrata: "+formatEuros(core.ComputeEarnings(*e).Cents))
}

// entryFromForm builds a TimeEntry from the submitted fields. Validation
// proper happens in the service; this only parses.
func (s *Server) entryFromForm(r *http.Request) (*core.TimeEntry, error) {
	start, end, err := parseEntryTimes(r.Form.Get("date"), r.Form.Get("start"), r.Form.Get("end"))
	if err != nil {
		return nil, errors.New("Data o orario non validi")
	}

	e := &core.TimeEntry{
		ProjectID:  sanitizeInput(r.Form.Get("project_id")),
		StartTime:  start,
		EndTime:    end,
		Billing:    core.BillingType(strings.TrimSpace(r.Form.Get("billing"))),
		NightShift: r.Form.Get("night_shift") != "",
	}
	if !end.IsZero() {
		e.DurationSec = int64(end.Sub(start) / time.Second)
	}

	if v := strings.TrimSpace(r.Form.Get("rate")); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			return nil, errors.New("Tariffa non valida")
		}
		e.Rate = core.Money{Cents: cents}
	}

	descs := r.Form["expense_description"]
	amounts := r.Form["expense_amount"]
	for i := range descs {
		desc := sanitizeInput(descs[i])
		if desc == "" || i >= len(amounts) {
			continue
		}
		cents, err := core.ParseDecimalToCents(amounts[i])
		if err != nil {
			return nil, errors.New("Importo spesa non valido")
		}
		e.Expenses = append(e.Expenses, core.Expense{
			Description: desc,
			Amount:      core.Money{Cents: cents},
		})
	}
	return e, nil
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}
	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Voce mancante")
		return
	}

	if err := s.service.DeleteEntry(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "Voce non trovata")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Entry delete error", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "Errore nella cancellazione")
		return
	}

	s.invalidateViews()
	w.Header().Set("HX-Trigger", "entry:deleted")
	writeSuccess(w, "Voce eliminata")
}

func (s *Server) handleMarkBilled(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}
	s.runBulk(w, r, "entry:billed", "Voci fatturate", func(ids []string) error {
		return s.service.MarkBilled(r.Context(), ids)
	})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}
	s.runBulk(w, r, "entry:paid", "Voci incassate", func(ids []string) error {
		return s.service.MarkPaid(r.Context(), ids)
	})
}

func (s *Server) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}
	cents, err := core.ParseDecimalToCents(r.Form.Get("rate"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Tariffa non valida")
		return
	}
	s.runBulk(w, r, "entry:rate-updated", "Tariffa aggiornata", func(ids []string) error {
		return s.service.UpdateRate(r.Context(), ids, cents)
	})
}

// runBulk applies an all-or-nothing mutation over the selected IDs and
// translates the storage sentinels into HTTP statuses.
func (s *Server) runBulk(w http.ResponseWriter, r *http.Request, trigger, okMsg string, op func(ids []string) error) {
	ids := formIDs(r)
	if err := op(ids); err != nil {
		switch {
		case errors.Is(err, storage.ErrNoEntriesSelected):
			writeError(w, http.StatusBadRequest, "Nessuna voce selezionata")
		case errors.Is(err, storage.ErrEntryNotFound):
			writeError(w, http.StatusNotFound, "Una delle voci selezionate non esiste")
		case errors.Is(err, core.ErrNegativeRate):
			writeError(w, http.StatusUnprocessableEntity, "Tariffa non valida")
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Bulk mutation error", "error", err, "count", len(ids))
			writeError(w, http.StatusInternalServerError, "Errore nell'aggiornamento")
		}
		return
	}

	s.invalidateViews()
	w.Header().Set("HX-Trigger", trigger)
	writeSuccess(w, okMsg)
}

func (s *Server) handleCreateBusinessExpense(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Importo non valido")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(r.Form.Get("date")), time.UTC)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Data non valida")
		return
	}

	b := core.BusinessExpense{
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		Date:        date,
	}
	if err := s.repo.AddBusinessExpense(r.Context(), &b); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Business expense create error", "error", err, "category", b.Category)
		writeError(w, http.StatusUnprocessableEntity, "Dati non validi")
		return
	}

	s.invalidateViews()
	w.Header().Set("HX-Trigger", "expense:created")
	writeSuccess(w, "Spesa registrata: "+b.Description+" — "+formatEuros(cents))
}
