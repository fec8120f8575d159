package http

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func formatEuros(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(euros, 10) + "," + fmt.Sprintf("%02d", rem)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(msg) + `</div>`))
}

func writeSuccess(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`))
}

// requirePost answers 405 and reports false unless the request is a POST.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// formIDs collects the selected entry IDs, accepting both repeated "id"
// fields and a comma-separated "ids" field.
func formIDs(r *http.Request) []string {
	var out []string
	for _, v := range r.Form["id"] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	for _, v := range strings.Split(r.Form.Get("ids"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseEntryTimes resolves the date and optional clock times of a form
// submission into a start instant and an explicit end instant. A missing
// end leaves the zero time, meaning a whole-day entry. An end before the
// start rolls over to the next day, covering night shifts.
func parseEntryTimes(dateStr, startStr, endStr string) (start, end time.Time, err error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateStr), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q", dateStr)
	}

	start = day
	if v := strings.TrimSpace(startStr); v != "" {
		t, err := time.Parse("15:04", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q", v)
		}
		start = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}

	if v := strings.TrimSpace(endStr); v != "" {
		t, err := time.Parse("15:04", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q", v)
		}
		end = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, nil
}
