package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	cases := []struct {
		name string
		req  *http.Request
		want bool
	}{
		{"clean", httptest.NewRequest(http.MethodGet, "/entries", nil), false},
		{"traversal", httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil), true},
		{"sqli query", httptest.NewRequest(http.MethodGet, "/entries?q=union+select+1", nil), true},
		{"trace method", httptest.NewRequest("TRACE", "/", nil), true},
	}
	for _, c := range cases {
		if got := d.DetectSuspiciousRequest(c.req); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
	if d.SuspiciousRequests() != 3 {
		t.Fatalf("expected 3 flagged requests, got %d", d.SuspiciousRequests())
	}
}

func TestExtractClientIPTrustsPrivateProxies(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4444"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	if got := d.ExtractClientIP(r); got != "203.0.113.7" {
		t.Fatalf("expected forwarded IP, got %s", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = "203.0.113.50:1234"
	r2.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(r2); got != "203.0.113.50" {
		t.Fatalf("untrusted peer must not spoof via XFF, got %s", got)
	}
}

func TestHeadersMiddlewareSetsPolicy(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing X-Frame-Options")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing CSP")
	}
}
