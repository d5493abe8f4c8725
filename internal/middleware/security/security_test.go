package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectorSuspicious(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/incomes?range=thisMonth", "Mozilla/5.0", false},
		{"path traversal", http.MethodGet, "/static/../../etc/passwd", "", true},
		{"dotenv scan", http.MethodGet, "/.env", "", true},
		{"encoded query is matched raw", http.MethodGet, "/api/incomes?filter=union%20select", "", false},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if got := d.Suspicious(r); got != tt.want {
				t.Errorf("Suspicious(%s %s) = %v, want %v", tt.method, tt.target, got, tt.want)
			}
		})
	}
	if d.SuspiciousCount() != 4 {
		t.Errorf("SuspiciousCount() = %d, want 4", d.SuspiciousCount())
	}
}

func TestDetectorClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ClientIP(r); got != "203.0.113.5" {
		t.Errorf("untrusted peer: got %s", got)
	}

	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	if got := d.ClientIP(r); got != "198.51.100.1" {
		t.Errorf("trusted proxy: got %s", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.7")
	if got := d.ClientIP(r); got != "198.51.100.7" {
		t.Errorf("x-real-ip: got %s", got)
	}

	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
}

func TestDetectorMiddlewareBlocks(t *testing.T) {
	d := NewDetector()
	var flagged int
	h := d.Middleware(true, func(*http.Request) { flagged++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rec.Code != http.StatusBadRequest || flagged != 1 {
		t.Errorf("got code %d flagged %d", rec.Code, flagged)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("clean request blocked: %d", rec.Code)
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
