package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIP(t *testing.T) {
	t.Run("prefers first X-Forwarded-For hop", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.RemoteAddr = "10.0.0.1:5000"
		if got := RequestIP(r); got != "203.0.113.9" {
			t.Errorf("RequestIP() = %q, want 203.0.113.9", got)
		}
	})

	t.Run("falls back to RemoteAddr", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "198.51.100.7:9000"
		if got := RequestIP(r); got != "198.51.100.7:9000" {
			t.Errorf("RequestIP() = %q, want 198.51.100.7:9000", got)
		}
	})
}

func TestHashIsSaltedAndDeterministic(t *testing.T) {
	a := Hash("salt1", "1.2.3.4")
	b := Hash("salt1", "1.2.3.4")
	c := Hash("salt2", "1.2.3.4")
	if a != b {
		t.Errorf("Hash is not deterministic: %q != %q", a, b)
	}
	if a == c {
		t.Errorf("Hash ignored the salt")
	}
}

func TestUAHash(t *testing.T) {
	if got := UAHash("salt", ""); got != nil {
		t.Errorf("UAHash(empty) = %v, want nil", got)
	}
	got := UAHash("salt", "Mozilla/5.0")
	if got == nil || *got == "" {
		t.Errorf("UAHash(non-empty) = %v, want non-nil hash", got)
	}
}
