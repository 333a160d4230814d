package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHeadersAllowGatewayScript(t *testing.T) {
	h := Headers{
		Enable:                true,
		EnableHSTS:            true,
		HSTSIncludeSubdomains: true,
		ScriptHosts:           []string{"https://securegw-stage.paytm.in/"},
		FrameHosts:            []string{"https://securegw-stage.paytm.in"},
	}
	handler := h.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "https://shop.example/checkout", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "script-src 'self' https://securegw-stage.paytm.in;") {
		t.Fatalf("unexpected csp %q", csp)
	}
	if !strings.Contains(csp, "frame-src 'self' https://securegw-stage.paytm.in;") {
		t.Fatalf("unexpected csp %q", csp)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("unexpected hsts %q", got)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff")
	}
}

func TestHeadersSkipHSTSWithoutTLS(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("hsts must not be sent over plain http")
	}
}

func TestHeadersDisabled(t *testing.T) {
	handler := Headers{}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Content-Security-Policy") != "" {
		t.Fatal("expected no headers when disabled")
	}
}
