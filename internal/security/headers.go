package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Headers sets browser security headers. ScriptHosts and FrameHosts are added to the
// Content-Security-Policy so the hosted payment widget can load.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ScriptHosts           []string
	FrameHosts            []string
}

// Middleware attaches the headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	csp := h.ContentSecurityPolicy()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		headers.Set("Content-Security-Policy", csp)
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

// ContentSecurityPolicy renders the policy sent by Middleware.
func (h Headers) ContentSecurityPolicy() string {
	directives := []string{
		"default-src 'self'",
		"script-src " + sources(h.ScriptHosts),
		"frame-src " + sources(h.FrameHosts),
		"connect-src " + sources(h.ScriptHosts),
		"img-src 'self' data: https:",
		"style-src 'self' 'unsafe-inline'",
		"frame-ancestors 'none'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ")
}

func sources(hosts []string) string {
	out := []string{"'self'"}
	for _, host := range hosts {
		host = strings.TrimRight(strings.TrimSpace(host), "/")
		if host != "" {
			out = append(out, host)
		}
	}
	return strings.Join(out, " ")
}
