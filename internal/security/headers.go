package security

import (
	"fmt"
	"net/http"
)

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// Headers configures the hardening headers attached to API responses.
// Invoices and ledger rows carry customer data, so responses are never cached.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

func (h Headers) hsts() string {
	age := h.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	if h.HSTSIncludeSubdomains {
		return fmt.Sprintf("max-age=%d; includeSubDomains", age)
	}
	return fmt.Sprintf("max-age=%d", age)
}

// Middleware attaches the headers to each response. Strict-Transport-Security
// is only sent on TLS connections.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	var hsts string
	if h.EnableHSTS {
		hsts = h.hsts()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for _, kv := range baseHeaders {
			dst.Set(kv[0], kv[1])
		}
		if hsts != "" && r.TLS != nil {
			dst.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
