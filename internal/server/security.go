package server

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultFrameAncestors     = "'none'"
	defaultFrameOptions       = "DENY"
	defaultReferrerPolicy     = "same-origin"
	defaultPermissionsPolicy  = "camera=(), microphone=(), geolocation=()"
	defaultContentTypeOptions = "nosniff"
	defaultHSTSMaxAge         = 365 * 24 * time.Hour
)

// SecurityConfig overrides the hardening headers. Blank fields keep the
// defaults, which suit a JSON-only API: nothing may be framed or loaded.
// HSTS is only sent on TLS requests; a negative HSTSMaxAge disables it.
type SecurityConfig struct {
	ContentSecurityPolicy string
	FrameAncestors        string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string
	ContentTypeOptions    string
	HSTSMaxAge            time.Duration
}

type headerValue struct{ name, value string }

func pick(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// headers resolves cfg into the fixed header set and the optional HSTS value.
func (cfg SecurityConfig) headers() ([]headerValue, string) {
	ancestors := pick(cfg.FrameAncestors, defaultFrameAncestors)
	set := []headerValue{
		{"Content-Security-Policy", pick(cfg.ContentSecurityPolicy, contentSecurityPolicy(ancestors))},
		{"X-Frame-Options", pick(cfg.FrameOptions, defaultFrameOptions)},
		{"X-Content-Type-Options", pick(cfg.ContentTypeOptions, defaultContentTypeOptions)},
		{"Referrer-Policy", pick(cfg.ReferrerPolicy, defaultReferrerPolicy)},
		{"Permissions-Policy", pick(cfg.PermissionsPolicy, defaultPermissionsPolicy)},
	}

	maxAge := cfg.HSTSMaxAge
	if maxAge == 0 {
		maxAge = defaultHSTSMaxAge
	}
	var hsts string
	if maxAge > 0 {
		hsts = "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"
	}
	return set, hsts
}

func contentSecurityPolicy(frameAncestors string) string {
	return "default-src 'none'; frame-ancestors " + frameAncestors
}

func securityHeadersMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	set, hsts := cfg.headers()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		for _, h := range set {
			header.Set(h.name, h.value)
		}
		if r.TLS != nil && hsts != "" {
			header.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
