package server

import "net/http"

// SecurityConfig controls the hardening headers applied to every response.
type SecurityConfig struct {
	Disabled              bool
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

const (
	defaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	defaultFrameOptions          = "DENY"
	defaultReferrerPolicy        = "no-referrer"
	defaultPermissionsPolicy     = "camera=(), microphone=(), geolocation=()"
)

func securityHeadersMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	if cfg.Disabled {
		return next
	}
	csp := cfg.ContentSecurityPolicy
	if csp == "" {
		csp = defaultContentSecurityPolicy
	}
	frameOptions := cfg.FrameOptions
	if frameOptions == "" {
		frameOptions = defaultFrameOptions
	}
	referrerPolicy := cfg.ReferrerPolicy
	if referrerPolicy == "" {
		referrerPolicy = defaultReferrerPolicy
	}
	permissionsPolicy := cfg.PermissionsPolicy
	if permissionsPolicy == "" {
		permissionsPolicy = defaultPermissionsPolicy
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", csp)
		headers.Set("X-Frame-Options", frameOptions)
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Referrer-Policy", referrerPolicy)
		headers.Set("Permissions-Policy", permissionsPolicy)
		next.ServeHTTP(w, r)
	})
}
