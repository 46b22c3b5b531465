package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SecureMode decides when auth cookies carry the Secure attribute.
type SecureMode int

const (
	// SecureAuto marks cookies Secure when the request arrived over HTTPS.
	SecureAuto SecureMode = iota
	SecureAlways
	SecureNever
)

// ParseSecureMode maps a config value to a SecureMode. Empty means auto.
func ParseSecureMode(value string) (SecureMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return SecureAuto, nil
	case "1", "true", "yes", "on", "always":
		return SecureAlways, nil
	case "0", "false", "no", "off", "never":
		return SecureNever, nil
	default:
		return SecureAuto, fmt.Errorf("invalid cookie secure mode %q", value)
	}
}

// ParseSameSite maps Lax/Strict/None to the http.SameSite values.
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("invalid samesite value %q", value)
	}
}

// CookieConfig names and scopes the auth and CSRF cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Path        string
	RefreshPath string
	Domain      string
	SameSite    http.SameSite
	Secure      SecureMode
}

// DefaultCookieConfig returns access_token/refresh_token cookies scoped to "/".
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		AccessName:  "access_token",
		RefreshName: "refresh_token",
		Path:        "/",
		RefreshPath: "/",
		SameSite:    http.SameSiteLaxMode,
		Secure:      SecureAuto,
	}
}

func (c CookieConfig) withDefaults() CookieConfig {
	defaults := DefaultCookieConfig()
	if c.AccessName == "" {
		c.AccessName = defaults.AccessName
	}
	if c.RefreshName == "" {
		c.RefreshName = defaults.RefreshName
	}
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.RefreshPath == "" {
		c.RefreshPath = defaults.RefreshPath
	}
	if c.SameSite == 0 {
		c.SameSite = defaults.SameSite
	}
	return c
}

func (c CookieConfig) secure(r *http.Request) bool {
	switch c.Secure {
	case SecureAlways:
		return true
	case SecureNever:
		return false
	default:
		return isSecureRequest(r)
	}
}

// SetAuthCookies writes HttpOnly access and refresh cookies whose max-age
// follows the token lifetimes.
func (c CookieConfig) SetAuthCookies(w http.ResponseWriter, r *http.Request, access, refresh string, accessTTL, refreshTTL time.Duration) {
	c = c.withDefaults()
	secure := c.secure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     c.AccessName,
		Value:    access,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(accessTTL.Seconds()),
		Expires:  time.Now().Add(accessTTL).UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     c.RefreshName,
		Value:    refresh,
		Path:     c.RefreshPath,
		Domain:   c.Domain,
		MaxAge:   int(refreshTTL.Seconds()),
		Expires:  time.Now().Add(refreshTTL).UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.SameSite,
	})
}

// ClearAuthCookies expires both auth cookies.
func (c CookieConfig) ClearAuthCookies(w http.ResponseWriter, r *http.Request) {
	c = c.withDefaults()
	for _, cookie := range []struct{ name, path string }{
		{c.AccessName, c.Path},
		{c.RefreshName, c.RefreshPath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     cookie.name,
			Value:    "",
			Path:     cookie.path,
			Domain:   c.Domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
			HttpOnly: true,
			Secure:   c.secure(r),
			SameSite: c.SameSite,
		})
	}
}

// AccessToken returns the access cookie value, if any.
func (c CookieConfig) AccessToken(r *http.Request) string {
	return cookieValue(r, c.withDefaults().AccessName)
}

// RefreshToken returns the refresh cookie value, if any.
func (c CookieConfig) RefreshToken(r *http.Request) string {
	return cookieValue(r, c.withDefaults().RefreshName)
}

func cookieValue(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}
