package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"

	csrfTokenBytes = 32
	csrfCookieTTL  = 365 * 24 * time.Hour
)

// ErrCSRFFailed is returned when a cookie-authenticated unsafe request lacks a
// matching CSRF token.
var ErrCSRFFailed = errors.New("csrf token missing or incorrect")

// IsSafeMethod reports whether the method cannot change server state.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// NewCSRFToken returns a random hex token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	return generateToken(csrfTokenBytes)
}

// CSRFToken returns the existing csrftoken cookie value, if any.
func CSRFToken(r *http.Request) string {
	return cookieValue(r, CSRFCookieName)
}

// CheckCSRF compares the X-CSRFToken header with the csrftoken cookie.
func CheckCSRF(r *http.Request) error {
	cookie := CSRFToken(r)
	header := r.Header.Get(CSRFHeaderName)
	if cookie == "" || header == "" {
		return ErrCSRFFailed
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return ErrCSRFFailed
	}
	return nil
}

// SetCSRFCookie writes the csrftoken cookie. It is readable by scripts so the
// client can echo it in the X-CSRFToken header.
func (c CookieConfig) SetCSRFCookie(w http.ResponseWriter, r *http.Request, token string) {
	c = c.withDefaults()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(csrfCookieTTL.Seconds()),
		Expires:  time.Now().Add(csrfCookieTTL).UTC(),
		Secure:   c.secure(r),
		SameSite: c.SameSite,
	})
}
