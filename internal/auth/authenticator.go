package auth

import (
	"net/http"
	"strings"
)

// Source records where the credentials of a request came from.
type Source string

const (
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
)

// Identity is the result of a successful authentication.
type Identity struct {
	UserID int64
	Source Source
	Claims *Claims
}

// Authenticator resolves a request identity from the Authorization header or
// the access cookie, in that order.
type Authenticator struct {
	tokens  *TokenManager
	cookies CookieConfig
}

// NewAuthenticator binds the token manager to the cookie configuration.
func NewAuthenticator(tokens *TokenManager, cookies CookieConfig) *Authenticator {
	return &Authenticator{tokens: tokens, cookies: cookies.withDefaults()}
}

// Authenticate returns a nil identity and nil error for anonymous requests.
// A bearer header wins over the cookie. Cookie credentials on unsafe methods
// additionally require a valid CSRF token.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	if raw, present, err := bearerToken(r); present {
		if err != nil {
			return nil, err
		}
		claims, err := a.tokens.ParseAccess(raw)
		if err != nil {
			return nil, err
		}
		return &Identity{UserID: claims.UserID, Source: SourceHeader, Claims: claims}, nil
	}

	raw := a.cookies.AccessToken(r)
	if raw == "" {
		return nil, nil
	}
	claims, err := a.tokens.ParseAccess(raw)
	if err != nil {
		return nil, err
	}
	if !IsSafeMethod(r.Method) {
		if err := CheckCSRF(r); err != nil {
			return nil, err
		}
	}
	return &Identity{UserID: claims.UserID, Source: SourceCookie, Claims: claims}, nil
}

// bearerToken extracts a Bearer credential. Headers using another scheme are
// ignored so the cookie can still apply.
func bearerToken(r *http.Request) (string, bool, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false, nil
	}
	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false, nil
	}
	if len(parts) != 2 {
		return "", true, ErrTokenInvalid
	}
	return parts[1], true, nil
}
