package auth

import (
	"net/http"
	"strings"
)

// Extractor resolves caller identity from incoming HTTP requests.
// Bearer token takes priority (CLI and desktop clients), the session
// cookie is the fallback (browser frontend).
type Extractor struct {
	secret     []byte
	cookieName string
}

// NewExtractor creates an Extractor. An empty secret disables signature
// verification (dev mode); cookieName names the session cookie to read
// when no Bearer token is present.
func NewExtractor(secret, cookieName string) *Extractor {
	return &Extractor{
		secret:     []byte(secret),
		cookieName: cookieName,
	}
}

// FromRequest extracts and validates caller identity from the request.
// Returns the Identity and true on success, or a zero Identity and false
// when no valid credential is present.
func (e *Extractor) FromRequest(r *http.Request) (Identity, bool) {
	// Try Bearer token first (CLI and desktop clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := validateToken(token, e.secret)
		if err == nil && claims.Sub != "" {
			return identityFromClaims(claims), true
		}
	}

	// Fall back to cookie (browser frontend)
	cookie, err := r.Cookie(e.cookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, false
	}

	claims, err := validateToken(cookie.Value, e.secret)
	if err == nil && claims.Sub != "" {
		return identityFromClaims(claims), true
	}

	// Legacy fallback: extract sub without validation when no secret is
	// configured. Preserves dev setups where the host app issues tokens
	// with a different or no secret.
	if len(e.secret) == 0 {
		if sub := extractSubject(cookie.Value); sub != "" {
			return Identity{UserID: sub}, true
		}
	}

	return Identity{}, false
}

// Attach extracts identity from the request and, on success, returns the
// request with the Identity stored in its context. On failure the original
// request is returned unchanged.
func (e *Extractor) Attach(r *http.Request) *http.Request {
	id, ok := e.FromRequest(r)
	if !ok {
		return r
	}
	return r.WithContext(WithIdentity(r.Context(), id))
}

func identityFromClaims(c *tokenClaims) Identity {
	return Identity{
		UserID: c.Sub,
		Email:  c.Email,
		Roles:  c.Roles,
	}
}
