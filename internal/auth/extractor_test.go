package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testCookie = "app_session"

// buildTestJWT creates an unsigned JWT for testing (alg:none, no signature).
func buildTestJWT(sub string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]interface{}{
		"sub": sub,
		"iss": "broker-dev",
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return header + "." + payload + "."
}

// signTestJWT creates an HMAC-SHA256 signed JWT with the given claims.
func signTestJWT(t *testing.T, secret string, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig
}

// --- FromRequest tests ---

func TestFromRequest_ValidCookie(t *testing.T) {
	jwt := buildTestJWT("user42")

	req := httptest.NewRequest("GET", "/api/assistant/query", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: jwt})

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected FromRequest to return ok=true")
	}
	if id.UserID != "user42" {
		t.Errorf("expected UserID user42, got %s", id.UserID)
	}
}

func TestFromRequest_NoCredential(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/assistant/query", nil)

	e := NewExtractor("", testCookie)
	_, ok := e.FromRequest(req)
	if ok {
		t.Error("expected FromRequest to return ok=false when no credential is set")
	}
}

func TestFromRequest_InvalidToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/assistant/query", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "not-a-jwt"})

	e := NewExtractor("", testCookie)
	_, ok := e.FromRequest(req)
	if ok {
		t.Error("expected FromRequest to return ok=false for invalid token")
	}
}

func TestFromRequest_BearerToken(t *testing.T) {
	jwt := buildTestJWT("bearer-user")

	req := httptest.NewRequest("POST", "/api/assistant/execute", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected FromRequest to return ok=true for Bearer token")
	}
	if id.UserID != "bearer-user" {
		t.Errorf("expected UserID bearer-user, got %s", id.UserID)
	}
}

func TestFromRequest_BearerTakesPriority(t *testing.T) {
	bearerJWT := buildTestJWT("bearer-user")
	cookieJWT := buildTestJWT("cookie-user")

	req := httptest.NewRequest("POST", "/api/assistant/execute", nil)
	req.Header.Set("Authorization", "Bearer "+bearerJWT)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookieJWT})

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected FromRequest to return ok=true")
	}
	if id.UserID != "bearer-user" {
		t.Errorf("expected Bearer to take priority, got UserID %s", id.UserID)
	}
}

func TestFromRequest_InvalidBearerFallsToCookie(t *testing.T) {
	cookieJWT := buildTestJWT("cookie-user")

	req := httptest.NewRequest("POST", "/api/assistant/execute", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookieJWT})

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected cookie fallback after invalid Bearer token")
	}
	if id.UserID != "cookie-user" {
		t.Errorf("expected UserID cookie-user, got %s", id.UserID)
	}
}

func TestFromRequest_NonBearerAuthIgnored(t *testing.T) {
	cookieJWT := buildTestJWT("cookie-user")

	req := httptest.NewRequest("GET", "/api/assistant/catalog", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookieJWT})

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected FromRequest to return ok=true from cookie")
	}
	if id.UserID != "cookie-user" {
		t.Errorf("expected UserID cookie-user, got %s", id.UserID)
	}
}

// --- signature verification tests ---

func TestFromRequest_SignedTokenValidSecret(t *testing.T) {
	jwt := signTestJWT(t, "s3cret", map[string]interface{}{
		"sub":   "user7",
		"email": "user7@example.com",
		"roles": []string{"admin", "editor"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/api/assistant/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)

	e := NewExtractor("s3cret", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected signed token to validate")
	}
	if id.UserID != "user7" {
		t.Errorf("expected UserID user7, got %s", id.UserID)
	}
	if id.Email != "user7@example.com" {
		t.Errorf("expected email claim to carry through, got %s", id.Email)
	}
	if len(id.Roles) != 2 || id.Roles[0] != "admin" {
		t.Errorf("expected roles [admin editor], got %v", id.Roles)
	}
}

func TestFromRequest_SignedTokenWrongSecret(t *testing.T) {
	jwt := signTestJWT(t, "other-secret", map[string]interface{}{
		"sub": "user7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/api/assistant/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)

	e := NewExtractor("s3cret", testCookie)
	_, ok := e.FromRequest(req)
	if ok {
		t.Error("expected signature mismatch to reject the token")
	}
}

func TestFromRequest_ExpiredToken(t *testing.T) {
	jwt := signTestJWT(t, "s3cret", map[string]interface{}{
		"sub": "user7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/api/assistant/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)

	e := NewExtractor("s3cret", testCookie)
	_, ok := e.FromRequest(req)
	if ok {
		t.Error("expected expired token to be rejected")
	}
}

func TestFromRequest_UnsignedRejectedWhenSecretSet(t *testing.T) {
	jwt := buildTestJWT("user42")

	req := httptest.NewRequest("GET", "/api/assistant/catalog", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: jwt})

	e := NewExtractor("s3cret", testCookie)
	_, ok := e.FromRequest(req)
	if ok {
		t.Error("expected unsigned token to be rejected when a secret is configured")
	}
}

// --- Attach tests ---

func TestAttach_StoresIdentityInContext(t *testing.T) {
	jwt := buildTestJWT("ctx-user")

	req := httptest.NewRequest("GET", "/api/assistant/query", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: jwt})

	e := NewExtractor("", testCookie)
	result := e.Attach(req)

	id, ok := IdentityFromContext(result.Context())
	if !ok {
		t.Fatal("expected IdentityFromContext to return ok=true")
	}
	if id.UserID != "ctx-user" {
		t.Errorf("expected UserID ctx-user, got %s", id.UserID)
	}
}

func TestAttach_NoCredentialLeavesRequestUnchanged(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/assistant/query", nil)

	e := NewExtractor("", testCookie)
	result := e.Attach(req)

	if _, ok := IdentityFromContext(result.Context()); ok {
		t.Error("expected no identity in context without credentials")
	}
	if result != req {
		t.Error("expected original request to be returned unchanged")
	}
}

// --- extractSubject tests ---

func TestExtractSubject_ValidToken(t *testing.T) {
	jwt := buildTestJWT("user99")

	if sub := extractSubject(jwt); sub != "user99" {
		t.Errorf("expected user99, got %q", sub)
	}
}

func TestExtractSubject_InvalidBase64Payload(t *testing.T) {
	if sub := extractSubject("header.!!invalid!!.sig"); sub != "" {
		t.Errorf("expected empty string, got %q", sub)
	}
}

func TestExtractSubject_MissingSub(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"broker-dev"}`))
	if sub := extractSubject("header." + payload + ".sig"); sub != "" {
		t.Errorf("expected empty string, got %q", sub)
	}
}

func TestExtractSubject_NoDotsInToken(t *testing.T) {
	if sub := extractSubject("plainstring"); sub != "" {
		t.Errorf("expected empty string, got %q", sub)
	}
}

func TestLegacyFallback_ExpiredCookieNoSecret(t *testing.T) {
	// With no secret configured, an expired cookie token fails validation
	// but the legacy fallback still extracts sub from the payload.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]interface{}{
		"sub": "legacy-user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	payload := base64.RawURLEncoding.EncodeToString(claims)
	token := header + "." + payload + "."

	req := httptest.NewRequest("GET", "/api/assistant/query", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})

	e := NewExtractor("", testCookie)
	id, ok := e.FromRequest(req)
	if !ok {
		t.Fatal("expected legacy fallback to extract sub from expired unsigned token")
	}
	if id.UserID != "legacy-user" {
		t.Errorf("expected UserID legacy-user, got %s", id.UserID)
	}
}

func TestLegacyFallback_DisabledWhenSecretSet(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]interface{}{
		"sub": "legacy-user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	payload := base64.RawURLEncoding.EncodeToString(claims)
	token := header + "." + payload + "."

	req := httptest.NewRequest("GET", "/api/assistant/query", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})

	e := NewExtractor("s3cret", testCookie)
	if _, ok := e.FromRequest(req); ok {
		t.Error("expected legacy fallback to be disabled when a secret is configured")
	}
}
