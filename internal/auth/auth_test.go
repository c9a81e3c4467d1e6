package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func buildToken(t *testing.T, secret string, claims map[string]any, sign bool) string {
	t.Helper()
	header := encodeSegment(t, map[string]any{"alg": "HS256", "typ": "JWT"})
	payload := encodeSegment(t, claims)
	signingInput := header + "." + payload
	if !sign {
		return signingInput + ".bad"
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signingInput + "." + sig
}

func TestServiceTrustModeIgnoresSignature(t *testing.T) {
	svc := NewService(Config{Mode: ModeTrust})
	token := buildToken(t, "irrelevant", map[string]any{"sub": "user-1"}, false)

	result := svc.Authenticate(token)
	if !result.Authenticated || result.UserID != "user-1" {
		t.Fatalf("expected authenticated user-1, got %+v", result)
	}
}

func TestServiceTrustModeCustomClaimsPath(t *testing.T) {
	svc := NewService(Config{Mode: ModeTrust, ClaimsPath: "identity.user_id"})
	token := buildToken(t, "irrelevant", map[string]any{
		"identity": map[string]any{"user_id": "nested-1"},
	}, false)

	result := svc.Authenticate(token)
	if !result.Authenticated || result.UserID != "nested-1" {
		t.Fatalf("expected nested-1, got %+v", result)
	}
}

func TestServiceVerifyModeRejectsBadSignature(t *testing.T) {
	svc := NewService(Config{Mode: ModeVerify, SigningKey: "secret"})
	token := buildToken(t, "wrong-secret", map[string]any{"sub": "user-1"}, true)

	result := svc.Authenticate(token)
	if result.Authenticated {
		t.Fatalf("expected rejection on signature mismatch")
	}
}

func TestServiceVerifyModeAcceptsValidSignature(t *testing.T) {
	svc := NewService(Config{Mode: ModeVerify, SigningKey: "secret"})
	token := buildToken(t, "secret", map[string]any{"sub": "user-1"}, true)

	result := svc.Authenticate(token)
	if !result.Authenticated || result.UserID != "user-1" {
		t.Fatalf("expected authenticated user-1, got %+v", result)
	}
}

func TestServiceNeverRaisesOnMalformedToken(t *testing.T) {
	svc := NewService(Config{Mode: ModeTrust})

	result := svc.Authenticate("not-a-jwt")
	if result.Authenticated {
		t.Fatalf("expected unauthenticated result")
	}
	if result.Error == "" {
		t.Fatalf("expected an error message")
	}
}

func TestTokenFromRequestHeaderWinsOverQuery(t *testing.T) {
	req := httptest.NewRequest("POST", "/agent-api/chat?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	if got := TokenFromRequest(req); got != "header-token" {
		t.Fatalf("expected header-token, got %q", got)
	}
}

func TestTokenFromRequestFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest("POST", "/agent-api/chat?token=query-token", nil)

	if got := TokenFromRequest(req); got != "query-token" {
		t.Fatalf("expected query-token, got %q", got)
	}
}

func TestValidateAdminRejectsWhenNoKeyConfigured(t *testing.T) {
	svc := NewService(Config{})

	if err := svc.ValidateAdmin("anything"); err != ErrNoAdminKey {
		t.Fatalf("expected ErrNoAdminKey, got %v", err)
	}
}

func TestValidateAdminConstantTimeCompare(t *testing.T) {
	svc := NewService(Config{AdminKey: "topsecret"})

	if err := svc.ValidateAdmin("topsecret"); err != nil {
		t.Fatalf("expected valid admin key, got %v", err)
	}
	if err := svc.ValidateAdmin("wrong"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
