package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testProject = "trainer-test"

func TestVerifier_AcceptsValidIDToken(t *testing.T) {
	v, key := newTestVerifier(t)
	tok := signIDToken(t, key, "test-key", jwt.MapClaims{
		"email": "Rep@Example.com",
		"name":  "Rep",
		"admin": true,
	})

	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "uid-1" || id.Email != "rep@example.com" || !id.Admin {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifier_RejectsWrongAudience(t *testing.T) {
	v, key := newTestVerifier(t)
	tok := signIDToken(t, key, "test-key", jwt.MapClaims{"aud": "other-project"})
	if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestVerifier_RejectsUnknownKey(t *testing.T) {
	v, _ := newTestVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	tok := signIDToken(t, other, "unknown", nil)
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("expected rejection for unknown kid")
	}
}

func TestIdentityToolkit_DeleteAccount(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if strings.Contains(gotBody, "missing") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"USER_NOT_FOUND"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := NewIdentityToolkit(testProject, "admin-token").WithBaseURL(srv.URL)
	if err := c.DeleteAccount(context.Background(), "uid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotPath != "/v1/projects/"+testProject+"/accounts:delete" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer admin-token" || !strings.Contains(gotBody, `"localId":"uid-1"`) {
		t.Fatalf("unexpected request auth=%q body=%q", gotAuth, gotBody)
	}
	if err := c.DeleteAccount(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	jwks := newJWKS(key, "test-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	v, err := NewVerifier(testProject, server.URL)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return v, key
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, kid string, extra jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "https://securetoken.google.com/" + testProject,
		"aud": testProject,
		"sub": "uid-1",
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

type jwksPayload struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKS(key *rsa.PrivateKey, kid string) jwksPayload {
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	return jwksPayload{Keys: []jwk{{Kty: "RSA", Kid: kid, Use: "sig", Alg: "RS256", N: n, E: e}}}
}
