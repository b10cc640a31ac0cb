package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func newJWKSServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		resp := JWKSResponse{Keys: []JWKSKey{
			{Kty: "EC", Kid: "ignored"},
			{
				Kty: "RSA",
				Kid: kid,
				Use: "sig",
				Alg: "RS256",
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}

func TestJWKSCache_GetKey(t *testing.T) {
	key := generateKey(t)
	var hits int32
	srv := newJWKSServer(t, "k1", &key.PublicKey, &hits)

	cache := NewJWKSCache(srv.URL, time.Hour)
	got, err := cache.GetKey("k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(key.PublicKey.N) != 0 || got.E != key.PublicKey.E {
		t.Error("fetched key does not match")
	}

	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected cached key to avoid refetch, got %d fetches", n)
	}

	if _, err := cache.GetKey("missing"); err == nil {
		t.Error("expected error for unknown kid")
	}
	if _, err := cache.GetKey("ignored"); err == nil {
		t.Error("non-RSA keys must be skipped")
	}
}

func TestJWKSCache_EndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewJWKSCache(srv.URL, time.Hour).GetKey("k1"); err == nil {
		t.Error("expected error from failing endpoint")
	}
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(t, "k1", &key.PublicKey, nil)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "inst-7",
		Issuer:    "https://idp.example",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL, Issuer: "https://idp.example"})

	var got string
	err = runMiddleware(t, mw, "Bearer "+signed, func(c echo.Context) error {
		got = UserIDFromContext(c.Request().Context())
		return ok(c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "inst-7" {
		t.Errorf("expected principal inst-7, got %q", got)
	}

	delete(token.Header, "kid")
	noKid, _ := token.SignedString(key)
	expectStatus(t, runMiddleware(t, mw, "Bearer "+noKid, ok), http.StatusUnauthorized)
}
