package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBasic_DefaultHeader(t *testing.T) {
	h, v, err := Acquire(context.Background(), Config{Type: "basic", Config: map[string]any{
		"username": "alice",
		"password": "secret",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != "Authorization" {
		t.Fatalf("expected Authorization header, got %q", h)
	}
	if v != "Basic YWxpY2U6c2VjcmV0" {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestBasic_MissingCredentials_Error(t *testing.T) {
	cases := []map[string]any{
		{"username": "", "password": "x"},
		{"username": "x", "password": ""},
	}
	for i, spec := range cases {
		_, _, err := Acquire(context.Background(), Config{Type: "basic", Config: spec})
		if err == nil || !strings.Contains(err.Error(), "basic:") {
			t.Fatalf("case %d: expected basic error, got %v", i, err)
		}
	}
}

func TestBearer_CustomHeader(t *testing.T) {
	h, v, err := Acquire(context.Background(), Config{Type: " Bearer ", Config: map[string]any{
		"token":  "abc",
		"header": "X-Parser-Auth",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != "X-Parser-Auth" || v != "Bearer abc" {
		t.Fatalf("got %q=%q", h, v)
	}
}

func TestUnsupportedProvider(t *testing.T) {
	if _, _, err := Acquire(context.Background(), Config{Type: "kerberos"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if HasProvider("kerberos") {
		t.Fatal("kerberos should not be registered")
	}
	for _, typ := range []string{"basic", "bearer", "oauth2", "jwt"} {
		if !HasProvider(typ) {
			t.Fatalf("%s should be registered", typ)
		}
	}
	if (Config{}).Enabled() {
		t.Fatal("empty config should be disabled")
	}
}

func TestOAuth2_ClientCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("client_id") != "smoke" || r.Form.Get("client_secret") != "s3cr3t" {
			t.Errorf("unexpected client credentials: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	h, v, err := Acquire(context.Background(), Config{Type: "oauth2", Config: map[string]any{
		"client_id":     "smoke",
		"client_secret": "s3cr3t",
		"token_url":     srv.URL,
		"scopes":        []string{"replays:read"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != "Authorization" || v != "Bearer tok-123" {
		t.Fatalf("got %q=%q", h, v)
	}
}

func TestOAuth2_MissingTokenURL(t *testing.T) {
	_, _, err := Acquire(context.Background(), Config{Type: "oauth2", Config: map[string]any{
		"client_id":     "a",
		"client_secret": "b",
	}})
	if err == nil || !strings.Contains(err.Error(), "token_url") {
		t.Fatalf("expected token_url error, got %v", err)
	}
}

func TestJWT_IssueAndVerify(t *testing.T) {
	cfg := JWTConfig{Secret: "k", Subject: "s3smoke", Issuer: "ci", TTLSeconds: 60, Custom: map[string]any{"role": "reader"}}
	now := time.Now()
	raw, err := cfg.Issue(now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte("k"), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		t.Fatalf("verify: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["sub"] != "s3smoke" || claims["iss"] != "ci" || claims["role"] != "reader" {
		t.Fatalf("unexpected claims: %v", claims)
	}
	if exp, _ := claims.GetExpirationTime(); exp == nil || exp.Unix() != now.Unix()+60 {
		t.Fatalf("unexpected exp: %v", exp)
	}

	_, v, err := Acquire(context.Background(), Config{Type: "jwt", Config: map[string]any{"secret": "k"}})
	if err != nil || !strings.HasPrefix(v, "Bearer ") {
		t.Fatalf("acquire: %q %v", v, err)
	}
}

func TestJWT_MissingSecret(t *testing.T) {
	if _, err := (JWTConfig{}).Issue(time.Now()); err == nil {
		t.Fatal("expected error without secret")
	}
}
