package auth

import (
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(42, []string{"admin"}, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected 42, got %d", claims.UserID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(1, nil, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	_, err = VerifyToken(tok, TokenConfig{Secret: "wrong", Expiry: time.Hour, Issuer: "test"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateToken_InvalidExpiry(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: -time.Second, Issuer: "test"}
	_, err := CreateToken(1, nil, cfg)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestPeekExpiry(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(1, nil, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	exp, ok := PeekExpiry(tok)
	if !ok {
		t.Fatalf("expected expiry")
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Minute {
		t.Fatalf("unexpected expiry in %v", d)
	}

	if _, ok := PeekExpiry("opaque-token"); ok {
		t.Fatalf("opaque token must report no expiry")
	}
}
