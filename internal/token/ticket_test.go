package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTicketSigner_SignAndVerify(t *testing.T) {
	signer := NewTicketSigner("test-secret")
	issuedOn := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	signer.now = func() time.Time { return issuedOn }

	ticket, err := signer.Sign("ravihospital", "token-1", issuedOn)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	claims, err := signer.Verify(ticket)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Tenant != "ravihospital" {
		t.Errorf("tenant = %q, want %q", claims.Tenant, "ravihospital")
	}
	if claims.TokenID != "token-1" {
		t.Errorf("token_id = %q, want %q", claims.TokenID, "token-1")
	}

	wantExp := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	if !claims.ExpiresAt.Time.Equal(wantExp) {
		t.Errorf("exp = %v, want %v", claims.ExpiresAt.Time, wantExp)
	}
}

func TestTicketSigner_Verify_Expired(t *testing.T) {
	signer := NewTicketSigner("test-secret")
	issuedOn := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	signer.now = func() time.Time { return issuedOn }

	ticket, err := signer.Sign("ravihospital", "token-1", issuedOn)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	signer.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 1, 0, time.UTC) }
	if _, err := signer.Verify(ticket); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Verify() error = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketSigner_Verify_WrongSecret(t *testing.T) {
	ticket, err := NewTicketSigner("secret-a").Sign("ravihospital", "token-1", time.Now())
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := NewTicketSigner("secret-b").Verify(ticket); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Verify() error = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketSigner_Verify_RejectsOtherAlgorithms(t *testing.T) {
	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Tenant:           "ravihospital",
		TokenID:          "token-1",
	}
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned ticket: %v", err)
	}

	if _, err := NewTicketSigner("test-secret").Verify(ticket); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Verify() error = %v, want ErrInvalidTicket", err)
	}
}

func TestTicketSigner_Verify_Garbage(t *testing.T) {
	if _, err := NewTicketSigner("test-secret").Verify("not-a-jwt"); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Verify() error = %v, want ErrInvalidTicket", err)
	}
}
