package social

import (
	"strings"
	"testing"
	"time"
)

func TestStateSigner_RoundTrip(t *testing.T) {
	signer := NewStateSigner([]byte("clave-de-firma-para-tests"), 5*time.Minute)

	state, err := signer.Sign("google", "nonce-123")
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}
	provider, nonce, err := signer.Parse(state)
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if provider != "google" || nonce != "nonce-123" {
		t.Fatalf("claims corruptos: provider=%q nonce=%q", provider, nonce)
	}
}

func TestStateSigner_RejectsExpired(t *testing.T) {
	signer := NewStateSigner([]byte("clave-de-firma-para-tests"), -time.Minute)

	state, err := signer.Sign("google", "nonce-123")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := signer.Parse(state); err == nil {
		t.Fatal("un state expirado tiene que rechazarse")
	}
}

func TestStateSigner_RejectsTamper(t *testing.T) {
	signer := NewStateSigner([]byte("clave-de-firma-para-tests"), 5*time.Minute)

	state, err := signer.Sign("google", "nonce-123")
	if err != nil {
		t.Fatal(err)
	}

	// pisamos un byte de la firma
	parts := strings.Split(state, ".")
	if len(parts) != 3 {
		t.Fatalf("JWT con %d partes", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, _, err := signer.Parse(tampered); err == nil {
		t.Fatal("una firma adulterada tiene que rechazarse")
	}
}

func TestStateSigner_RejectsWrongKey(t *testing.T) {
	a := NewStateSigner([]byte("clave-a"), 5*time.Minute)
	b := NewStateSigner([]byte("clave-b"), 5*time.Minute)

	state, err := a.Sign("github", "nonce-xyz")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.Parse(state); err == nil {
		t.Fatal("un state firmado con otra clave tiene que rechazarse")
	}
}
