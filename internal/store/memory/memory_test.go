package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

func TestCreateUser_EmailConflictCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateUser(ctx, &core.User{Email: "ana@example.com", Name: "Ana"}); err != nil {
		t.Fatalf("CreateUser err: %v", err)
	}
	err := s.CreateUser(ctx, &core.User{Email: "ANA@example.com", Name: "Otra"})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("esperaba ErrConflict, got %v", err)
	}
}

func TestCreateAuthAccount_Uniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &core.User{Email: "ana@example.com", Name: "Ana"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	acc := &core.AuthAccount{UserID: u.ID, ProviderID: core.ProviderGoogle, AccountID: "sub-1"}
	if err := s.CreateAuthAccount(ctx, acc); err != nil {
		t.Fatal(err)
	}

	// mismo (user, provider)
	err := s.CreateAuthAccount(ctx, &core.AuthAccount{UserID: u.ID, ProviderID: core.ProviderGoogle, AccountID: "sub-2"})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicado (user,provider): esperaba ErrConflict, got %v", err)
	}

	// mismo (provider, account) con otro usuario
	v := &core.User{Email: "beto@example.com", Name: "Beto"}
	if err := s.CreateUser(ctx, v); err != nil {
		t.Fatal(err)
	}
	err = s.CreateAuthAccount(ctx, &core.AuthAccount{UserID: v.ID, ProviderID: core.ProviderGoogle, AccountID: "sub-1"})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicado (provider,account): esperaba ErrConflict, got %v", err)
	}

	got, err := s.GetAuthAccountByProvider(ctx, core.ProviderGoogle, "sub-1")
	if err != nil || got.UserID != u.ID {
		t.Fatalf("GetAuthAccountByProvider: got %+v err %v", got, err)
	}
}

func TestSessions_LifecycleAndExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &core.Session{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSessionByTokenHash(ctx, "h1"); err != nil {
		t.Fatalf("GetSessionByTokenHash err: %v", err)
	}

	// renovación rolling: expiry y updated_at avanzan
	newExp := now.Add(8 * time.Hour)
	if err := s.TouchSession(ctx, sess.ID, newExp, now.Add(time.Minute)); err != nil {
		t.Fatalf("TouchSession err: %v", err)
	}
	got, _ := s.GetSessionByTokenHash(ctx, "h1")
	if !got.ExpiresAt.Equal(newExp) {
		t.Fatalf("expiry no avanzó: %v", got.ExpiresAt)
	}

	// borrar inexistente no es error
	if err := s.DeleteSessionByTokenHash(ctx, "no-existe"); err != nil {
		t.Fatalf("delete idempotente falló: %v", err)
	}

	// purge: sólo las vencidas
	_ = s.CreateSession(ctx, &core.Session{UserID: "u1", TokenHash: "h2", ExpiresAt: now.Add(-time.Minute)})
	n, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions = %d, %v; want 1, nil", n, err)
	}

	// revocar todas las del usuario devuelve el conteo
	_ = s.CreateSession(ctx, &core.Session{UserID: "u1", TokenHash: "h3", ExpiresAt: now.Add(time.Hour)})
	n, err = s.DeleteSessionsByUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteSessionsByUser = %d, %v; want 2, nil", n, err)
	}
}

func TestConsumeVerificationToken_SingleUseAndExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	vt := &core.VerificationToken{UserID: "u1", Purpose: core.PurposeEmailVerify, TokenHash: "th", ExpiresAt: now.Add(time.Hour)}
	if err := s.CreateVerificationToken(ctx, vt); err != nil {
		t.Fatal(err)
	}

	got, err := s.ConsumeVerificationToken(ctx, core.PurposeEmailVerify, "th", now)
	if err != nil || got.UserID != "u1" {
		t.Fatalf("Consume: got %+v err %v", got, err)
	}
	// segundo consumo falla: single-use
	if _, err := s.ConsumeVerificationToken(ctx, core.PurposeEmailVerify, "th", now); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("reuso del token: esperaba ErrNotFound, got %v", err)
	}

	// expirado no se consume
	exp := &core.VerificationToken{UserID: "u1", Purpose: core.PurposePasswordReset, TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}
	_ = s.CreateVerificationToken(ctx, exp)
	if _, err := s.ConsumeVerificationToken(ctx, core.PurposePasswordReset, "old", now); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("token vencido: esperaba ErrNotFound, got %v", err)
	}
}

func TestUseBackupCode_SingleUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.InsertBackupCodes(ctx, "u1", []string{"hash-a", "hash-b"}); err != nil {
		t.Fatal(err)
	}

	ok, err := s.UseBackupCode(ctx, "u1", "hash-a", now)
	if err != nil || !ok {
		t.Fatalf("primer uso: ok=%v err=%v", ok, err)
	}
	ok, err = s.UseBackupCode(ctx, "u1", "hash-a", now)
	if err != nil || ok {
		t.Fatalf("segundo uso del mismo código: ok=%v err=%v, esperaba false", ok, err)
	}
	// el otro código sigue vivo
	if ok, _ := s.UseBackupCode(ctx, "u1", "hash-b", now); !ok {
		t.Fatal("código sin usar rechazado")
	}
	// código desconocido
	if ok, _ := s.UseBackupCode(ctx, "u1", "hash-z", now); ok {
		t.Fatal("código inexistente aceptado")
	}
}

func TestUpsertMFATOTP_ResetsConfirmation(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.UpsertMFATOTP(ctx, "u1", "enc-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.ConfirmMFATOTP(ctx, "u1", now); err != nil {
		t.Fatal(err)
	}
	m, _ := s.GetMFATOTP(ctx, "u1")
	if m.ConfirmedAt == nil {
		t.Fatal("ConfirmedAt nil tras confirmar")
	}

	// re-enroll: secreto nuevo, confirmación reseteada
	if err := s.UpsertMFATOTP(ctx, "u1", "enc-2"); err != nil {
		t.Fatal(err)
	}
	m, _ = s.GetMFATOTP(ctx, "u1")
	if m.SecretEncrypted != "enc-2" || m.ConfirmedAt != nil {
		t.Fatalf("re-enroll no reseteó: %+v", m)
	}

	if err := s.DisableMFATOTP(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMFATOTP(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("tras disable: esperaba ErrNotFound, got %v", err)
	}
}
