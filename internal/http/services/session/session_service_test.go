package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/centavo/internal/security/tokens"
	"github.com/dropDatabas3/centavo/internal/store/core"
	"github.com/dropDatabas3/centavo/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *core.User, *fakeClock) {
	t.Helper()
	repo := memory.New()
	u := &core.User{Email: "ana@example.com", Name: "Ana"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(repo, 7*24*time.Hour, 24*time.Hour).WithClock(clock.Now)
	return svc, repo, u, clock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestIssueAndResolve(t *testing.T) {
	svc, _, u, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, u.ID, "10.0.0.1", "test-agent", "credential")
	if err != nil {
		t.Fatalf("Issue err: %v", err)
	}
	if issued.Token == "" || issued.Session.TokenHash == issued.Token {
		t.Fatal("el token crudo no puede coincidir con el hash persistido")
	}

	sess, user, renewed, err := svc.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if renewed {
		t.Fatal("sesión recién emitida no debería renovarse")
	}
	if sess.ID != issued.Session.ID || user.ID != u.ID {
		t.Fatalf("Resolve devolvió otra sesión/usuario: %+v %+v", sess, user)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, _, _, err := svc.Resolve(context.Background(), "token-inventado"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("esperaba ErrNoSession, got %v", err)
	}
	if _, _, _, err := svc.Resolve(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("token vacío: esperaba ErrNoSession, got %v", err)
	}
}

func TestResolve_RollingRenewal(t *testing.T) {
	svc, _, u, clock := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, u.ID, "", "", "credential")
	if err != nil {
		t.Fatal(err)
	}
	originalExpiry := issued.Session.ExpiresAt

	// antes del umbral: sin renovación
	clock.Advance(23 * time.Hour)
	_, _, renewed, err := svc.Resolve(ctx, issued.Token)
	if err != nil || renewed {
		t.Fatalf("antes del umbral: renewed=%v err=%v", renewed, err)
	}

	// pasado el umbral: mismo token, expiry extendido
	clock.Advance(2 * time.Hour)
	sess, _, renewed, err := svc.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatal(err)
	}
	if !renewed {
		t.Fatal("pasado el umbral debería renovar")
	}
	if !sess.ExpiresAt.After(originalExpiry) {
		t.Fatalf("expiry no se extendió: %v <= %v", sess.ExpiresAt, originalExpiry)
	}
	if sess.ID != issued.Session.ID {
		t.Fatal("la renovación no debe rotar la sesión")
	}

	// la renovación resetea el umbral: un resolve inmediato no renueva de nuevo
	_, _, renewed, err = svc.Resolve(ctx, issued.Token)
	if err != nil || renewed {
		t.Fatalf("resolve inmediato tras renovar: renewed=%v err=%v", renewed, err)
	}
}

func TestResolve_ExpiredSessionIsDeleted(t *testing.T) {
	svc, repo, u, clock := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, u.ID, "", "", "credential")
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(7*24*time.Hour + time.Minute)
	if _, _, _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("sesión vencida: esperaba ErrNoSession, got %v", err)
	}
	// limpieza perezosa: la fila ya no existe
	if _, err := repo.GetSessionByTokenHash(ctx, issued.Session.TokenHash); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("la sesión vencida debería haberse borrado, got %v", err)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	svc, _, u, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, u.ID, "", "", "credential")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke err: %v", err)
	}
	if _, _, _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("sesión revocada sigue resolviendo: %v", err)
	}
	// segunda revocación no es error
	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke repetido err: %v", err)
	}
}

func TestRevokeAll_CountsSessions(t *testing.T) {
	svc, _, u, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Issue(ctx, u.ID, "", "", "credential"); err != nil {
			t.Fatal(err)
		}
	}
	n, err := svc.RevokeAll(ctx, u.ID, "reset")
	if err != nil || n != 3 {
		t.Fatalf("RevokeAll = %d, %v; want 3, nil", n, err)
	}
	sessions, _ := svc.List(ctx, u.ID)
	if len(sessions) != 0 {
		t.Fatalf("quedaron %d sesiones tras RevokeAll", len(sessions))
	}
}

func TestResolve_UserDeleted(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	// sesión viva cuyo usuario ya no existe
	raw := "token-huerfano"
	orphan := &core.Session{
		UserID:    "fantasma",
		TokenHash: tokens.SHA256Base64URL(raw),
		ExpiresAt: clock.Now().Add(time.Hour),
		UpdatedAt: clock.Now(),
	}
	if err := repo.CreateSession(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := svc.Resolve(ctx, raw); !errors.Is(err, ErrNoSession) {
		t.Fatalf("sesión huérfana: esperaba ErrNoSession, got %v", err)
	}
	// y se revocó en el camino
	if _, err := repo.GetSessionByTokenHash(ctx, orphan.TokenHash); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("la sesión huérfana debería haberse borrado, got %v", err)
	}
}
