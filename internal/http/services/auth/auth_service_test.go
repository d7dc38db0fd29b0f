package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/centavo/internal/cache"
	"github.com/dropDatabas3/centavo/internal/email"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/security/password"
	"github.com/dropDatabas3/centavo/internal/store/core"
	"github.com/dropDatabas3/centavo/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	mailer := email.NewMailer(email.NopSender{}, "http://localhost:3000", "Centavo")
	svc := NewService(repo, cache.NewMemory("test:"), mailer, Config{
		PasswordPolicy: password.Policy{MinLength: 8},
		VerifyTTL:      48 * time.Hour,
		ResetTTL:       time.Hour,
		ChallengeTTL:   5 * time.Minute,
		EchoLinks:      true,
	})
	return svc, repo
}

// appCode extrae el código del AppError; vacío si no lo es.
func appCode(err error) string {
	var appErr *httperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link inválido %q: %v", link, err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("link sin token: %q", link)
	}
	return tok
}

func TestSignup_HappyPath(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, " Ana@Example.COM ", "Ana", "superSecreta1")
	if err != nil {
		t.Fatalf("Signup err: %v", err)
	}
	if res.User.Email != "ana@example.com" {
		t.Fatalf("email sin normalizar: %q", res.User.Email)
	}
	if res.User.EmailVerified {
		t.Fatal("el email arranca sin verificar")
	}
	if res.VerifyLink == "" {
		t.Fatal("EchoLinks activo pero sin link de verificación")
	}

	// la credencial quedó creada y verifica
	_, acc, err := repo.GetCredentialByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetCredentialByEmail err: %v", err)
	}
	if acc.PasswordHash == nil || !password.Verify("superSecreta1", *acc.PasswordHash) {
		t.Fatal("password hash no verifica")
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name         string
		email, n, pw string
		wantCode     string
	}{
		{"email inválido", "no-es-email", "Ana", "superSecreta1", "INVALID_FORMAT"},
		{"sin nombre", "ana@example.com", "  ", "superSecreta1", "MISSING_FIELDS"},
		{"password corta", "ana@example.com", "Ana", "corta", "PASSWORD_TOO_WEAK"},
	}
	for _, c := range cases {
		_, err := svc.Signup(ctx, c.email, c.n, c.pw)
		if appCode(err) != c.wantCode {
			t.Fatalf("%s: got %v, want code %s", c.name, err, c.wantCode)
		}
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Signup(ctx, "ANA@example.com", "Ana2", "superSecreta1")
	if appCode(err) != "EMAIL_ALREADY_IN_USE" {
		t.Fatalf("esperaba EMAIL_ALREADY_IN_USE, got %v", err)
	}
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1")
	if err != nil {
		t.Fatal(err)
	}
	token := tokenFromLink(t, res.VerifyLink)

	if err := svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail err: %v", err)
	}
	u, _ := repo.GetUserByEmail(ctx, "ana@example.com")
	if !u.EmailVerified {
		t.Fatal("EmailVerified sigue en false")
	}

	// el token se gastó
	err = svc.VerifyEmail(ctx, token)
	if appCode(err) != "TOKEN_INVALID" {
		t.Fatalf("reuso del token: esperaba TOKEN_INVALID, got %v", err)
	}
}

func TestSignin_UniformInvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1"); err != nil {
		t.Fatal(err)
	}

	// email inexistente y password incorrecta devuelven el MISMO error
	_, errUnknown := svc.Signin(ctx, "nadie@example.com", "superSecreta1")
	_, errWrongPw := svc.Signin(ctx, "ana@example.com", "incorrecta!")

	for _, err := range []error{errUnknown, errWrongPw} {
		if appCode(err) != "INVALID_CREDENTIALS" {
			t.Fatalf("esperaba INVALID_CREDENTIALS, got %v", err)
		}
	}

	res, err := svc.Signin(ctx, "ana@example.com", "superSecreta1")
	if err != nil {
		t.Fatalf("Signin válido err: %v", err)
	}
	if res.MFARequired {
		t.Fatal("MFA requerido sin 2FA activo")
	}
}

func TestSignin_MFABranchAndChallenge(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SetTwoFactorEnabled(ctx, res.User.ID, true); err != nil {
		t.Fatal(err)
	}

	signin, err := svc.Signin(ctx, "ana@example.com", "superSecreta1")
	if err != nil {
		t.Fatalf("Signin err: %v", err)
	}
	if !signin.MFARequired || signin.ChallengeToken == "" {
		t.Fatalf("esperaba desafío MFA, got %+v", signin)
	}

	userID, err := svc.ConsumeChallenge(ctx, signin.ChallengeToken)
	if err != nil || userID != res.User.ID {
		t.Fatalf("ConsumeChallenge = %q, %v; want %q, nil", userID, err, res.User.ID)
	}

	// el desafío es de un solo uso
	_, err = svc.ConsumeChallenge(ctx, signin.ChallengeToken)
	if appCode(err) != "MFA_CHALLENGE_EXPIRED" {
		t.Fatalf("reuso del desafío: esperaba MFA_CHALLENGE_EXPIRED, got %v", err)
	}
}

func TestForgotReset_FullFlow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1")
	if err != nil {
		t.Fatal(err)
	}

	// email desconocido: misma respuesta, sin error
	unknown, err := svc.Forgot(ctx, "nadie@example.com")
	if err != nil || unknown.ResetLink != "" {
		t.Fatalf("forgot desconocido: %+v, %v", unknown, err)
	}

	forgot, err := svc.Forgot(ctx, "ana@example.com")
	if err != nil || forgot.ResetLink == "" {
		t.Fatalf("Forgot err: %v link=%q", err, forgot.ResetLink)
	}
	token := tokenFromLink(t, forgot.ResetLink)

	// password débil rechazada sin gastar el token
	if _, err := svc.Reset(ctx, token, "corta"); err == nil {
		t.Fatal("password débil aceptada en reset")
	}

	userID, err := svc.Reset(ctx, token, "otraSecreta22")
	if err != nil || userID != res.User.ID {
		t.Fatalf("Reset = %q, %v", userID, err)
	}

	// credencial actualizada
	_, acc, _ := repo.GetCredentialByEmail(ctx, "ana@example.com")
	if !password.Verify("otraSecreta22", *acc.PasswordHash) {
		t.Fatal("la password nueva no verifica")
	}
	if password.Verify("superSecreta1", *acc.PasswordHash) {
		t.Fatal("la password vieja sigue verificando")
	}

	// token de un solo uso
	if _, err := svc.Reset(ctx, token, "terceraSecreta33"); err == nil {
		t.Fatal("token de reset reutilizado")
	}
}

func TestForgot_NewRequestInvalidatesPrevious(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1"); err != nil {
		t.Fatal(err)
	}

	first, _ := svc.Forgot(ctx, "ana@example.com")
	second, _ := svc.Forgot(ctx, "ana@example.com")

	if _, err := svc.Reset(ctx, tokenFromLink(t, first.ResetLink), "otraSecreta22"); err == nil {
		t.Fatal("el primer token debería estar invalidado por el segundo pedido")
	}
	if _, err := svc.Reset(ctx, tokenFromLink(t, second.ResetLink), "otraSecreta22"); err != nil {
		t.Fatalf("el token vigente falló: %v", err)
	}
}

func TestReset_SocialOnlyUserGetsCredential(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// usuario provisionado por un provider social, sin credencial
	u := &core.User{Email: "ana@example.com", Name: "Ana", EmailVerified: true}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateAuthAccount(ctx, &core.AuthAccount{UserID: u.ID, ProviderID: core.ProviderGoogle, AccountID: "sub-1"}); err != nil {
		t.Fatal(err)
	}

	forgot, err := svc.Forgot(ctx, "ana@example.com")
	if err != nil || forgot.ResetLink == "" {
		t.Fatalf("Forgot err: %v", err)
	}
	if _, err := svc.Reset(ctx, tokenFromLink(t, forgot.ResetLink), "nuevaSecreta11"); err != nil {
		t.Fatalf("Reset err: %v", err)
	}

	// ahora puede entrar con email+password
	res, err := svc.Signin(ctx, "ana@example.com", "nuevaSecreta11")
	if err != nil {
		t.Fatalf("Signin post-reset err: %v", err)
	}
	if res.User.ID != u.ID {
		t.Fatal("signin devolvió otro usuario")
	}
}

func TestResendVerification_UniformResponse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "ana@example.com", "Ana", "superSecreta1")
	if err != nil {
		t.Fatal(err)
	}

	// sin verificar: reemite
	link, err := svc.ResendVerification(ctx, "ana@example.com")
	if err != nil || link == "" {
		t.Fatalf("ResendVerification = %q, %v", link, err)
	}
	// el token nuevo funciona
	if err := svc.VerifyEmail(ctx, tokenFromLink(t, link)); err != nil {
		t.Fatalf("VerifyEmail con token reemitido: %v", err)
	}

	// ya verificado: no hace nada, misma respuesta
	link, err = svc.ResendVerification(ctx, "ana@example.com")
	if err != nil || link != "" {
		t.Fatalf("reenvío con email verificado: %q, %v", link, err)
	}
	// desconocido: ídem
	link, err = svc.ResendVerification(ctx, "nadie@example.com")
	if err != nil || link != "" {
		t.Fatalf("reenvío con email desconocido: %q, %v", link, err)
	}
	_ = res
}
