// Package auth implementa signup/signin por credenciales y los flujos de
// email (verificación de cuenta, forgot/reset de contraseña).
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/centavo/internal/audit"
	"github.com/dropDatabas3/centavo/internal/cache"
	"github.com/dropDatabas3/centavo/internal/email"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/metrics"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
	"github.com/dropDatabas3/centavo/internal/security/password"
	"github.com/dropDatabas3/centavo/internal/security/tokens"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

// challengeKeyPrefix es el namespace en cache para desafíos 2FA pendientes.
const challengeKeyPrefix = "mfa:challenge:"

// dummyPHC se usa para igualar el costo de un signin con email inexistente
// al de uno con password incorrecta. Nunca verifica.
const dummyPHC = "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type Config struct {
	PasswordPolicy password.Policy
	VerifyTTL      time.Duration
	ResetTTL       time.Duration
	ChallengeTTL   time.Duration
	// EchoLinks devuelve los links de verify/reset en la respuesta HTTP además
	// de (o en lugar de) mandarlos por mail. Sólo dev; Load() lo fuerza a
	// false en prod.
	EchoLinks bool
}

type Service struct {
	repo   core.Repository
	cache  cache.Client
	mailer *email.Mailer
	cfg    Config
	now    func() time.Time
}

func NewService(repo core.Repository, c cache.Client, mailer *email.Mailer, cfg Config) *Service {
	return &Service{
		repo:   repo,
		cache:  c,
		mailer: mailer,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj. Sólo para tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NormalizeEmail baja a minúsculas y recorta espacios. Toda comparación de
// emails en el sistema pasa por acá.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func validEmail(e string) bool {
	if e == "" || len(e) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(e)
	return err == nil && addr.Address == e
}

// SignupResult incluye el link de verificación sólo cuando EchoLinks está activo.
type SignupResult struct {
	User       *core.User
	VerifyLink string
}

// Signup da de alta un usuario con credencial email+password. El email queda
// sin verificar hasta que el flujo de verificación se complete.
func (s *Service) Signup(ctx context.Context, emailAddr, name, plainPassword string) (*SignupResult, error) {
	emailAddr = NormalizeEmail(emailAddr)
	if !validEmail(emailAddr) {
		return nil, httperrors.ErrInvalidFormat.WithDetail("email inválido")
	}
	if name = strings.TrimSpace(name); name == "" {
		return nil, httperrors.ErrMissingFields.WithDetail("name es requerido")
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(plainPassword); !ok {
		return nil, httperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, "; "))
	}

	phc, err := password.Hash(password.Default, plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &core.User{Email: emailAddr, Name: name}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, httperrors.ErrEmailAlreadyInUse
		}
		return nil, err
	}

	acc := &core.AuthAccount{
		UserID:       u.ID,
		ProviderID:   core.ProviderCredential,
		AccountID:    u.ID,
		PasswordHash: &phc,
	}
	if err := s.repo.CreateAuthAccount(ctx, acc); err != nil {
		return nil, err
	}

	metrics.SignupsTotal.Inc()
	audit.Event(ctx, "signup", u.ID)
	logger.From(ctx).Info("user signed up",
		logger.Op("auth.signup"),
		logger.UserID(u.ID),
	)

	link, err := s.sendVerification(ctx, u)
	if err != nil {
		// El alta ya está hecha; un mail caído no la revierte. El usuario
		// puede pedir reenvío.
		logger.From(ctx).Warn("verification email failed",
			logger.Op("auth.signup"),
			logger.UserID(u.ID),
			logger.Err(err),
		)
	}

	res := &SignupResult{User: u}
	if s.cfg.EchoLinks {
		res.VerifyLink = link
	}
	return res, nil
}

func (s *Service) sendVerification(ctx context.Context, u *core.User) (string, error) {
	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	now := s.now()
	vt := &core.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Purpose:   core.PurposeEmailVerify,
		TokenHash: tokens.SHA256Base64URL(token),
		ExpiresAt: now.Add(s.cfg.VerifyTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateVerificationToken(ctx, vt); err != nil {
		return "", err
	}
	if err := s.mailer.SendVerification(u.Email, token, s.cfg.VerifyTTL); err != nil {
		return s.mailer.VerifyLink(token), err
	}
	return s.mailer.VerifyLink(token), nil
}

// ResendVerification emite un token nuevo para un usuario aún sin verificar.
// Para emails desconocidos o ya verificados no hace nada y no devuelve error:
// la respuesta es idéntica en todos los casos.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) (string, error) {
	emailAddr = NormalizeEmail(emailAddr)
	u, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil || u.EmailVerified {
		return "", nil
	}
	_ = s.repo.DeleteVerificationTokens(ctx, u.ID, core.PurposeEmailVerify)
	link, err := s.sendVerification(ctx, u)
	if err != nil {
		return "", nil
	}
	if s.cfg.EchoLinks {
		return link, nil
	}
	return "", nil
}

// VerifyEmail consume un token de verificación (single-use) y marca el email.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return httperrors.ErrMissingFields.WithDetail("token es requerido")
	}
	vt, err := s.repo.ConsumeVerificationToken(ctx, core.PurposeEmailVerify, tokens.SHA256Base64URL(token), s.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return httperrors.ErrTokenInvalid
		}
		return err
	}
	if err := s.repo.SetEmailVerified(ctx, vt.UserID, true); err != nil {
		return err
	}
	logger.From(ctx).Info("email verified",
		logger.Op("auth.verify_email"),
		logger.UserID(vt.UserID),
	)
	return nil
}

// SigninResult distingue el caso 2FA: cuando MFARequired es true no hay sesión
// todavía, el cliente tiene que completar el desafío con el segundo factor.
type SigninResult struct {
	User           *core.User
	MFARequired    bool
	ChallengeToken string
}

// Signin valida credenciales. Cualquier fallo (email inexistente, password
// incorrecta, cuenta sin credencial) devuelve el mismo ErrInvalidCredentials;
// el costo del camino con email inexistente se iguala con un verify dummy.
func (s *Service) Signin(ctx context.Context, emailAddr, plainPassword string) (*SigninResult, error) {
	emailAddr = NormalizeEmail(emailAddr)
	if emailAddr == "" || plainPassword == "" {
		return nil, httperrors.ErrInvalidCredentials
	}

	u, acc, err := s.repo.GetCredentialByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			password.Verify(plainPassword, dummyPHC)
			metrics.SigninAttempts.WithLabelValues("invalid").Inc()
			return nil, httperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if acc.PasswordHash == nil || !password.Verify(plainPassword, *acc.PasswordHash) {
		metrics.SigninAttempts.WithLabelValues("invalid").Inc()
		audit.Event(ctx, "signin_failed", u.ID)
		return nil, httperrors.ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		token, err := s.IssueChallenge(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		metrics.SigninAttempts.WithLabelValues("mfa_required").Inc()
		return &SigninResult{User: u, MFARequired: true, ChallengeToken: token}, nil
	}

	metrics.SigninAttempts.WithLabelValues("ok").Inc()
	audit.Event(ctx, "signin", u.ID)
	return &SigninResult{User: u}, nil
}

// IssueChallenge deja en cache un desafío 2FA pendiente con TTL corto.
// Se guarda el hash del token, nunca el token.
func (s *Service) IssueChallenge(ctx context.Context, userID string) (string, error) {
	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	key := challengeKeyPrefix + tokens.SHA256Base64URL(token)
	if err := s.cache.Set(ctx, key, []byte(userID), s.cfg.ChallengeTTL); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeChallenge resuelve y elimina un desafío pendiente (single-use).
// Devuelve el userID dueño del desafío.
func (s *Service) ConsumeChallenge(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", httperrors.ErrMFAChallengeExpired
	}
	key := challengeKeyPrefix + tokens.SHA256Base64URL(token)
	b, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", httperrors.ErrMFAChallengeExpired
		}
		return "", err
	}
	// Borrar antes de validar el código: un desafío se gasta con el intento.
	_ = s.cache.Delete(ctx, key)
	return string(b), nil
}

// ForgotResult incluye el link de reset sólo cuando EchoLinks está activo.
type ForgotResult struct {
	ResetLink string
}

// Forgot arranca el flujo de reset. Para emails desconocidos responde igual
// que para conocidos: el atacante no aprende qué cuentas existen.
func (s *Service) Forgot(ctx context.Context, emailAddr string) (*ForgotResult, error) {
	emailAddr = NormalizeEmail(emailAddr)
	res := &ForgotResult{}

	u, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return res, nil
		}
		return nil, err
	}

	// Un pedido nuevo invalida los tokens de reset anteriores.
	_ = s.repo.DeleteVerificationTokens(ctx, u.ID, core.PurposePasswordReset)

	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	now := s.now()
	vt := &core.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Purpose:   core.PurposePasswordReset,
		TokenHash: tokens.SHA256Base64URL(token),
		ExpiresAt: now.Add(s.cfg.ResetTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateVerificationToken(ctx, vt); err != nil {
		return nil, err
	}
	if err := s.mailer.SendPasswordReset(u.Email, token, s.cfg.ResetTTL); err != nil {
		logger.From(ctx).Warn("reset email failed",
			logger.Op("auth.forgot"),
			logger.UserID(u.ID),
			logger.Err(err),
		)
	}
	if s.cfg.EchoLinks {
		res.ResetLink = s.mailer.ResetLink(token)
	}
	return res, nil
}

// Reset consume el token de reset, cambia la contraseña y devuelve el userID
// para que el caller revoque todas las sesiones.
func (s *Service) Reset(ctx context.Context, token, newPassword string) (string, error) {
	if token == "" {
		return "", httperrors.ErrMissingFields.WithDetail("token es requerido")
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(newPassword); !ok {
		return "", httperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, "; "))
	}

	vt, err := s.repo.ConsumeVerificationToken(ctx, core.PurposePasswordReset, tokens.SHA256Base64URL(token), s.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", httperrors.ErrTokenInvalid
		}
		return "", err
	}

	phc, err := password.Hash(password.Default, newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, vt.UserID, phc); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return "", err
		}
		// Usuario social-only: el reset le crea la credencial.
		acc := &core.AuthAccount{
			UserID:       vt.UserID,
			ProviderID:   core.ProviderCredential,
			AccountID:    vt.UserID,
			PasswordHash: &phc,
		}
		if err := s.repo.CreateAuthAccount(ctx, acc); err != nil {
			return "", err
		}
	}

	audit.Event(ctx, "password_reset", vt.UserID)
	logger.From(ctx).Info("password reset",
		logger.Op("auth.reset"),
		logger.UserID(vt.UserID),
	)
	return vt.UserID, nil
}
