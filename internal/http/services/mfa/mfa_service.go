// Package mfa implementa el segundo factor TOTP: enrolamiento, confirmación,
// verificación de códigos (app o backup) y baja.
package mfa

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/centavo/internal/audit"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/metrics"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
	"github.com/dropDatabas3/centavo/internal/security/secretbox"
	"github.com/dropDatabas3/centavo/internal/security/tokens"
	"github.com/dropDatabas3/centavo/internal/security/totp"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

const totpStep = 30 // segundos, RFC 6238

type Config struct {
	Issuer      string // label para el otpauth:// del QR
	WindowSteps int    // tolerancia de clock skew en pasos
	BackupCodes int
}

type Service struct {
	repo core.Repository
	box  *secretbox.Box
	cfg  Config
	now  func() time.Time
}

func NewService(repo core.Repository, box *secretbox.Box, cfg Config) *Service {
	return &Service{
		repo: repo,
		box:  box,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj. Sólo para tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type Enrollment struct {
	SecretBase32 string
	OTPAuthURL   string
}

// Enroll genera un secreto TOTP nuevo y lo deja pendiente de confirmación.
// Re-enrolar pisa un enrolamiento pendiente anterior; con 2FA ya activo es
// conflicto (primero hay que deshabilitar).
func (s *Service) Enroll(ctx context.Context, userID, accountEmail string) (*Enrollment, error) {
	if existing, err := s.repo.GetMFATOTP(ctx, userID); err == nil && existing.ConfirmedAt != nil {
		return nil, httperrors.ErrMFAAlreadyEnabled
	} else if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	_, b32, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	enc, err := s.box.Encrypt(b32)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertMFATOTP(ctx, userID, enc); err != nil {
		return nil, err
	}

	logger.From(ctx).Info("totp enrollment started",
		logger.Op("mfa.enroll"),
		logger.UserID(userID),
	)
	return &Enrollment{
		SecretBase32: b32,
		OTPAuthURL:   totp.OTPAuthURL(s.cfg.Issuer, accountEmail, b32),
	}, nil
}

// Confirm valida el primer código contra el secreto pendiente. Si cierra,
// activa 2FA y devuelve los backup codes en claro: es la única vez que se ven.
func (s *Service) Confirm(ctx context.Context, userID, code string) ([]string, error) {
	rec, err := s.repo.GetMFATOTP(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, httperrors.ErrMFANotEnrolled
		}
		return nil, err
	}
	if rec.ConfirmedAt != nil {
		return nil, httperrors.ErrMFAAlreadyEnabled
	}

	secretRaw, err := s.decodeSecret(rec.SecretEncrypted)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, counter := totp.Verify(secretRaw, code, now, s.cfg.WindowSteps, nil)
	if !ok {
		metrics.MFAVerifications.WithLabelValues("totp", "invalid").Inc()
		return nil, httperrors.ErrMFACodeInvalid
	}

	if err := s.repo.ConfirmMFATOTP(ctx, userID, now); err != nil {
		return nil, err
	}
	if err := s.repo.SetTwoFactorEnabled(ctx, userID, true); err != nil {
		return nil, err
	}
	_ = s.repo.UpdateMFAUsedAt(ctx, userID, counterTime(counter))

	plain, hashes, err := tokens.GenerateBackupCodes(s.cfg.BackupCodes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertBackupCodes(ctx, userID, hashes); err != nil {
		return nil, err
	}

	metrics.MFAVerifications.WithLabelValues("totp", "ok").Inc()
	audit.Event(ctx, "mfa_enabled", userID)
	logger.From(ctx).Info("totp confirmed",
		logger.Op("mfa.confirm"),
		logger.UserID(userID),
	)
	return plain, nil
}

// VerifyCode valida un código del segundo factor para un usuario con 2FA
// activo. Los de 6 dígitos van contra la app TOTP (con anti-replay: un mismo
// paso no se acepta dos veces); cualquier otro formato se trata como backup
// code, que es de un solo uso.
func (s *Service) VerifyCode(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if looksLikeTOTP(code) {
		return s.verifyTOTP(ctx, userID, code)
	}
	return s.verifyBackup(ctx, userID, code)
}

func (s *Service) verifyTOTP(ctx context.Context, userID, code string) error {
	rec, err := s.repo.GetMFATOTP(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return httperrors.ErrMFANotEnrolled
		}
		return err
	}
	if rec.ConfirmedAt == nil {
		return httperrors.ErrMFANotEnrolled
	}

	secretRaw, err := s.decodeSecret(rec.SecretEncrypted)
	if err != nil {
		return err
	}

	var lastCounter *int64
	if rec.LastUsedAt != nil {
		c := rec.LastUsedAt.Unix() / totpStep
		lastCounter = &c
	}

	ok, counter := totp.Verify(secretRaw, code, s.now(), s.cfg.WindowSteps, lastCounter)
	if !ok {
		metrics.MFAVerifications.WithLabelValues("totp", "invalid").Inc()
		return httperrors.ErrMFACodeInvalid
	}

	if err := s.repo.UpdateMFAUsedAt(ctx, userID, counterTime(counter)); err != nil {
		return err
	}
	metrics.MFAVerifications.WithLabelValues("totp", "ok").Inc()
	return nil
}

func (s *Service) verifyBackup(ctx context.Context, userID, code string) error {
	code = strings.ToLower(code)
	used, err := s.repo.UseBackupCode(ctx, userID, tokens.SHA256Base64URL(code), s.now())
	if err != nil {
		return err
	}
	if !used {
		metrics.MFAVerifications.WithLabelValues("backup", "invalid").Inc()
		return httperrors.ErrMFACodeInvalid
	}
	metrics.MFAVerifications.WithLabelValues("backup", "ok").Inc()
	logger.From(ctx).Info("backup code used",
		logger.Op("mfa.backup"),
		logger.UserID(userID),
	)
	return nil
}

// Disable apaga el 2FA previa verificación de un código vigente (app o
// backup). Borra secreto y backup codes.
func (s *Service) Disable(ctx context.Context, userID, code string) error {
	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}
	if err := s.repo.DisableMFATOTP(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetTwoFactorEnabled(ctx, userID, false); err != nil {
		return err
	}
	audit.Event(ctx, "mfa_disabled", userID)
	logger.From(ctx).Info("totp disabled",
		logger.Op("mfa.disable"),
		logger.UserID(userID),
	)
	return nil
}

func (s *Service) decodeSecret(enc string) ([]byte, error) {
	b32, err := s.box.Decrypt(enc)
	if err != nil {
		return nil, err
	}
	return totp.DecodeSecret(b32)
}

func looksLikeTOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func counterTime(counter int64) time.Time {
	return time.Unix(counter*totpStep, 0).UTC()
}
