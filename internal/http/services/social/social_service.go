// Package social implementa el flujo OAuth/OIDC de signin con proveedores
// externos: start (redirect al proveedor) y callback (exchange + provisioning
// del usuario con política de account linking).
package social

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/centavo/internal/audit"
	"github.com/dropDatabas3/centavo/internal/cache"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/metrics"
	"github.com/dropDatabas3/centavo/internal/oauth"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
	"github.com/dropDatabas3/centavo/internal/security/tokens"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

const stateKeyPrefix = "social:state:"

type Config struct {
	// Trusted lista los providers cuyo email verificado habilita linking
	// automático con una cuenta existente del mismo email.
	Trusted  []string
	StateTTL time.Duration
}

type Service struct {
	repo      core.Repository
	cache     cache.Client
	providers *oauth.Registry
	signer    *StateSigner
	cfg       Config
}

func NewService(repo core.Repository, c cache.Client, providers *oauth.Registry, signer *StateSigner, cfg Config) *Service {
	return &Service{repo: repo, cache: c, providers: providers, signer: signer, cfg: cfg}
}

func (s *Service) isTrusted(providerID string) bool {
	for _, t := range s.cfg.Trusted {
		if t == providerID {
			return true
		}
	}
	return false
}

// Providers devuelve los IDs configurados, para que el frontend arme botones.
func (s *Service) Providers() []string { return s.providers.IDs() }

// Start arma la URL de autorización del proveedor. El state viaja firmado y
// el nonce queda en cache: el callback sólo es válido una vez y por el TTL.
func (s *Service) Start(ctx context.Context, providerID string) (string, error) {
	p := s.providers.Get(providerID)
	if p == nil {
		return "", httperrors.ErrProviderUnknown
	}

	nonce, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}
	state, err := s.signer.Sign(providerID, nonce)
	if err != nil {
		return "", err
	}
	key := stateKeyPrefix + tokens.SHA256Base64URL(nonce)
	if err := s.cache.Set(ctx, key, []byte(providerID), s.cfg.StateTTL); err != nil {
		return "", err
	}

	authURL, err := p.AuthURL(ctx, state, nonce)
	if err != nil {
		return "", httperrors.ErrProviderUpstream.WithCause(err)
	}
	return authURL, nil
}

// Callback valida el state, intercambia el code y resuelve el usuario local.
//
// Provisioning:
//   - cuenta (provider, subject) ya vinculada -> ese usuario, refrescando tokens
//   - email del proveedor coincide con un usuario existente -> se vincula sólo
//     si el provider es confiable Y el proveedor afirma email verificado;
//     si no, se rechaza (el dueño legítimo puede vincular desde su sesión)
//   - sin coincidencia -> alta de usuario nuevo
func (s *Service) Callback(ctx context.Context, providerID, state, code string) (*core.User, error) {
	p := s.providers.Get(providerID)
	if p == nil {
		return nil, httperrors.ErrProviderUnknown
	}

	stateProvider, nonce, err := s.signer.Parse(state)
	if err != nil {
		metrics.SocialCallbacks.WithLabelValues(providerID, "bad_state").Inc()
		return nil, err
	}
	if stateProvider != providerID {
		metrics.SocialCallbacks.WithLabelValues(providerID, "bad_state").Inc()
		return nil, httperrors.ErrTokenInvalid.WithDetail("state de otro proveedor")
	}

	// Single-use: si el nonce no está en cache el flujo expiró o ya se usó.
	key := stateKeyPrefix + tokens.SHA256Base64URL(nonce)
	if _, err := s.cache.Get(ctx, key); err != nil {
		metrics.SocialCallbacks.WithLabelValues(providerID, "bad_state").Inc()
		if errors.Is(err, cache.ErrNotFound) {
			return nil, httperrors.ErrTokenInvalid.WithDetail("state expirado o ya usado")
		}
		return nil, err
	}
	_ = s.cache.Delete(ctx, key)

	profile, provTokens, err := p.Exchange(ctx, code, nonce)
	if err != nil {
		metrics.SocialCallbacks.WithLabelValues(providerID, "upstream_error").Inc()
		logger.From(ctx).Warn("provider exchange failed",
			logger.Op("social.callback"),
			logger.Provider(providerID),
			logger.Err(err),
		)
		return nil, httperrors.ErrProviderUpstream.WithCause(err)
	}

	user, err := s.provision(ctx, providerID, profile, provTokens)
	if err != nil {
		metrics.SocialCallbacks.WithLabelValues(providerID, "rejected").Inc()
		return nil, err
	}

	metrics.SocialCallbacks.WithLabelValues(providerID, "ok").Inc()
	return user, nil
}

func (s *Service) provision(ctx context.Context, providerID string, profile *oauth.Profile, provTokens *oauth.Tokens) (*core.User, error) {
	// Cuenta ya vinculada: camino feliz de retorno.
	acc, err := s.repo.GetAuthAccountByProvider(ctx, providerID, profile.Subject)
	if err == nil {
		s.refreshTokens(ctx, acc, provTokens)
		return s.repo.GetUserByID(ctx, acc.UserID)
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	email := profile.Email
	if email != "" {
		existing, err := s.repo.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			// Usuario existente con este email: linking sólo para providers
			// confiables con email verificado del lado del proveedor.
			if !s.isTrusted(providerID) || !profile.EmailVerified {
				logger.From(ctx).Warn("account linking rejected",
					logger.Op("social.provision"),
					logger.Provider(providerID),
					logger.UserID(existing.ID),
				)
				return nil, httperrors.ErrProviderNotTrusted
			}
			if err := s.link(ctx, existing.ID, providerID, profile, provTokens); err != nil {
				return nil, err
			}
			audit.Event(ctx, "account_linked", existing.ID, zap.String("provider", providerID))
			return existing, nil
		case !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}

	// Alta nueva. El email queda verificado sólo si el proveedor lo afirma.
	u := &core.User{
		Email:         email,
		Name:          profile.Name,
		EmailVerified: profile.EmailVerified,
	}
	if profile.Image != "" {
		img := profile.Image
		u.Image = &img
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			// Carrera con otro signup del mismo email: lo tratamos como
			// linking denegado, el usuario reintenta y cae en el camino de arriba.
			return nil, httperrors.ErrProviderNotTrusted
		}
		return nil, err
	}
	if err := s.link(ctx, u.ID, providerID, profile, provTokens); err != nil {
		return nil, err
	}

	audit.Event(ctx, "signup", u.ID, zap.String("provider", providerID))
	logger.From(ctx).Info("user provisioned from provider",
		logger.Op("social.provision"),
		logger.Provider(providerID),
		logger.UserID(u.ID),
	)
	return u, nil
}

func (s *Service) link(ctx context.Context, userID, providerID string, profile *oauth.Profile, provTokens *oauth.Tokens) error {
	acc := &core.AuthAccount{
		UserID:     userID,
		ProviderID: providerID,
		AccountID:  profile.Subject,
	}
	if provTokens != nil {
		if provTokens.Access != "" {
			a := provTokens.Access
			acc.AccessToken = &a
		}
		if provTokens.Refresh != "" {
			r := provTokens.Refresh
			acc.RefreshToken = &r
		}
		acc.TokenExpiresAt = provTokens.ExpiresAt
	}
	return s.repo.CreateAuthAccount(ctx, acc)
}

func (s *Service) refreshTokens(ctx context.Context, acc *core.AuthAccount, provTokens *oauth.Tokens) {
	if provTokens == nil {
		return
	}
	var access, refresh *string
	if provTokens.Access != "" {
		a := provTokens.Access
		access = &a
	}
	if provTokens.Refresh != "" {
		r := provTokens.Refresh
		refresh = &r
	}
	if err := s.repo.UpdateProviderTokens(ctx, acc.ID, access, refresh, provTokens.ExpiresAt); err != nil {
		// No es fatal: el signin sigue, los tokens viejos quedan.
		logger.From(ctx).Warn("provider token refresh failed",
			logger.Op("social.provision"),
			logger.Err(err),
		)
	}
}
