// Package session define los contratos JSON de listado y revocación de sesiones.
package session

import (
	"time"

	auth "github.com/dropDatabas3/centavo/internal/http/dto/auth"
	"github.com/dropDatabas3/centavo/internal/store/core"
)

type SessionResponse struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// Current marca la sesión desde la que se hizo el request.
	Current bool `json:"current"`
}

func NewSessionResponse(s *core.Session, currentID string) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		IP:        s.IP,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Current:   s.ID == currentID,
	}
}

type ListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// CurrentSession es la vista de la sesión que autentica el request, para
// acompañar al perfil en /v1/me.
type CurrentSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewCurrentSession(s *core.Session) CurrentSession {
	return CurrentSession{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
	}
}

// MeResponse es identidad + sesión actual.
type MeResponse struct {
	User    *auth.UserResponse `json:"user"`
	Session CurrentSession     `json:"session"`
}

type SignoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}
