// Package oauth define el contrato de los proveedores sociales.
//
// Cada proveedor es una variante cerrada: {id, exchange de tokens, mapper de
// perfil}. El dispatch es por provider id al momento del signin; agregar un
// proveedor es agregar una variante y registrarla en el Registry al arranque,
// nunca parchear una tabla en runtime.
package oauth

import (
	"context"
	"time"
)

// Profile es el perfil ya normalizado en el borde: el payload crudo del
// proveedor no sale del paquete de cada variante.
type Profile struct {
	Subject       string // id estable del usuario en el proveedor
	Name          string
	Email         string
	Image         string
	EmailVerified bool
}

// Tokens son los tokens OAuth del proveedor, para persistir en la AuthAccount.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt *time.Time
}

type Provider interface {
	// ID retorna el provider id ("google", "github").
	ID() string
	// AuthURL construye la URL de autorización para el redirect inicial.
	AuthURL(ctx context.Context, state, nonce string) (string, error)
	// Exchange canjea el authorization code y devuelve perfil normalizado + tokens.
	Exchange(ctx context.Context, code, nonce string) (*Profile, *Tokens, error)
}

// Registry es el set cerrado de proveedores habilitados, armado una vez al inicio.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	m := make(map[string]Provider, len(ps))
	for _, p := range ps {
		m[p.ID()] = p
	}
	return &Registry{providers: m}
}

// Get devuelve el proveedor por id, o nil si no está habilitado.
func (r *Registry) Get(id string) Provider {
	if r == nil {
		return nil
	}
	return r.providers[id]
}

// IDs lista los proveedores habilitados.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	return out
}
