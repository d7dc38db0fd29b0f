package social

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
)

// stateAudience es el audience esperado en el state JWT del flujo social.
const stateAudience = "social-state"

// stateClaims viaja firmado en el parámetro state del authorize redirect.
// El nonce además queda en cache con TTL: el callback lo consume una sola vez.
type stateClaims struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	jwtv5.RegisteredClaims
}

// StateSigner firma y valida el state con HMAC. La clave sale de la master
// key del proceso; no hace falta rotación porque el state vive minutos.
type StateSigner struct {
	key []byte
	ttl time.Duration
}

func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	return &StateSigner{key: key, ttl: ttl}
}

func (s *StateSigner) Sign(provider, nonce string) (string, error) {
	now := time.Now().UTC()
	claims := stateClaims{
		Provider: provider,
		Nonce:    nonce,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Audience:  jwtv5.ClaimStrings{stateAudience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse valida firma, expiración y audience, y devuelve provider y nonce.
func (s *StateSigner) Parse(tokenString string) (provider, nonce string, err error) {
	var claims stateClaims
	tk, err := jwtv5.ParseWithClaims(tokenString, &claims,
		func(*jwtv5.Token) (any, error) { return s.key, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithAudience(stateAudience),
	)
	if err != nil || !tk.Valid {
		return "", "", httperrors.ErrTokenInvalid.WithDetail("state inválido")
	}
	return claims.Provider, claims.Nonce, nil
}
