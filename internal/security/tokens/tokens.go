package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateBackupCodes genera n códigos de respaldo legibles (xxxxx-xxxxx).
// Devuelve los códigos en claro y sus hashes para persistir.
func GenerateBackupCodes(n int) (plain []string, hashes []string, err error) {
	const alphabet = "abcdefghjkmnpqrstuvwxyz23456789" // sin 0/O ni 1/l/i
	for i := 0; i < n; i++ {
		b := make([]byte, 10)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, err
		}
		var sb strings.Builder
		for j, c := range b {
			if j == 5 {
				sb.WriteByte('-')
			}
			sb.WriteByte(alphabet[int(c)%len(alphabet)])
		}
		code := sb.String()
		plain = append(plain, code)
		hashes = append(hashes, SHA256Base64URL(code))
	}
	return plain, hashes, nil
}
