// Package mfa define los contratos JSON del segundo factor TOTP.
package mfa

import auth "github.com/dropDatabas3/centavo/internal/http/dto/auth"

type EnrollResponse struct {
	SecretBase32 string `json:"secret_base32"`
	OTPAuthURL   string `json:"otpauth_url"`
}

type ConfirmRequest struct {
	Code string `json:"code"`
}

// ConfirmResponse lleva los backup codes en claro. Única vez que se muestran.
type ConfirmResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// ChallengeRequest completa un signin con 2FA: el challenge_token que devolvió
// /auth/signin más un código de la app o un backup code.
type ChallengeRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

type ChallengeResponse struct {
	User *auth.UserResponse `json:"user"`
}

type DisableRequest struct {
	Code string `json:"code"`
}
