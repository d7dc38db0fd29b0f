package email

import (
	"fmt"
	"net/url"
	"time"
)

// Mailer arma los mails transaccionales del flujo de cuentas: verificación de
// email y reseteo de contraseña. Los links apuntan al frontend, que es quien
// termina haciendo el POST con el token.
type Mailer struct {
	sender  Sender
	baseURL string
	appName string
}

func NewMailer(sender Sender, baseURL, appName string) *Mailer {
	if appName == "" {
		appName = "Centavo"
	}
	return &Mailer{sender: sender, baseURL: baseURL, appName: appName}
}

func (m *Mailer) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", m.baseURL, path, url.QueryEscape(token))
}

// VerifyLink expone el link de verificación para el modo debug-echo.
func (m *Mailer) VerifyLink(token string) string { return m.link("/verify-email", token) }

// ResetLink expone el link de reseteo para el modo debug-echo.
func (m *Mailer) ResetLink(token string) string { return m.link("/reset-password", token) }

func (m *Mailer) SendVerification(to, token string, ttl time.Duration) error {
	link := m.VerifyLink(token)
	subject := fmt.Sprintf("Verificá tu email — %s", m.appName)
	text := fmt.Sprintf(
		"Hola,\n\nPara activar tu cuenta de %s entrá a:\n\n%s\n\nEl link vence en %s. Si no creaste esta cuenta, ignorá este mail.\n",
		m.appName, link, humanTTL(ttl),
	)
	html := fmt.Sprintf(
		`<p>Hola,</p><p>Para activar tu cuenta de %s hac&eacute; click ac&aacute;:</p><p><a href="%s">Verificar email</a></p><p>El link vence en %s. Si no creaste esta cuenta, ignor&aacute; este mail.</p>`,
		m.appName, link, humanTTL(ttl),
	)
	return m.sender.Send(to, subject, html, text)
}

func (m *Mailer) SendPasswordReset(to, token string, ttl time.Duration) error {
	link := m.ResetLink(token)
	subject := fmt.Sprintf("Reseteo de contraseña — %s", m.appName)
	text := fmt.Sprintf(
		"Hola,\n\nPediste resetear tu contraseña de %s. Entrá a:\n\n%s\n\nEl link vence en %s. Si no fuiste vos, ignorá este mail; tu contraseña sigue igual.\n",
		m.appName, link, humanTTL(ttl),
	)
	html := fmt.Sprintf(
		`<p>Hola,</p><p>Pediste resetear tu contrase&ntilde;a de %s:</p><p><a href="%s">Elegir nueva contrase&ntilde;a</a></p><p>El link vence en %s. Si no fuiste vos, ignor&aacute; este mail; tu contrase&ntilde;a sigue igual.</p>`,
		m.appName, link, humanTTL(ttl),
	)
	return m.sender.Send(to, subject, html, text)
}

func humanTTL(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 día"
		}
		return fmt.Sprintf("%d días", days)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		hs := int(d / time.Hour)
		if hs == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", hs)
	}
	return fmt.Sprintf("%d minutos", int(d/time.Minute))
}
