package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("Addr = %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" || c.Cache.Kind != "memory" {
		t.Fatalf("defaults de storage/cache: %q / %q", c.Storage.Driver, c.Cache.Kind)
	}
	if c.Auth.Session.CookieName != "centavo_session" {
		t.Fatalf("CookieName = %q", c.Auth.Session.CookieName)
	}
	if c.SessionTTL() != 7*24*time.Hour {
		t.Fatalf("SessionTTL = %v", c.SessionTTL())
	}
	if c.SessionRenewAfter() != 24*time.Hour {
		t.Fatalf("SessionRenewAfter = %v", c.SessionRenewAfter())
	}
	if c.Auth.Verify.TTL != 48*time.Hour || c.Auth.Reset.TTL != time.Hour {
		t.Fatalf("TTLs de tokens: verify=%v reset=%v", c.Auth.Verify.TTL, c.Auth.Reset.TTL)
	}
	if c.MFA.Window != 1 || c.MFA.BackupCodes != 10 {
		t.Fatalf("defaults MFA: %+v", c.MFA)
	}
	if !c.IsTrustedProvider("google") || c.IsTrustedProvider("github") {
		t.Fatal("por default sólo google es confiable para linking")
	}
}

func TestLoad_YAMLOverride(t *testing.T) {
	p := writeYAML(t, `
app:
  env: staging
server:
  addr: ":9090"
  trusted_origins: ["https://app.centavo.ar"]
auth:
  session:
    ttl: "72h"
    renew_after: "12h"
mfa:
  window: 2
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.Server.Addr != ":9090" {
		t.Fatalf("Addr = %q", c.Server.Addr)
	}
	if c.SessionTTL() != 72*time.Hour || c.SessionRenewAfter() != 12*time.Hour {
		t.Fatalf("sesión: ttl=%v renew=%v", c.SessionTTL(), c.SessionRenewAfter())
	}
	if c.MFA.Window != 2 {
		t.Fatalf("Window = %d", c.MFA.Window)
	}
	if c.IsProd() {
		t.Fatal("staging no es prod")
	}
}

func TestLoad_EnvPisaYAML(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":9090"
`)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("AUTH_SESSION_TTL", "48h")
	t.Setenv("PROVIDERS_TRUSTED", "google, github")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.Server.Addr != ":7070" {
		t.Fatalf("env no pisó el YAML: %q", c.Server.Addr)
	}
	if c.SessionTTL() != 48*time.Hour {
		t.Fatalf("SessionTTL = %v", c.SessionTTL())
	}
	if !c.IsTrustedProvider("github") {
		t.Fatal("PROVIDERS_TRUSTED no se aplicó")
	}
}

func TestLoad_ProdApagaEchoLinks(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
email:
  debug_echo_links: true
`)
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsProd() {
		t.Fatal("env prod no detectado")
	}
	if c.Email.DebugEchoLinks {
		t.Fatal("en prod los links de debug quedan apagados siempre")
	}
}

func TestLoad_RechazaDuracionInvalida(t *testing.T) {
	p := writeYAML(t, `
auth:
  session:
    ttl: "una semana"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("una duración no parseable tiene que fallar el Load")
	}
}
