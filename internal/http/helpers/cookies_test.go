package helpers

import (
	"net/http"
	"testing"
	"time"
)

func TestNewCookiePolicy_ProdVsDev(t *testing.T) {
	prod := NewCookiePolicy("centavo_session", ".centavo.ar", "lax", true)
	if !prod.Secure || prod.Domain != ".centavo.ar" {
		t.Fatalf("en prod la cookie es Secure y de dominio: %+v", prod)
	}

	dev := NewCookiePolicy("centavo_session", ".centavo.ar", "lax", false)
	if dev.Secure {
		t.Fatal("en dev la cookie no puede ser Secure (http://localhost)")
	}
	if dev.Domain != "" {
		t.Fatal("en dev la cookie es host-only, sin Domain")
	}
}

func TestBuildSessionCookie_Atributos(t *testing.T) {
	p := NewCookiePolicy("centavo_session", ".centavo.ar", "lax", true)
	c := p.BuildSessionCookie("token-opaco", 7*24*time.Hour)

	if c.Name != "centavo_session" || c.Value != "token-opaco" {
		t.Fatalf("cookie mal armada: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" {
		t.Fatalf("faltan flags de seguridad: %+v", c)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("SameSite = %v, esperaba Lax", c.SameSite)
	}
	if c.Domain != ".centavo.ar" {
		t.Fatalf("Domain = %q", c.Domain)
	}
	if c.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("MaxAge = %d", c.MaxAge)
	}
	if !c.Expires.After(time.Now().Add(6 * 24 * time.Hour)) {
		t.Fatalf("Expires demasiado cerca: %v", c.Expires)
	}
}

func TestBuildDeletionCookie_Borra(t *testing.T) {
	p := NewCookiePolicy("centavo_session", "", "strict", false)
	c := p.BuildDeletionCookie()

	if c.Value != "" || c.MaxAge != -1 {
		t.Fatalf("la cookie de borrado tiene que expirar: %+v", c)
	}
	if !c.Expires.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("Expires = %v", c.Expires)
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("SameSite = %v, esperaba Strict", c.SameSite)
	}
	if !c.HttpOnly {
		t.Fatal("la cookie de borrado también es HttpOnly")
	}
}

func TestParseSameSite(t *testing.T) {
	cases := map[string]http.SameSite{
		"":         http.SameSiteLaxMode,
		"lax":      http.SameSiteLaxMode,
		"LAX":      http.SameSiteLaxMode,
		"strict":   http.SameSiteStrictMode,
		"none":     http.SameSiteNoneMode,
		"cualquer": http.SameSiteLaxMode,
	}
	for in, want := range cases {
		if got := parseSameSite(in); got != want {
			t.Fatalf("parseSameSite(%q) = %v, esperaba %v", in, got, want)
		}
	}
}
