package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func originHandler(t *testing.T, trusted []string) (http.Handler, *bool) {
	t.Helper()
	hit := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	})
	return WithOriginPolicy(trusted)(next), &hit
}

func TestOriginPolicy_SinOriginPasa(t *testing.T) {
	h, hit := originHandler(t, []string{"https://app.centavo.ar"})

	// curl / apps móviles / tests no mandan Origin
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*hit || rec.Code != http.StatusOK {
		t.Fatalf("request sin Origin tiene que pasar: hit=%v status=%d", *hit, rec.Code)
	}
}

func TestOriginPolicy_EscrituraCrossOriginRechazada(t *testing.T) {
	h, hit := originHandler(t, []string{"https://app.centavo.ar"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *hit {
		t.Fatal("el handler no tiene que ejecutarse con Origin no confiable")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, esperaba 403", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("no corresponde emitir headers CORS para un origen no confiable")
	}
}

func TestOriginPolicy_LecturaCrossOriginPasaSinCORS(t *testing.T) {
	// GET de un origen desconocido pasa (no es vector CSRF) pero sin
	// Allow-Origin el browser igual bloquea la respuesta.
	h, hit := originHandler(t, []string{"https://app.centavo.ar"})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*hit || rec.Code != http.StatusOK {
		t.Fatalf("GET cross-origin tiene que pasar: hit=%v status=%d", *hit, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("Allow-Origin no debe emitirse para orígenes no confiables")
	}
}

func TestOriginPolicy_ConfiableEmiteCORSConCredentials(t *testing.T) {
	h, _ := originHandler(t, []string{"https://app.centavo.ar/"})

	// el trailing slash de la config se normaliza; el matching es case-insensitive
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
	req.Header.Set("Origin", "https://APP.centavo.ar")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://APP.centavo.ar" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("falta Allow-Credentials: la sesión viaja en cookie")
	}
	if rec.Header().Values("Vary") == nil {
		t.Fatal("falta Vary: Origin")
	}
}

func TestOriginPolicy_Preflight(t *testing.T) {
	h, hit := originHandler(t, []string{"https://app.centavo.ar"})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/signin", nil)
	req.Header.Set("Origin", "https://app.centavo.ar")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *hit {
		t.Fatal("el preflight no tiene que llegar al handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, esperaba 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("falta Allow-Methods en el preflight")
	}
}

func TestOriginPolicy_SubdominioNoMatchea(t *testing.T) {
	// igualdad exacta: un subdominio del origen confiable no alcanza
	h, hit := originHandler(t, []string{"https://centavo.ar"})

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("Origin", "https://app.centavo.ar")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *hit || rec.Code != http.StatusForbidden {
		t.Fatalf("subdominio no confiable: hit=%v status=%d", *hit, rec.Code)
	}
}
