package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/centavo/internal/cache"
	httperrors "github.com/dropDatabas3/centavo/internal/http/errors"
	"github.com/dropDatabas3/centavo/internal/oauth"
	"github.com/dropDatabas3/centavo/internal/store/core"
	"github.com/dropDatabas3/centavo/internal/store/memory"
)

// fakeProvider devuelve siempre el mismo perfil y guarda el último state
// que recibió en AuthURL, para que el test arme el callback.
type fakeProvider struct {
	id        string
	profile   oauth.Profile
	tokens    oauth.Tokens
	lastState string
	exchanges int
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) AuthURL(_ context.Context, state, _ string) (string, error) {
	f.lastState = state
	return "https://provider.test/authorize?state=" + state, nil
}

func (f *fakeProvider) Exchange(_ context.Context, code, _ string) (*oauth.Profile, *oauth.Tokens, error) {
	f.exchanges++
	if code != "code-ok" {
		return nil, nil, errors.New("código rechazado por el proveedor")
	}
	p := f.profile
	tk := f.tokens
	return &p, &tk, nil
}

func newTestService(t *testing.T, providers ...oauth.Provider) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	signer := NewStateSigner([]byte("clave-de-firma-para-tests"), 5*time.Minute)
	svc := NewService(repo, cache.NewMemory("test:"), oauth.NewRegistry(providers...), signer, Config{
		Trusted:  []string{"google"},
		StateTTL: 5 * time.Minute,
	})
	return svc, repo
}

func googleFake() *fakeProvider {
	return &fakeProvider{
		id: "google",
		profile: oauth.Profile{
			Subject:       "sub-123",
			Name:          "Ana García",
			Email:         "ana@example.com",
			Image:         "https://provider.test/avatar.png",
			EmailVerified: true,
		},
		tokens: oauth.Tokens{Access: "at-1", Refresh: "rt-1"},
	}
}

func wantAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var ae *httperrors.AppError
	if !errors.As(err, &ae) {
		t.Fatalf("esperaba AppError %s, vino: %v", code, err)
	}
	if ae.Code != code {
		t.Fatalf("code = %s, esperaba %s", ae.Code, code)
	}
}

func TestStartCallback_NewUserProvisioned(t *testing.T) {
	p := googleFake()
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	authURL, err := svc.Start(ctx, "google")
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if authURL == "" || p.lastState == "" {
		t.Fatal("Start no generó URL/state")
	}

	u, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	if err != nil {
		t.Fatalf("Callback err: %v", err)
	}
	if u.Email != "ana@example.com" || !u.EmailVerified {
		t.Fatalf("usuario provisionado mal: %+v", u)
	}
	if u.Image == nil || *u.Image != "https://provider.test/avatar.png" {
		t.Fatal("la imagen del perfil no se copió")
	}

	acc, err := repo.GetAuthAccountByProvider(ctx, "google", "sub-123")
	if err != nil {
		t.Fatalf("la AuthAccount no quedó vinculada: %v", err)
	}
	if acc.UserID != u.ID {
		t.Fatal("AuthAccount apunta a otro usuario")
	}
	if acc.AccessToken == nil || *acc.AccessToken != "at-1" {
		t.Fatal("los tokens del proveedor no se persistieron")
	}
}

func TestCallback_StateSingleUse(t *testing.T) {
	p := googleFake()
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Callback(ctx, "google", p.lastState, "code-ok"); err != nil {
		t.Fatalf("primer callback err: %v", err)
	}

	// replay del mismo state
	_, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	wantAppCode(t, err, "TOKEN_INVALID")
}

func TestCallback_StateDeOtroProveedor(t *testing.T) {
	g := googleFake()
	gh := &fakeProvider{
		id:      "github",
		profile: oauth.Profile{Subject: "gh-9", Email: "ana@example.com", EmailVerified: true},
	}
	svc, _ := newTestService(t, g, gh)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	// el state firmado para google no sirve en el callback de github
	_, err := svc.Callback(ctx, "github", g.lastState, "code-ok")
	wantAppCode(t, err, "TOKEN_INVALID")
}

func TestCallback_ReturningUserRefreshesTokens(t *testing.T) {
	p := googleFake()
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	first, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	if err != nil {
		t.Fatal(err)
	}

	// segundo signin con la misma identidad: mismo usuario, tokens nuevos
	p.tokens = oauth.Tokens{Access: "at-2", Refresh: "rt-2"}
	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	second, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	if err != nil {
		t.Fatalf("callback de retorno err: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("el retorno creó otro usuario")
	}

	acc, err := repo.GetAuthAccountByProvider(ctx, "google", "sub-123")
	if err != nil {
		t.Fatal(err)
	}
	if acc.AccessToken == nil || *acc.AccessToken != "at-2" {
		t.Fatal("los tokens no se refrescaron en el retorno")
	}
}

func TestCallback_LinksTrustedProviderToExistingUser(t *testing.T) {
	p := googleFake()
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	existing := &core.User{Email: "ana@example.com", Name: "Ana", EmailVerified: true}
	if err := repo.CreateUser(ctx, existing); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	u, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	if err != nil {
		t.Fatalf("Callback err: %v", err)
	}
	if u.ID != existing.ID {
		t.Fatal("no vinculó con la cuenta existente")
	}
	if _, err := repo.GetAuthAccountByProvider(ctx, "google", "sub-123"); err != nil {
		t.Fatalf("el link no quedó persistido: %v", err)
	}
}

func TestCallback_RejectsUntrustedLinking(t *testing.T) {
	// github no está en Trusted; con un usuario existente del mismo email
	// el linking automático se rechaza.
	gh := &fakeProvider{
		id:      "github",
		profile: oauth.Profile{Subject: "gh-9", Email: "ana@example.com", EmailVerified: true},
	}
	svc, repo := newTestService(t, gh)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, &core.User{Email: "ana@example.com", EmailVerified: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Start(ctx, "github"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Callback(ctx, "github", gh.lastState, "code-ok")
	wantAppCode(t, err, "PROVIDER_NOT_TRUSTED")
}

func TestCallback_RejectsUnverifiedProviderEmail(t *testing.T) {
	// provider confiable pero email sin verificar del lado del proveedor
	p := googleFake()
	p.profile.EmailVerified = false
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, &core.User{Email: "ana@example.com", EmailVerified: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Callback(ctx, "google", p.lastState, "code-ok")
	wantAppCode(t, err, "PROVIDER_NOT_TRUSTED")
}

func TestCallback_UpstreamErrorNoQuemaUsuario(t *testing.T) {
	p := googleFake()
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "google"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Callback(ctx, "google", p.lastState, "code-malo")
	wantAppCode(t, err, "PROVIDER_UPSTREAM_ERROR")
}

func TestStart_UnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, googleFake())
	_, err := svc.Start(context.Background(), "facebook")
	wantAppCode(t, err, "PROVIDER_UNKNOWN")
}
