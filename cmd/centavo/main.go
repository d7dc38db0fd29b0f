package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/centavo/internal/cache"
	"github.com/dropDatabas3/centavo/internal/config"
	"github.com/dropDatabas3/centavo/internal/email"
	httpserver "github.com/dropDatabas3/centavo/internal/http"
	accountctrl "github.com/dropDatabas3/centavo/internal/http/controllers/account"
	authctrl "github.com/dropDatabas3/centavo/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/centavo/internal/http/controllers/health"
	mfactrl "github.com/dropDatabas3/centavo/internal/http/controllers/mfa"
	socialctrl "github.com/dropDatabas3/centavo/internal/http/controllers/social"
	"github.com/dropDatabas3/centavo/internal/http/helpers"
	mw "github.com/dropDatabas3/centavo/internal/http/middlewares"
	"github.com/dropDatabas3/centavo/internal/http/router"
	authsvc "github.com/dropDatabas3/centavo/internal/http/services/auth"
	mfasvc "github.com/dropDatabas3/centavo/internal/http/services/mfa"
	sessionsvc "github.com/dropDatabas3/centavo/internal/http/services/session"
	socialsvc "github.com/dropDatabas3/centavo/internal/http/services/social"
	"github.com/dropDatabas3/centavo/internal/metrics"
	"github.com/dropDatabas3/centavo/internal/oauth"
	"github.com/dropDatabas3/centavo/internal/oauth/github"
	"github.com/dropDatabas3/centavo/internal/oauth/google"
	"github.com/dropDatabas3/centavo/internal/observability/logger"
	"github.com/dropDatabas3/centavo/internal/rate"
	"github.com/dropDatabas3/centavo/internal/security/password"
	"github.com/dropDatabas3/centavo/internal/security/secretbox"
	"github.com/dropDatabas3/centavo/internal/store/core"
	"github.com/dropDatabas3/centavo/internal/store/memory"
	"github.com/dropDatabas3/centavo/internal/store/pg"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// buildLimiter arma un limiter por grupo de endpoints. Con redis el contador
// es compartido entre instancias; en memoria sólo sirve para single-node/dev.
func buildLimiter(cfg *config.Config, rc *rdb.Client, name string, max int, window string) rate.Limiter {
	if !cfg.Rate.Enabled || max <= 0 {
		return nil
	}
	win, err := time.ParseDuration(window)
	if err != nil || win <= 0 {
		win = time.Minute
	}
	if rc != nil {
		return rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:"+name+":", max, win)
	}
	return rate.NewMemoryLimiter(max, win)
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if fileExists(*flagEnvFile) {
		_ = godotenv.Load(*flagEnvFile)
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.L().Fatal("config inválida", zap.String("path", cfgPath), zap.Error(err))
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "centavo",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	// ───── Secretbox (cifra secretos TOTP y firma el state social) ─────
	masterKeyB64 := strings.TrimSpace(cfg.Security.SecretBoxMasterKey)
	if masterKeyB64 == "" {
		log.Fatal("SECRETBOX_MASTER_KEY faltante (base64 de 32 bytes)")
	}
	box, err := secretbox.New(masterKeyB64)
	if err != nil {
		log.Fatal("SECRETBOX_MASTER_KEY inválida", zap.Error(err))
	}
	masterKey, _ := base64.StdEncoding.DecodeString(masterKeyB64)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ───── Store ─────
	var repo core.Repository
	switch strings.ToLower(cfg.Storage.Driver) {
	case "postgres":
		pgStore, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		defer pgStore.Close()
		if cfg.Flags.Migrate {
			if err := pgStore.Migrate(ctx); err != nil {
				log.Fatal("migraciones", zap.Error(err))
			}
		}
		repo = pgStore
	case "memory", "":
		log.Warn("storage en memoria: los datos se pierden al reiniciar")
		repo = memory.New()
	default:
		log.Fatal("storage driver desconocido", zap.String("driver", cfg.Storage.Driver))
	}

	// ───── Cache ─────
	cc, err := cache.New(cache.Config{
		Kind:   cfg.Cache.Kind,
		Addr:   cfg.Cache.Redis.Addr,
		DB:     cfg.Cache.Redis.DB,
		Prefix: cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		log.Fatal("cache", zap.Error(err))
	}

	// Si la cache es redis reutilizamos su conexión para los rate limiters.
	var redisConn *rdb.Client
	if rc, ok := cc.(interface{ Client() *rdb.Client }); ok {
		redisConn = rc.Client()
	}

	// ───── Email ─────
	var sender email.Sender
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		sender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	} else {
		log.Warn("SMTP sin configurar: los mails se descartan")
		sender = email.NopSender{}
	}
	mailer := email.NewMailer(sender, cfg.Email.BaseURL, "Centavo")

	// ───── Providers sociales ─────
	var providers []oauth.Provider
	if cfg.Providers.Google.Enabled {
		providers = append(providers, google.New(
			cfg.Providers.Google.ClientID,
			cfg.Providers.Google.ClientSecret,
			cfg.Providers.Google.RedirectURL,
			cfg.Providers.Google.Scopes,
		))
	}
	if cfg.Providers.GitHub.Enabled {
		providers = append(providers, github.New(
			cfg.Providers.GitHub.ClientID,
			cfg.Providers.GitHub.ClientSecret,
			cfg.Providers.GitHub.RedirectURL,
		))
	}
	registry := oauth.NewRegistry(providers...)
	stateSigner := socialsvc.NewStateSigner(masterKey, cfg.Providers.StateTTL)

	// ───── Services ─────
	sessions := sessionsvc.NewService(repo, cfg.SessionTTL(), cfg.SessionRenewAfter())
	auth := authsvc.NewService(repo, cc, mailer, authsvc.Config{
		PasswordPolicy: password.Policy{
			MinLength:     cfg.Security.PasswordPolicy.MinLength,
			RequireUpper:  cfg.Security.PasswordPolicy.RequireUpper,
			RequireLower:  cfg.Security.PasswordPolicy.RequireLower,
			RequireDigit:  cfg.Security.PasswordPolicy.RequireDigit,
			RequireSymbol: cfg.Security.PasswordPolicy.RequireSymbol,
		},
		VerifyTTL:    cfg.Auth.Verify.TTL,
		ResetTTL:     cfg.Auth.Reset.TTL,
		ChallengeTTL: cfg.Auth.ChallengeTTL,
		EchoLinks:    cfg.Email.DebugEchoLinks,
	})
	mfa := mfasvc.NewService(repo, box, mfasvc.Config{
		Issuer:      cfg.MFA.Issuer,
		WindowSteps: cfg.MFA.Window,
		BackupCodes: cfg.MFA.BackupCodes,
	})
	social := socialsvc.NewService(repo, cc, registry, stateSigner, socialsvc.Config{
		Trusted:  cfg.Providers.Trusted,
		StateTTL: cfg.Providers.StateTTL,
	})

	cookies := helpers.NewCookiePolicy(
		cfg.Auth.Session.CookieName,
		cfg.Auth.Session.Domain,
		cfg.Auth.Session.SameSite,
		cfg.IsProd(),
	)

	// ───── Metrics ─────
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(promReg)

	// ───── HTTP ─────
	handler := router.New(router.Deps{
		Auth:    authctrl.NewController(auth, sessions, cookies, cfg.Auth.Signup.AutoSignin),
		MFA:     mfactrl.NewController(mfa, auth, sessions, cookies),
		Account: accountctrl.NewController(sessions),
		Social:  socialctrl.NewController(social, auth, sessions, cookies, cfg.Server.FrontendURL),
		Health:  healthctrl.NewController(repo, cc),

		SessionAuth: mw.WithSession(sessions, cookies),

		TrustedOrigins: cfg.Server.TrustedOrigins,

		SigninLimiter: buildLimiter(cfg, redisConn, "signin", cfg.Rate.Signin.Limit, cfg.Rate.Signin.Window),
		ForgotLimiter: buildLimiter(cfg, redisConn, "forgot", cfg.Rate.Forgot.Limit, cfg.Rate.Forgot.Window),
		MFALimiter:    buildLimiter(cfg, redisConn, "mfa", cfg.Rate.MFA.Limit, cfg.Rate.MFA.Window),

		MetricsRegistry: promReg,
	})
	srv := httpserver.NewServer(cfg.Server.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("servidor arriba",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("storage", cfg.Storage.Driver),
			zap.Strings("providers", registry.IDs()),
		)
		return srv.Start()
	})

	// Purga periódica de sesiones expiradas. El resolve ya hace lazy-delete;
	// esto limpia las que nunca vuelven a tocarse.
	g.Go(func() error {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				n, err := sessions.PurgeExpired(gctx)
				if err != nil {
					log.Warn("purga de sesiones", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("sesiones expiradas purgadas", zap.Int64("count", n))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("apagando…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("servidor", zap.Error(err))
	}
	log.Info("bye")
}
