package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// Origins confiables para requests cross-origin (match exacto, sin wildcards).
		// Requests sin header Origin (clientes no-browser) pasan igual.
		TrustedOrigins []string `yaml:"trusted_origins"`
		// URL del SPA para redirects del flujo social.
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		Session struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"` // sólo aplica en prod
			SameSite   string `yaml:"samesite"`
			TTL        string `yaml:"ttl"`         // vida de la sesión
			RenewAfter string `yaml:"renew_after"` // umbral de renovación rolling
		} `yaml:"session"`
		Signup struct {
			AutoSignin bool `yaml:"auto_signin"`
		} `yaml:"signup"`
		Reset struct {
			TTL time.Duration `yaml:"ttl"`
		} `yaml:"reset"`
		Verify struct {
			TTL time.Duration `yaml:"ttl"`
		} `yaml:"verify"`
		// TTL del desafío 2FA pendiente entre primer y segundo factor.
		ChallengeTTL time.Duration `yaml:"challenge_ttl"`
	} `yaml:"auth"`

	MFA struct {
		Issuer      string `yaml:"issuer"` // label del otpauth:// para el QR
		Window      int    `yaml:"window"` // pasos de tolerancia (+/-)
		BackupCodes int    `yaml:"backup_codes"`
	} `yaml:"mfa"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"` // base64(32 bytes), cifra secretos TOTP
		PasswordPolicy     struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
	} `yaml:"security"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Signin  struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"signin"`
		Forgot struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"forgot"`
		MFA struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"mfa"`
	} `yaml:"rate"`

	// ───────── Social Providers ─────────
	Providers struct {
		// Proveedores cuyo claim de email verificado habilita account linking
		// automático. Los no listados nunca se mergean con un usuario existente.
		Trusted []string `yaml:"trusted"`
		// TTL del state del flujo social (start -> callback).
		StateTTL time.Duration `yaml:"state_ttl"`
		Google   struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"google"`
		GitHub struct {
			Enabled      bool   `yaml:"enabled"`
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"github"`
	} `yaml:"providers"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Email struct {
		BaseURL        string `yaml:"base_url"` // base para links de verify/reset
		DebugEchoLinks bool   `yaml:"debug_echo_links"`
	} `yaml:"email"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "centavo_session"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "168h" // 7d
	}
	if c.Auth.Session.RenewAfter == "" {
		c.Auth.Session.RenewAfter = "24h"
	}
	if c.Auth.Reset.TTL == 0 {
		c.Auth.Reset.TTL = 60 * time.Minute
	}
	if c.Auth.Verify.TTL == 0 {
		c.Auth.Verify.TTL = 48 * time.Hour
	}
	if c.Auth.ChallengeTTL == 0 {
		c.Auth.ChallengeTTL = 5 * time.Minute
	}
	if c.MFA.Issuer == "" {
		c.MFA.Issuer = "Centavo"
	}
	if c.MFA.Window == 0 {
		c.MFA.Window = 1
	}
	if c.MFA.BackupCodes == 0 {
		c.MFA.BackupCodes = 10
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	// Rate limit defaults
	if c.Rate.Signin.Limit == 0 {
		c.Rate.Signin.Limit = 10
	}
	if c.Rate.Signin.Window == "" {
		c.Rate.Signin.Window = "1m"
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == "" {
		c.Rate.Forgot.Window = "10m"
	}
	if c.Rate.MFA.Limit == 0 {
		c.Rate.MFA.Limit = 10
	}
	if c.Rate.MFA.Window == "" {
		c.Rate.MFA.Window = "1m"
	}
	// Social defaults
	if len(c.Providers.Trusted) == 0 {
		c.Providers.Trusted = []string{"google"}
	}
	if c.Providers.StateTTL == 0 {
		c.Providers.StateTTL = 10 * time.Minute
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Auth.Session.TTL, c.Auth.Session.RenewAfter,
		c.Rate.Signin.Window, c.Rate.Forgot.Window, c.Rate.MFA.Window,
	} {
		if d != "" {
			if _, err := time.ParseDuration(d); err != nil {
				return nil, err
			}
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	// Guardia dura: en prod nunca exponemos links de verificación por la respuesta.
	if c.IsProd() {
		c.Email.DebugEchoLinks = false
	}

	return &c, nil
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// SessionTTL devuelve la vida de sesión parseada.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.Session.TTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// SessionRenewAfter devuelve el umbral de renovación rolling parseado.
func (c *Config) SessionRenewAfter() time.Duration {
	d, err := time.ParseDuration(c.Auth.Session.RenewAfter)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_ORIGINS"); ok {
		c.Server.TrustedOrigins = v
	}
	if v, ok := getEnvStr("SERVER_FRONTEND_URL"); ok {
		c.Server.FrontendURL = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_RENEW_AFTER"); ok {
		c.Auth.Session.RenewAfter = v
	}
	if v, ok := getEnvBool("AUTH_SIGNUP_AUTO_SIGNIN"); ok {
		c.Auth.Signup.AutoSignin = v
	}
	if v, ok := getEnvDur("AUTH_RESET_TTL"); ok {
		c.Auth.Reset.TTL = v
	}
	if v, ok := getEnvDur("AUTH_VERIFY_TTL"); ok {
		c.Auth.Verify.TTL = v
	}
	if v, ok := getEnvDur("AUTH_CHALLENGE_TTL"); ok {
		c.Auth.ChallengeTTL = v
	}

	// MFA
	if v, ok := getEnvStr("MFA_TOTP_ISSUER"); ok {
		c.MFA.Issuer = v
	}
	if v, ok := getEnvInt("MFA_TOTP_WINDOW"); ok && v >= 0 && v <= 3 {
		c.MFA.Window = v
	}
	if v, ok := getEnvInt("MFA_BACKUP_CODES"); ok {
		c.MFA.BackupCodes = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvInt("SECURITY_PASSWORD_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_SIGNIN_LIMIT"); ok {
		c.Rate.Signin.Limit = v
	}
	if v, ok := getEnvStr("RATE_SIGNIN_WINDOW"); ok {
		c.Rate.Signin.Window = v
	}
	if v, ok := getEnvInt("RATE_FORGOT_LIMIT"); ok {
		c.Rate.Forgot.Limit = v
	}
	if v, ok := getEnvStr("RATE_FORGOT_WINDOW"); ok {
		c.Rate.Forgot.Window = v
	}
	if v, ok := getEnvInt("RATE_MFA_LIMIT"); ok {
		c.Rate.MFA.Limit = v
	}
	if v, ok := getEnvStr("RATE_MFA_WINDOW"); ok {
		c.Rate.MFA.Window = v
	}

	// ───── Providers (Social) ─────
	if v, ok := getEnvCSV("PROVIDERS_TRUSTED"); ok {
		c.Providers.Trusted = v
	}
	if d, ok := getEnvDur("SOCIAL_STATE_TTL"); ok {
		c.Providers.StateTTL = d
	}
	// GOOGLE
	if v, ok := getEnvBool("GOOGLE_ENABLED"); ok {
		c.Providers.Google.Enabled = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Providers.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_REDIRECT_URL"); ok {
		c.Providers.Google.RedirectURL = v
	}
	if v, ok := getEnvCSV("GOOGLE_SCOPES"); ok && len(v) > 0 {
		c.Providers.Google.Scopes = v
	}
	// GITHUB
	if v, ok := getEnvBool("GITHUB_ENABLED"); ok {
		c.Providers.GitHub.Enabled = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.Providers.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.Providers.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_REDIRECT_URL"); ok {
		c.Providers.GitHub.RedirectURL = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}

	// EMAIL
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
	if v, ok := getEnvBool("EMAIL_DEBUG_LINKS"); ok {
		c.Email.DebugEchoLinks = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}

// IsTrustedProvider responde si el proveedor habilita account linking automático.
func (c *Config) IsTrustedProvider(providerID string) bool {
	for _, p := range c.Providers.Trusted {
		if strings.EqualFold(p, providerID) {
			return true
		}
	}
	return false
}
