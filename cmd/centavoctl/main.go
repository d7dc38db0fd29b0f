package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/centavo/internal/config"
	authsvc "github.com/dropDatabas3/centavo/internal/http/services/auth"
	"github.com/dropDatabas3/centavo/internal/store/core"
	"github.com/dropDatabas3/centavo/internal/store/pg"
)

// centavoctl opera directo contra el store, sin pasar por la API. Pensado
// para mantenimiento: migraciones, limpieza y escapes de emergencia (perdí
// el teléfono y no tengo backup codes).

func loadConfig(configPath, envFile string) (*config.Config, error) {
	if envFile != "" {
		if st, err := os.Stat(envFile); err == nil && !st.IsDir() {
			_ = godotenv.Load(envFile)
		}
	}
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		if st, err := os.Stat("configs/config.yaml"); err == nil && !st.IsDir() {
			configPath = "configs/config.yaml"
		}
	}
	return config.Load(configPath)
}

func openRepo(ctx context.Context, cfg *config.Config) (core.Repository, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory", "":
		return nil, fmt.Errorf("storage driver %q: centavoctl necesita una base persistente", cfg.Storage.Driver)
	default:
		return nil, fmt.Errorf("storage driver desconocido: %q", cfg.Storage.Driver)
	}
}

func main() {
	var (
		configPath string
		envFile    string
	)

	ctx := context.Background()

	// abre config+repo una sola vez para los comandos que lo necesitan
	withRepo := func(run func(ctx context.Context, cfg *config.Config, repo core.Repository) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			repo, err := openRepo(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()
			return run(ctx, cfg, repo)
		}
	}

	root := &cobra.Command{
		Use:   "centavoctl",
		Short: "Herramienta de mantenimiento de Centavo (opera directo sobre el store)",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	// gen-key
	genKeyCmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Genera una SECRETBOX_MASTER_KEY nueva (base64 de 32 bytes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			k := make([]byte, 32)
			if _, err := rand.Read(k); err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(k))
			return nil
		},
	}

	// migrate
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes (sólo postgres)",
		RunE: withRepo(func(ctx context.Context, cfg *config.Config, repo core.Repository) error {
			pgStore, ok := repo.(*pg.Store)
			if !ok {
				return fmt.Errorf("migrate requiere storage postgres")
			}
			if err := pgStore.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("migraciones al día")
			return nil
		}),
	}

	// sessions
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Operaciones sobre sesiones"}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Borra sesiones expiradas",
		RunE: withRepo(func(ctx context.Context, cfg *config.Config, repo core.Repository) error {
			n, err := repo.DeleteExpiredSessions(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("purgadas=%d\n", n)
			return nil
		}),
	}

	var revokeEmail string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca todas las sesiones de un usuario",
		RunE: withRepo(func(ctx context.Context, cfg *config.Config, repo core.Repository) error {
			if revokeEmail == "" {
				return fmt.Errorf("--email es requerido")
			}
			u, err := repo.GetUserByEmail(ctx, authsvc.NormalizeEmail(revokeEmail))
			if err != nil {
				return fmt.Errorf("usuario: %w", err)
			}
			n, err := repo.DeleteSessionsByUser(ctx, u.ID)
			if err != nil {
				return err
			}
			fmt.Printf("revocadas=%d user=%s\n", n, u.ID)
			return nil
		}),
	}
	revokeCmd.Flags().StringVar(&revokeEmail, "email", "", "email del usuario")

	sessionsCmd.AddCommand(purgeCmd, revokeCmd)

	// user
	userCmd := &cobra.Command{Use: "user", Short: "Operaciones sobre usuarios"}

	var verifyEmailAddr string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Marca el email de un usuario como verificado (sin token)",
		RunE: withRepo(func(ctx context.Context, cfg *config.Config, repo core.Repository) error {
			if verifyEmailAddr == "" {
				return fmt.Errorf("--email es requerido")
			}
			u, err := repo.GetUserByEmail(ctx, authsvc.NormalizeEmail(verifyEmailAddr))
			if err != nil {
				return fmt.Errorf("usuario: %w", err)
			}
			if err := repo.SetEmailVerified(ctx, u.ID, true); err != nil {
				return err
			}
			fmt.Printf("verificado user=%s\n", u.ID)
			return nil
		}),
	}
	verifyCmd.Flags().StringVar(&verifyEmailAddr, "email", "", "email del usuario")

	// mfa disable: escape de emergencia cuando el usuario perdió TOTP y
	// backup codes. Revoca también las sesiones activas.
	var mfaEmail string
	mfaDisableCmd := &cobra.Command{
		Use:   "mfa-disable",
		Short: "Desactiva 2FA de un usuario y revoca sus sesiones",
		RunE: withRepo(func(ctx context.Context, cfg *config.Config, repo core.Repository) error {
			if mfaEmail == "" {
				return fmt.Errorf("--email es requerido")
			}
			u, err := repo.GetUserByEmail(ctx, authsvc.NormalizeEmail(mfaEmail))
			if err != nil {
				return fmt.Errorf("usuario: %w", err)
			}
			if err := repo.DisableMFATOTP(ctx, u.ID); err != nil {
				return err
			}
			if err := repo.SetTwoFactorEnabled(ctx, u.ID, false); err != nil {
				return err
			}
			n, err := repo.DeleteSessionsByUser(ctx, u.ID)
			if err != nil {
				return err
			}
			fmt.Printf("2fa desactivado user=%s sesiones_revocadas=%d\n", u.ID, n)
			return nil
		}),
	}
	mfaDisableCmd.Flags().StringVar(&mfaEmail, "email", "", "email del usuario")

	userCmd.AddCommand(verifyCmd, mfaDisableCmd)

	root.AddCommand(genKeyCmd, migrateCmd, sessionsCmd, userCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
