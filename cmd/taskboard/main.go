package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/baiirun/taskboard/internal/auth"
	"github.com/baiirun/taskboard/internal/config"
	"github.com/baiirun/taskboard/internal/db"
	"github.com/baiirun/taskboard/internal/metrics"
	"github.com/baiirun/taskboard/internal/model"
	"github.com/baiirun/taskboard/internal/server"
	"github.com/baiirun/taskboard/internal/tasks"
)

const Version = "0.1.0"

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string

	flagFirstName  string
	flagSecondName string
	flagLogin      string
	flagPassword   string
	flagRole       string
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Task tracking API with admin and user roles",
	Long: `A small task tracker. Admins create, edit and delete tasks and assign them
to users; any logged-in user can move a task between pending, started and finished.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := newLogger(cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(logger)

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		tokens := auth.NewTokenService([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
		srv := server.New(server.Config{
			CookieName:   cfg.Auth.CookieName,
			SecureCookie: cfg.Auth.SecureCookie,
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}, server.Deps{
			Guard:         auth.NewGuard(tokens),
			Authenticator: auth.NewAuthenticator(store, tokens),
			Users:         store,
			Tasks:         tasks.NewService(store, logger),
			Metrics:       metrics.New(),
			Logger:        logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(cfg.Server.Addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the taskboard database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s database\n", store.Driver())
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		role := model.Role(flagRole)
		if !role.IsValid() {
			return fmt.Errorf("invalid role %q (use admin or user)", flagRole)
		}
		if flagLogin == "" || flagPassword == "" {
			return errors.New("--login and --password are required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		hash, err := auth.HashPassword(flagPassword, cfg.Auth.BcryptCost)
		if err != nil {
			return err
		}
		user := &model.User{
			FirstName:    flagFirstName,
			SecondName:   flagSecondName,
			Login:        flagLogin,
			PasswordHash: hash,
			Role:         role,
		}
		if err := store.CreateUser(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %d)\n", user.Role, user.Login, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		users, err := store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOGIN\tROLE\tNAME")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Login, u.Role, strings.TrimSpace(u.FirstName+" "+u.SecondName))
		}
		return w.Flush()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Session token utilities",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <login>",
	Short: "Print a session token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		user, err := store.GetUserByLogin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		token, err := auth.NewTokenService([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL).Issue(user)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a default config file with a generated secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}

		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		cfg := config.DefaultConfig()
		cfg.Auth.Secret = hex.EncodeToString(secret)
		if err := cfg.SaveToFile(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskboard version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database DSN (sqlite path or mysql DSN)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	userAddCmd.Flags().StringVar(&flagLogin, "login", "", "Login name")
	userAddCmd.Flags().StringVar(&flagPassword, "password", "", "Password")
	userAddCmd.Flags().StringVar(&flagFirstName, "first-name", "", "First name")
	userAddCmd.Flags().StringVar(&flagSecondName, "second-name", "", "Second name")
	userAddCmd.Flags().StringVar(&flagRole, "role", string(model.RoleUser), "Role (admin or user)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	tokenCmd.AddCommand(tokenIssueCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers the config file, the environment and the command line.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flagConfig != "" {
		loaded, err := config.LoadFromFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.LookupEnv)
	if flagDB != "" {
		cfg.Database.DSN = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*db.DB, error) {
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		return nil, err
	}
	store, err := db.OpenDriver(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
