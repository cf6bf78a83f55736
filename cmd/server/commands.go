package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"stride/internal/oauth/models"
	"stride/internal/platform/config"
	"stride/internal/platform/httpserver"
	"stride/internal/platform/logger"
	"stride/internal/platform/postgres"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stride",
		Short: "Stride OAuth2 authorization server",
		Long: `Stride issues opaque bearer tokens to registered clients through the
authorization code, resource owner password and client credentials grants.

Configuration is read from an optional YAML file and STRIDE_* environment
variables, e.g. STRIDE_DATABASE_URL or STRIDE_OAUTH_AUTH_CODE_TTL.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML configuration file")
	addServeFlags(rootCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	addServeFlags(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, newMigrateCmd(), newClientCmd(), newAthleteCmd())
	return rootCmd
}

func addServeFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "Listen address (overrides server.addr)")
	flags.Bool("migrate", false, "Apply pending database migrations before serving")
}

// loadConfig builds the configuration for cmd. Flags bound here take
// precedence over environment and file values.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	v, err := config.NewViper(configFile)
	if err != nil {
		return nil, nil, err
	}
	if flag := cmd.Flags().Lookup("addr"); flag != nil && flag.Changed {
		if err := v.BindPFlag("server.addr", flag); err != nil {
			return nil, nil, fmt.Errorf("bind addr flag: %w", err)
		}
	}
	return buildConfig(v)
}

func buildConfig(v *viper.Viper) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if a.db == nil {
			return errors.New("--migrate requires database.url")
		}
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
		log.InfoContext(ctx, "database migrations applied")
	}

	srv := httpserver.New(cfg.Server, a.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting stride", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.service.StartSweeper(gctx, cfg.OAuth.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *goose.Provider) error {
					results, err := m.Up(ctx)
					for _, r := range results {
						fmt.Fprintf(cmd.OutOrStdout(), "applied %s (%s)\n", r.Source.Path, r.Duration)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *goose.Provider) error {
					result, err := m.Down(ctx)
					if result != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", result.Source.Path)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *goose.Provider) error {
					statuses, err := m.Status(ctx)
					if err != nil {
						return err
					}
					for _, st := range statuses {
						fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", st.State, st.Source.Path)
					}
					return nil
				})
			},
		},
	)
	return migrateCmd
}

func newClientCmd() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth clients",
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, _ := cmd.Flags().GetString("client-id")
			secret, _ := cmd.Flags().GetString("secret")
			redirectURIs, _ := cmd.Flags().GetStringSlice("redirect-uri")

			req := &models.RegisterClientRequest{
				ClientID:     clientID,
				ClientSecret: secret,
				RedirectURIs: redirectURIs,
			}
			if err := req.Validate(); err != nil {
				return err
			}
			return withPersistentApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.service.RegisterClient(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd, registeredClient{
					ID:           result.Client.ID.String(),
					ClientID:     result.Client.ClientID,
					ClientSecret: result.Secret,
					RedirectURIs: result.Client.RedirectURIs,
				})
			})
		},
	}
	createCmd.Flags().String("client-id", "", "Public client identifier")
	createCmd.Flags().String("secret", "", "Client secret; generated when empty")
	createCmd.Flags().StringSlice("redirect-uri", nil, "Registered redirect URI (repeatable)")
	_ = createCmd.MarkFlagRequired("client-id")

	clientCmd.AddCommand(createCmd)
	return clientCmd
}

type registeredClient struct {
	ID           string   `json:"id"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
}

func newAthleteCmd() *cobra.Command {
	athleteCmd := &cobra.Command{
		Use:   "athlete",
		Short: "Manage athlete accounts",
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an athlete with a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userName, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			return withPersistentApp(cmd, func(ctx context.Context, a *app) error {
				athlete, err := a.service.CreateAthlete(ctx, userName, password)
				if err != nil {
					return err
				}
				return printJSON(cmd, athlete)
			})
		},
	}
	createCmd.Flags().String("username", "", "Login user name")
	createCmd.Flags().String("password", "", "Login password")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	athleteCmd.AddCommand(createCmd)
	return athleteCmd
}

// withPersistentApp runs fn against an app backed by Postgres. Records written
// to the in-memory stores would vanish on exit, so a database is required.
func withPersistentApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *goose.Provider) error) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := postgres.NewMigrator(db)
	if err != nil {
		return err
	}
	return fn(ctx, provider)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
