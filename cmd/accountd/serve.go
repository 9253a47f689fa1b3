// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/accountd/accountd/internal/account"
	acctpg "github.com/accountd/accountd/internal/account/postgres"
	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/geoip"
	"github.com/accountd/accountd/internal/httpapi"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/notify"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

// BackgroundServer is a listener the serve command starts, monitors, and
// shuts down. Both the API and observability servers satisfy it.
type BackgroundServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps holds injectable dependencies for testing. Nil fields fall back
// to production implementations.
type ServeDeps struct {
	ConfigLoader               func(path string, flags *pflag.FlagSet) (*config.Config, error)
	PoolFactory                func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
	MigratorFactory            func(databaseURL string) (*store.Migrator, error)
	APIServerFactory           func(addr string, handler http.Handler) BackgroundServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) BackgroundServer
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account service",
		Long: `Start the account service: connect to PostgreSQL, wire the
lifecycle engine to its mail and geolocation collaborators, and expose
metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, autoMigrate, nil)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations on startup")
	cmd.Flags().String("server.addr", "", "account API listen address")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("base_url", "", "public base URL used in email links")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, autoMigrate bool, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = store.Connect
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = store.NewMigrator
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handler http.Handler) BackgroundServer {
			return httpapi.NewServer(addr, handler)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) BackgroundServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("accountd", version, cfg.Log.Format)

	slog.Info("starting account service",
		"server_addr", cfg.Server.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	if autoMigrate {
		migrator, err := deps.MigratorFactory(cfg.Database.URL)
		if err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close() //nolint:errcheck // migration error takes precedence
			return err
		}
		if err := migrator.Close(); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	var dispatcher notify.Dispatcher
	if cfg.SMTP.Enabled {
		dispatcher = notify.NewSMTPDispatcher(
			cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password,
			cfg.SMTP.From,
		)
		slog.Info("mail dispatch enabled", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		dispatcher = &notify.LogDispatcher{}
		slog.Info("mail dispatch disabled, messages are logged")
	}

	mailer, err := notify.NewMailer(dispatcher, cfg.BaseURL)
	if err != nil {
		return err
	}

	svc, err := account.NewService(
		acctpg.NewAccountRepository(pool),
		account.NewArgon2idHasher(),
		mailer,
		geoip.NewResolver(cfg.GeoIP.Token),
	)
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	handler, err := httpapi.NewHandler(&policyService{
		Service:         svc,
		minSecretLength: cfg.Account.MinSecretLength,
	}, slog.Default())
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiServer := deps.APIServerFactory(cfg.Server.Addr, handler)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")
	slog.Info("api server listening", "addr", apiServer.Addr())

	// Readiness tracks the database, the one dependency the service cannot
	// work without.
	obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrChan, err := obsServer.Start()
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("failed to stop api server during cleanup", "error", stopErr)
		}
		return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	slog.Info("observability server started", "addr", obsServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Account service started")
	slog.Info("account service ready")

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// policyService binds the configured secret policy to the operations that
// take one, so the API layer stays policy-agnostic.
type policyService struct {
	*account.Service
	minSecretLength int
}

func (p *policyService) Register(ctx context.Context, in account.RegisterInput) (*account.Account, error) {
	return p.Service.RegisterWithPolicy(ctx, in, p.minSecretLength)
}

func (p *policyService) CompletePasswordReset(ctx context.Context, token, newSecret string) error {
	return p.Service.CompletePasswordResetWithPolicy(ctx, token, newSecret, p.minSecretLength)
}

// monitorServerErrors cancels the context when a background server reports
// an error, so a failed listener takes the whole process down gracefully.
// It exits when an error arrives, the channel closes, or the context ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
