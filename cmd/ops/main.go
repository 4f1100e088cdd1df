// Package main implements the BizPulse operator CLI.
//
// Usage:
//
//	go run ./cmd/ops migrate
//	go run ./cmd/ops plans import [--file plans.yaml]
//	go run ./cmd/ops plans list
//	go run ./cmd/ops users promote owner@example.com
//	go run ./cmd/ops secrets init --env dev
//
// Database commands read DATABASE_URL (or DATABASE_URL_SSM_PARAM outside
// local development) the same way the API does.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bizpulse/internal/config"
	"bizpulse/internal/db"
	"bizpulse/internal/types"
)

// planStore is the plan catalog access used by the plans commands.
type planStore interface {
	Upsert(ctx context.Context, p *types.SubscriptionPlan) error
	ListAll(ctx context.Context) ([]*types.SubscriptionPlan, error)
}

// userStore is the user access used by the users commands.
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateRole(ctx context.Context, id string, role types.Role) error
}

// stores bundles the repositories of one database session.
type stores struct {
	plans   planStore
	users   userStore
	migrate func(ctx context.Context) error
	close   func()
}

// app carries the dependencies shared by every command. Tests replace
// openDB and openSSM with fakes.
type app struct {
	out     io.Writer
	logger  *slog.Logger
	openDB  func(ctx context.Context) (*stores, error)
	openSSM func(ctx context.Context, region, profile string) (*awsSession, error)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	a := &app{
		out:     os.Stdout,
		logger:  logger,
		openDB:  openDatabase,
		openSSM: newAWSSession,
	}

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ops",
		Short:         "BizPulse operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.AddCommand(
		newMigrateCmd(a),
		newPlansCmd(a),
		newUsersCmd(a),
		newSecretsCmd(a),
	)
	return root
}

// openDatabase connects with the API's database settings.
func openDatabase(ctx context.Context) (*stores, error) {
	var provider config.SecretProvider
	if env := os.Getenv("APP_ENV"); env != "local" {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = defaultRegion
		}
		provider = config.NewSSMProvider(region, env)
	}

	cfg, err := config.LoadDatabaseConfig(provider)
	if err != nil {
		return nil, fmt.Errorf("loading database configuration: %w", err)
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.URL.Unmask(),
		MaxConns: 2,
	})
	if err != nil {
		return nil, err
	}

	return &stores{
		plans:   db.NewPlanRepository(pool),
		users:   db.NewUserRepository(pool),
		migrate: func(ctx context.Context) error { return db.Migrate(ctx, pool) },
		close:   pool.Close,
	}, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
