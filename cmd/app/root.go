package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"einvoicing/internal/app"
	"einvoicing/internal/config"
	"einvoicing/internal/core"
	"einvoicing/internal/db"
	"einvoicing/internal/logger"
	"einvoicing/internal/store/memory"
	"einvoicing/internal/store/postgres"
)

var version = "0.1.0"

// runtime carries what PersistentPreRunE prepares for the subcommands.
type runtime struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	svc    app.ApplicationService
	memory bool
}

var rt runtime

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Electronic invoicing engine",
	Long: `Create, number and move electronic invoices through their lifecycle.

Commands run against DATABASE_URL unless --memory is given, in which case an
empty in-memory store is used for the duration of the command.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rt.pool != nil {
			rt.pool.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rt.memory, "memory", false, "Use an in-memory store instead of PostgreSQL")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt.cfg = cfg
	return nil
}

// service builds the application service on the configured store.
func (r *runtime) service(ctx context.Context) (app.ApplicationService, error) {
	if r.svc != nil {
		return r.svc, nil
	}
	opts := []core.Option{
		core.WithRounding(r.cfg.RoundingMode),
		core.WithLogger(logger.WithComponent("invoicing")),
	}
	refs := core.NewPlaceholderReferenceGenerator(r.cfg.ReferencePrefix)

	if r.memory {
		store := memory.New()
		r.svc = app.NewAppService(core.NewInvoiceService(store, store, refs, opts...), store)
		return r.svc, nil
	}

	pool, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	store := postgres.New(pool)
	r.svc = app.NewAppService(core.NewInvoiceService(store, store, refs, opts...), store)
	return r.svc, nil
}

func (r *runtime) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}
	if err := r.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: r.cfg.DatabaseURL, LockTimeout: r.cfg.DBLockTimeout})
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
