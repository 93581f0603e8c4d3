package main

import (
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/restin-ai/authcore/internal/config"
	migrations "github.com/restin-ai/authcore/migrations/postgres"
)

// newMigrateCmd aplica las migraciones embebidas contra STORAGE_DSN.
// Idempotente: cada archivo se aplica una sola vez.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones del principal store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("migrate requiere STORAGE_DSN")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			const track = `CREATE TABLE IF NOT EXISTS schema_migrations (
				name TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`
			if _, err := pool.Exec(ctx, track); err != nil {
				return err
			}

			entries, err := migrations.FS.ReadDir(".")
			if err != nil {
				return err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)

			for _, name := range names {
				var done bool
				err := pool.QueryRow(ctx,
					`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&done)
				if err != nil {
					return err
				}
				if done {
					fmt.Printf("skip  %s\n", name)
					continue
				}

				sql, err := migrations.FS.ReadFile(name)
				if err != nil {
					return err
				}
				tx, err := pool.Begin(ctx)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, string(sql)); err != nil {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("apply %s: %w", name, err)
				}
				if _, err := tx.Exec(ctx,
					`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
				if err := tx.Commit(ctx); err != nil {
					return err
				}
				fmt.Printf("apply %s\n", name)
			}
			return nil
		},
	}
}
