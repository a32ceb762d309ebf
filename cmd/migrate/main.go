package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/kevin07696/smilepay-service/internal/config"
	"github.com/kevin07696/smilepay-service/internal/db/migrations"
)

const dialect = "postgres"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SmilePay service database migrations",
		Long: `Runs goose migrations against the service database.

Reads DATABASE_URL or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSL_MODE.
Migrations embedded in the binary are used unless --dir is given.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "directory with migration files")

	// goose commands that operate on an open database
	dbCommands := []struct {
		use   string
		short string
		args  cobra.PositionalArgs
	}{
		{"up", "Migrate the DB to the most recent version available", cobra.NoArgs},
		{"up-by-one", "Migrate the DB up by 1", cobra.NoArgs},
		{"up-to VERSION", "Migrate the DB to a specific VERSION", cobra.ExactArgs(1)},
		{"down", "Roll back the version by 1", cobra.NoArgs},
		{"down-to VERSION", "Roll back to a specific VERSION", cobra.ExactArgs(1)},
		{"redo", "Re-run the latest migration", cobra.NoArgs},
		{"reset", "Roll back all migrations", cobra.NoArgs},
		{"status", "Dump the migration status for the current DB", cobra.NoArgs},
		{"version", "Print the current version of the database", cobra.NoArgs},
	}
	for _, c := range dbCommands {
		root.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  c.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGoose(cmd.Name(), dir, args)
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "create NAME [sql|go]",
		Short: "Create a new migration file with the current timestamp (requires --dir)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return errors.New("create requires --dir")
			}
			kind := "sql"
			if len(args) == 2 {
				kind = args[1]
			}
			return goose.Create(nil, dir, args[0], kind)
		},
	})

	return root
}

func runGoose(command, dir string, args []string) error {
	// Only the database section is needed; the full service config is not validated here
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("failed to read database config: %w", err)
	}

	db, err := openDB(dbCfg.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if dir == "" {
		goose.SetBaseFS(migrations.FS)
		dir = "."
	}

	if err := goose.Run(command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func openDB(dsn string) (*sql.DB, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
