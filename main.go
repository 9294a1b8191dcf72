package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookshelf/catalog"
	"bookshelf/internal/config"
	"bookshelf/internal/logger"
)

const version = "1.0"

// app holds what every subcommand needs once flags and config are resolved.
type app struct {
	envFile string
	dbPath  string
	env     string

	cfg    *config.Config
	logger *logger.SlogLogger
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.env != "" {
		cfg.Env = a.env
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Env, os.Stderr, version)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log
	return nil
}

func (a *app) openDB() (*catalog.Database, error) {
	db, err := catalog.Open(a.cfg.DBPath, catalog.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}

func run() error {
	ctx := context.Background()
	a := &app{}

	cmd := &cobra.Command{
		Use:               "bookshelf",
		Short:             "personal bookshelf: books, reviews, comments and reading history",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(ctx)
		},
	}

	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "database file (overrides BOOKSHELF_DB)")
	cmd.PersistentFlags().StringVarP(&a.env, "env", "e", "", "dev or prod (overrides BOOKSHELF_ENV)")

	cmd.AddCommand(
		shellCommand(ctx, a),
		serveCommand(ctx, a),
		migrateCommand(ctx, a),
		seedCommand(ctx, a),
		exportCommand(ctx, a),
	)

	return cmd.Execute()
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}
