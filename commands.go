package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"bookshelf/internal/web"
)

func shellCommand(ctx context.Context, a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "interactive bookshelf shell (the default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(ctx)
		},
	}
}

func serveCommand(ctx context.Context, a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the bookshelf http api",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Addr
			}
			if a.cfg.Env == "prod" {
				gin.SetMode(gin.ReleaseMode)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			store := web.NewCookieStore(a.cfg.SessionSecret, a.cfg.SecureCookies)
			srv := web.NewServer(db, a.logger, store)

			httpServer := &http.Server{
				Addr:        addr,
				Handler:     srv.Handler(),
				IdleTimeout: 15 * time.Minute,
			}
			errCh := make(chan error, 1)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)

			a.logger.Info("server startup", "addr", addr, "db", a.cfg.DBPath)
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-sig:
				a.logger.Info("server shutdown", "status", "kill signal received")
				ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
				defer cancel()

				if err := httpServer.Shutdown(ctx); err != nil {
					return fmt.Errorf("error shutting down server: %w", err)
				}
				a.logger.Info("server shutdown", "status", "shutdown complete")
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides BOOKSHELF_ADDR)")
	return cmd
}

func migrateCommand(ctx context.Context, a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", a.cfg.DBPath, v)
			return nil
		},
	}
}

func seedCommand(ctx context.Context, a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "add sample books and reviews to an empty catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			seeded, err := db.Seed(ctx)
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog already has books; nothing seeded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sample data added.")
			return nil
		},
	}
}

func exportCommand(ctx context.Context, a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "write the whole catalog as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := db.WriteSnapshot(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d books, %d reviews, %d comments to %s\n",
				len(snap.Books), len(snap.Reviews), len(snap.Comments), args[0])
			return nil
		},
	}
}
