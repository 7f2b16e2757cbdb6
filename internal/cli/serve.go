package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/api"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/sale"
	"github.com/erazemk/izposoja/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	DBPath    string
	Addr      string
	LogPath   string
	AdminUser string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and the notification dispatcher.

A missing database is created on first run and the generated admin
password is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd, cfg, opts.AdminUser)
		},
	}

	cmd.Flags().StringVarP(&opts.DBPath, "db", "d", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVarP(&opts.Addr, "addr", "a", "", "listen address (overrides config)")
	cmd.Flags().StringVarP(&opts.LogPath, "log", "l", "", "log file path (overrides config)")
	cmd.Flags().StringVarP(&opts.AdminUser, "user", "u", "Admin", "admin username on first run")

	return cmd
}

// apply overrides config values with the flags that were set.
func (o *ServeOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = o.DBPath
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = o.Addr
	}
	if cmd.Flags().Changed("log") {
		cfg.Log.Path = o.LogPath
	}
}

func serve(cmd *cobra.Command, cfg config.Config, adminUser string) error {
	closeLog, err := setupLogger(cfg.Log.Path, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer closeLog()

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.Database.Path, adminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cmd.OutOrStdout(), cfg.Database.Path, adminUser, password)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	jwtSecret, err := store.ResolveJWTSecret(context.Background(), database, cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	sales := sale.NewService(database, cfg.Sales.Approval.Policy())

	dispatcher := &sale.Dispatcher{
		DB:          database,
		Deliverer:   sale.LogDeliverer{},
		Interval:    cfg.Notifications.DispatchInterval,
		MaxAttempts: cfg.Notifications.MaxAttempts,
	}
	if err := dispatcher.Start(); err != nil {
		return err
	}
	defer dispatcher.Stop()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, jwtSecret, sales)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr,
		"dispatch_interval", cfg.Notifications.DispatchInterval)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}
