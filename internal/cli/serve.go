package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablechat/tablechat/internal/api"
	"github.com/tablechat/tablechat/internal/assistant"
	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/session"
	"github.com/tablechat/tablechat/internal/snapshot"
	s3store "github.com/tablechat/tablechat/internal/storage/s3"
	"github.com/tablechat/tablechat/internal/store/duckdb"
)

func newServeCommand(opts Options) *cobra.Command {
	var addr, csvPath, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and serve the chat API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Address = addr
			}
			if csvPath != "" {
				cfg.Data.CSVPath = csvPath
			}
			if dbPath != "" {
				cfg.Data.DBPath = dbPath
			}
			logger := observability.NewLogger(cfg, opts.Stdout)
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TABLECHAT_HTTP_ADDR)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "source CSV path (overrides TABLECHAT_DATA_CSV_PATH)")
	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB file path (overrides TABLECHAT_DATA_DB_PATH)")
	return cmd
}

type application struct {
	handler http.Handler
	store   *duckdb.Store
	loader  *assistant.Loader
}

func (a *application) Close() error {
	return a.store.Close()
}

// newApplication builds every dependency and loads the dataset. A missing
// chat credential or a failed initial load aborts startup.
func newApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	if cfg.UsesPlaceholderSecret() {
		logger.Warn("placeholder_session_secret", slog.String("key", "TABLECHAT_SESSION_SECRET"))
	}

	client, err := chat.NewClient(chat.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize chat client: %w", err)
	}

	store, err := duckdb.Open(ctx, cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}

	var archiver assistant.Archiver
	if cfg.Snapshot.Enabled {
		objects, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		archiver = snapshot.New(store, objects, snapshot.WithLogger(logger), snapshot.WithRetention(cfg.Snapshot.Keep))
	}

	loader := assistant.NewLoader(store, assistant.LoaderConfig{
		CSVPath: cfg.Data.CSVPath,
		Options: dataset.Options{
			DateThreshold: cfg.Data.DateThreshold,
			NumThreshold:  cfg.Data.NumThreshold,
		},
		Archiver: archiver,
		Logger:   logger,
	})
	loaded, err := loader.LoadFull(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset_summary", slog.String("summary", loaded.Summary))

	orchestrator := assistant.New(store, client, session.NewMemoryStore(), loader, assistant.Config{
		DefaultSessionID: cfg.Session.DefaultID,
		PreviewRows:      cfg.Data.PreviewRows,
		Passthrough:      cfg.Query.Passthrough,
		Logger:           logger,
	})
	if cfg.Query.Passthrough {
		logger.Warn("query_passthrough_enabled", slog.String("key", "TABLECHAT_QUERY_PASSTHROUGH"))
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:    logger,
		Assistant: orchestrator,
		Dataset:   loader,
		Readiness: api.CombineReadinessChecks(
			api.CheckStore(store.Ping),
			api.CheckDatasetLoaded(loader),
		),
		DependencyTimeout: time.Second,
	})
	return &application{handler: handler, store: store, loader: loader}, nil
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      app.handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
