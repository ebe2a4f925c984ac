// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mdpub/internal/api"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/catalog/remote"
	"github.com/starford/mdpub/internal/inbox"
	"github.com/starford/mdpub/internal/linker"
	"github.com/starford/mdpub/internal/localcatalog"
	"github.com/starford/mdpub/internal/locator"
	"github.com/starford/mdpub/internal/mcpserver"
	"github.com/starford/mdpub/internal/publisher"
	"github.com/starford/mdpub/internal/sse"
	"github.com/starford/mdpub/internal/storage"
	"github.com/starford/mdpub/internal/translator"
)

// components are the long-lived services shared by the HTTP server, the
// inbox watcher and the MCP server.
type components struct {
	catalog   catalog.Catalog
	db        *localcatalog.DB // nil for the remote backend
	publisher *publisher.Service
}

func (c *components) close() {
	if c.db != nil {
		c.db.Close()
	}
}

func (a *application) init(opts []Option) (*Config, *slog.Logger, error) {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if a.version == "" {
		a.version = "dev"
	}
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return a.config, logger, nil
}

// openCatalog connects the configured catalog backend. The local backend gets
// its community and orphan folders created on first start.
func openCatalog(ctx context.Context, cfg *Config, logger *slog.Logger) (catalog.Catalog, *localcatalog.DB, error) {
	if cfg.Catalog.Backend != BackendLocal {
		c, err := remote.New(cfg.Catalog.URL,
			remote.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}),
			remote.WithToken(cfg.Catalog.Token),
			remote.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("init catalog: %w", err)
		}
		return c, nil, nil
	}

	db, err := localcatalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init catalog: %w", err)
	}
	folders := []struct{ id, title, parent string }{
		{cfg.Catalog.CommunityID, "Community", ""},
		{cfg.Catalog.OrphanProjectsID, "Orphan projects", cfg.Catalog.CommunityID},
		{cfg.Catalog.OrphanProductsID, "Orphan products", cfg.Catalog.CommunityID},
	}
	for _, f := range folders {
		if f.id == "" || f.id == f.parent {
			continue
		}
		if err := db.EnsureFolder(ctx, f.id, f.title, f.parent); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init catalog: %w", err)
		}
	}
	return db, db, nil
}

// build wires the catalog, translator and publisher. When broker is set, item
// mutations and created links are reported to it.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, broker *sse.Broker) (*components, error) {
	cat, db, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, err := translator.New(cfg.Translator.URL,
		translator.WithHTTPClient(&http.Client{Timeout: cfg.Translator.Timeout}),
		translator.WithLogger(logger),
	)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("init translator: %w", err)
	}

	pubOpts := []publisher.Option{publisher.WithLogger(logger)}
	if broker != nil {
		lk := linker.New(cat, locator.New(cat, logger), logger, linker.WithLinkHook(broker.LinkEvent))
		pubOpts = append(pubOpts, publisher.WithLinker(lk), publisher.WithNotifier(broker))
	}
	svc := publisher.New(cat, tr, publisher.Config{
		CommunityID:      cfg.Catalog.CommunityID,
		OrphanProjectsID: cfg.Catalog.OrphanProjectsID,
		OrphanProductsID: cfg.Catalog.OrphanProductsID,
		ForceUpdate:      cfg.Catalog.ForceUpdate,
		MetadataFile:     cfg.Catalog.MetadataFile,
		ISO1File:         cfg.Catalog.ISO1File,
		ISO2File:         cfg.Catalog.ISO2File,
	}, pubOpts...)

	return &components{catalog: cat, db: db, publisher: svc}, nil
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Run starts the HTTP server (and the inbox watcher when configured).
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, logger, err := app.init(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("catalog_backend", cfg.Catalog.Backend),
		slog.String("community_id", cfg.Catalog.CommunityID),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	comps, err := build(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer comps.close()

	// Build API router.
	apiRouter := api.NewRouter(api.NewHandler(comps.publisher, app.version), cfg.Auth.Mode, cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"ok"}`)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if comps.db != nil {
			if err := comps.db.Ping(req.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"unavailable"}`)
				return
			}
		}
		writeStatus(w, http.StatusOK, `{"status":"ok"}`)
	})

	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the inbox watcher with SSE callback.
	if cfg.Inbox.Enabled() {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		in := inbox.New(store, comps.publisher,
			inbox.WithLogger(logger),
			inbox.WithDebounce(cfg.Inbox.Debounce),
			inbox.WithCallback(broker.InboxEvent),
		)
		g.Go(func() error {
			if err := in.Watch(gCtx); err != nil {
				return fmt.Errorf("inbox watcher error: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the publishing tools over stdio. Logs go to stderr because
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	cfg, logger, err := app.init(opts)
	if err != nil {
		return err
	}

	comps, err := build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer comps.close()

	logger.Info("MCP server starting", slog.String("catalog_backend", cfg.Catalog.Backend))
	return mcpserver.New(comps.publisher, comps.catalog, app.version).ServeStdio()
}
