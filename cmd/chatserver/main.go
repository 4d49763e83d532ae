package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ergoutree/webchat/internal/broadcast"
	"github.com/ergoutree/webchat/internal/config"
	"github.com/ergoutree/webchat/internal/database"
	"github.com/ergoutree/webchat/internal/history"
	"github.com/ergoutree/webchat/internal/router"
	"github.com/ergoutree/webchat/internal/session"
	"github.com/ergoutree/webchat/internal/store"
	"github.com/ergoutree/webchat/internal/transport"
	"github.com/ergoutree/webchat/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatserver.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting chat server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Persistence is optional; the relay runs fully in memory without it.
	var pool *pgxpool.Pool
	var messageStore store.MessageStore
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := store.NewPostgres(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		messageStore = pg
		logger.Info("database connected")
	} else {
		logger.Warn("no database configured; messages will not be persisted")
	}

	// Core composition: one registry, one broadcaster, one history buffer,
	// one router, shared by every connection goroutine.
	registry := session.NewRegistry()
	caster := broadcast.New(registry, logger)
	hist := history.New(cfg.Chat.HistorySize)
	rt := router.New(router.Config{
		ReplayCount:  cfg.Chat.ReplayCount,
		StoreTimeout: cfg.Chat.StoreTimeout,
	}, registry, caster, hist, messageStore, logger)

	endpoint := transport.New(cfg.Server, rt, logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WSPath, endpoint.Handler())
	mux.Handle("/health", healthHandler(pool, registry, hist))

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.ListenAddr, "ws_path", cfg.Server.WSPath)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down...")
		rt.BroadcastSystemNotice("服务器即将关闭")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("chat server stopped")
}

// healthHandler reports database connectivity and in-memory state.
func healthHandler(pool *pgxpool.Pool, registry *session.Registry, hist *history.Buffer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		} else {
			health.Components["postgres"] = "disabled"
		}

		health.Components["sessions"] = registry.Count()
		health.Components["history"] = hist.Len()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
