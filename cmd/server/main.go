package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orimap/orimap/internal/config"
	"github.com/orimap/orimap/internal/events"
	"github.com/orimap/orimap/internal/mapservice"
	mw "github.com/orimap/orimap/internal/middleware"
	"github.com/orimap/orimap/internal/session"
	"github.com/orimap/orimap/internal/store"
	"github.com/orimap/orimap/internal/symbolset"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open snapshot store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	symbols := symbolset.Default()
	if cfg.SymbolSet != "" {
		symbols, err = symbolset.LoadFile(cfg.SymbolSet)
		if err != nil {
			slog.Error("load symbol set", "path", cfg.SymbolSet, "error", err)
			os.Exit(1)
		}
	}

	tokens, err := session.NewService(cfg.SessionSecret, session.DefaultTTL)
	if err != nil {
		slog.Error("create session service", "error", err)
		os.Exit(1)
	}

	templates, err := mapservice.NewTemplateStore(cfg.TemplateDir)
	if err != nil {
		slog.Error("create template store", "dir", cfg.TemplateDir, "error", err)
		os.Exit(1)
	}

	var metrics *mapservice.Metrics
	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = mapservice.NewMetrics(registry)
	}

	hub := events.NewHub(slog.Default())
	go hub.Run(ctx)

	service := mapservice.NewService(st, hub, metrics, mapservice.Options{
		UndoLimit: cfg.UndoLimit,
		SymbolSet: symbols,
		Logger:    slog.Default(),
	})
	handler := mapservice.NewHandler(service, tokens, hub, templates, cfg.OriginHosts())

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))
	r.Use(metrics.Middleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	handler.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}

		// Stop the hub after the listener so no client registers late.
		cancel()
		service.CloseAll()
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-idle
}

// openStore picks PostgreSQL when a database URL is configured and the
// local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		slog.Info("using postgres snapshot store")
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	slog.Info("using sqlite snapshot store", "path", cfg.SQLitePath)
	lite, err := store.NewSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
