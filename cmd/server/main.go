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

	"github.com/classpod/classpod/internal/api"
	"github.com/classpod/classpod/internal/api/ws"
	"github.com/classpod/classpod/internal/config"
	"github.com/classpod/classpod/internal/container"
	"github.com/classpod/classpod/internal/database"
	"github.com/classpod/classpod/internal/k8s"
	"github.com/classpod/classpod/internal/lti"
	"github.com/classpod/classpod/internal/session"
	"github.com/classpod/classpod/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	platforms, err := config.LoadFile(cfg.PlatformConfig)
	if err != nil {
		slog.Error("failed to load platform configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	verifier, err := lti.NewJWKSVerifier(ctx, platforms)
	if err != nil {
		slog.Error("failed to initialize launch verifier", "error", err)
		os.Exit(1)
	}

	var states container.StateProvider
	var checker k8s.HealthChecker
	k8sClient, err := initK8sClient(cfg)
	if err != nil {
		slog.Warn("kubernetes client initialization failed; container states will use the placeholder", "error", err)
		states = container.FixedStateProvider{}
	} else {
		states = k8sClient
		checker = k8sClient
	}

	sessions := session.NewStore(cfg.SessionCookieName, cfg.SessionSecret, cfg.SessionValidityDays)
	directory := user.NewDirectory(user.NewRepository(db.Pool()))
	catalog := container.NewCatalog(platforms.Containers, states)

	router := api.NewRouter(api.RouterDeps{
		Sessions:    sessions,
		Platforms:   platforms,
		Verifier:    verifier,
		Directory:   directory,
		Catalog:     catalog,
		Hub:         ws.NewHub(),
		K8sChecker:  checker,
		DBPinger:    db,
		AppTitle:    cfg.AppTitle,
		VLEURL:      cfg.VLEURL,
		BaseURL:     cfg.BaseURL,
		FrontendDir: cfg.FrontendDir,
		Version:     cfg.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting classpod server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func initK8sClient(cfg *config.Config) (*k8s.Client, error) {
	var opts []k8s.ClientOption
	if cfg.KubeconfigPath != "" {
		opts = append(opts, k8s.WithKubeconfig(cfg.KubeconfigPath))
	}
	return k8s.NewClient(cfg.Namespace, opts...)
}
