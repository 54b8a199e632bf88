package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/nexusaudit/internal/application"
	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/logging"
	"github.com/JonMunkholm/nexusaudit/internal/web"
)

func main() {
	// Overload lets .env win over variables already set in the shell.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	t, err := tables.Load(cfg.Tables.File)
	if err != nil {
		slog.Error("failed to load lookup tables", "error", err)
		os.Exit(1)
	}
	slog.Info("lookup tables loaded",
		"file", cfg.Tables.File,
		"synonyms", len(t.HeaderSynonyms),
		"profiles", len(t.Profiles),
	)

	pipeline := application.Build(cfg, t, slog.Default())
	server := web.NewServer(cfg, pipeline)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
