package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/tbxark/flowagent"
	"github.com/tbxark/flowagent/config"
	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/server"
)

const serviceName = app.Name + "-registry"

func main() {
	bucketURL := flag.String("bucket", "file:///srv/flows", "bucket holding flow definitions")
	flag.Parse()

	cfg := config.NewDefaultConfig()
	cfg.APIPort = 3000
	cfg.BucketURL = *bucketURL
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	logger := log.NewWithLevel(serviceName, os.Getenv("ENV"), app.Version, log.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	reg, err := registry.OpenBucketRegistry(context.Background(), cfg.BucketURL)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.NewServer(serviceName, server.WithRegistry(reg)).SetupRoutes(),
	}
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", httpServer.Addr),
			slog.String("bucket", cfg.BucketURL))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
