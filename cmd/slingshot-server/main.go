package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/logging"
	"github.com/five82/slingshot/internal/server"
	"github.com/five82/slingshot/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := serve(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "slingshot-server: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := logging.New(os.Stderr, level, logging.FormatText)

	adapter, err := storage.Open(ctx, cfg.Storage, cfg.Server.PublicURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(server.Options{Config: cfg, Adapter: adapter, Logger: logger})
	if err != nil {
		return err
	}
	logger.Info("storage ready", "driver", cfg.Storage.Driver, "bucket", cfg.Storage.Bucket, "dir", cfg.Storage.Dir)
	return srv.Run(ctx)
}
