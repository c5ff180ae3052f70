package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/syncline/syncline/example/storefront/internal/app"
	"github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration
// file, used to load configuration at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS is an embedded file system containing the sync metadata
// schema migrations.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

// main runs a full preview/execute/status round trip against a seeded
// in-memory storefront, persisting sync metadata in SQLite.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, migrationsFS)
}
