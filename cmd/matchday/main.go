package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerroll/matchday/internal/app"
	"github.com/tigerroll/matchday/internal/cli"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

// embeddedConfig is the default configuration compiled into the binary.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first signal cancels the running command; in-flight items stay pending.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping; the session stays resumable.", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	err := cli.Execute(ctx, app.Bootstrap{
		EnvFilePath:    envFilePath,
		EmbeddedConfig: embeddedConfig,
		DBAdapters:     os.Getenv("DB_ADAPTERS"),
	}, os.Args[1:], os.Stdout)
	if err != nil {
		os.Exit(1)
	}
}
