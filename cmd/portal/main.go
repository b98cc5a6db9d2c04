package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"campus/portal/internal/config"
	"campus/portal/internal/logger"
	"campus/portal/internal/storage"
)

var version = "dev"

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	std := logger.FromLog(log.New(os.Stderr, "portal ", log.LstdFlags), cfg.Env == "dev")
	var appLog logger.Logger = std
	if cfg.RollbarToken != "" {
		rb := logger.NewRollbar(std, cfg.RollbarToken, cfg.Env, version)
		defer rb.Close()
		appLog = rb
	}

	store, closeStore, err := storage.Open(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer closeStore()

	cli := newCommandLine(ctx, cfg, appLog, store, os.Stdin, os.Stdout)
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}
