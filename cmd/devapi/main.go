package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus/portal/internal/config"
	"campus/portal/internal/fakeapi"
	"campus/portal/internal/logger"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog := logger.FromLog(log.New(os.Stderr, "devapi ", log.LstdFlags), true)

	store := fakeapi.NewStore()
	users, err := fakeapi.Seed(store)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	for _, u := range users {
		log.Printf("seeded %s account %s (password %s)", u.Role, u.Email, fakeapi.DevPassword)
	}

	server := fakeapi.NewServer(cfg, store, appLog, nil)
	httpServer := &http.Server{
		Addr:              cfg.DevAPIAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("devapi http listening on %s", cfg.DevAPIAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
