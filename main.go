package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davergrounds/galactic-empires/pkg/session"
)

// newServices builds the session service and stream hub around the current
// globals. Tests call it too.
func newServices() {
	streams = NewStreamHub(StreamConfig{Logger: InfoLog})
	scfg := session.Config{
		Repo:     session.NewMemoryStore(cfg.MaxSessions),
		Notifier: streams,
		Logger:   InfoLog,
		Seed:     cfg.Seed,
		TTL:      cfg.SessionTTL,
	}
	if turnLog != nil {
		scfg.Ledger = turnLog
	}
	games = session.NewService(scfg)
	streams.Bind(games)
}

func newHandler() http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux)

	// Wrap Middleware
	handler := middlewareSecurity(mux)
	return middlewareCORS(handler)
}

func run() error {
	var err error
	if cfg, err = loadConfig(); err != nil {
		return err
	}
	if err := setupLogging(cfg.LogDir); err != nil {
		return err
	}

	InfoLog.Println("GALACTIC EMPIRES BOOT SEQUENCE")
	if turnLog, err = initLedger(); err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	if turnLog != nil {
		defer turnLog.Close()
	}
	newServices()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background Services
	go games.RunJanitor(ctx, JanitorInterval, streams.Drop)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		InfoLog.Printf("Listening on %s (max %d sessions, ttl %s)", cfg.Addr, cfg.MaxSessions, cfg.SessionTTL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	InfoLog.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		if ErrorLog != nil {
			ErrorLog.Fatal(err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
