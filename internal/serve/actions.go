package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtnitsch/second-look/internal/common"
	"github.com/urfave/cli/v2"
)

// ServeAction runs the HTTP API until interrupted.
func ServeAction(c *cli.Context) error {
	svc, err := common.Setup(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer svc.Close()
	logger := svc.Logger

	addr := svc.Config.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	sessionID, err := svc.DB.StartSession("serve", addr)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer func() {
		if err := svc.DB.EndSession(sessionID); err != nil {
			logger.Warn("failed to end session", "session_id", sessionID, "error", err)
		}
	}()

	opts := Options{
		Store:     svc.DB,
		Pipeline:  svc.Pipeline(nil, sessionID),
		Logger:    logger,
		SessionID: sessionID,
	}
	if svc.Bank != nil {
		opts.Bank = svc.Bank
	}
	if svc.AI != nil {
		opts.Analyzer = svc.AI
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "session_id", sessionID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
