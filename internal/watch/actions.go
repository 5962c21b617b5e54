package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/second-look/internal/common"
	"github.com/dtnitsch/second-look/pkg/browser"
	"github.com/dtnitsch/second-look/pkg/pipeline"
	"github.com/dtnitsch/second-look/pkg/watcher"
	"github.com/urfave/cli/v2"
)

// WatchAction opens Chrome on --url and runs the checkout pipeline on
// every page the user reaches, until the timeout, an interrupt or the
// browser closing.
func WatchAction(c *cli.Context) error {
	startURL, err := common.ValidateURL(c.String("url"))
	if err != nil {
		return err
	}

	svc, err := common.Setup(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer svc.Close()
	logger := svc.Logger
	cfg := svc.Config.Watch

	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sessionID, err := svc.DB.StartSession("watch", startURL)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer func() {
		if err := svc.DB.EndSession(sessionID); err != nil {
			logger.Warn("failed to end session", "session_id", sessionID, "error", err)
		}
	}()

	sess, err := browser.Open(ctx, browser.Options{
		Headless: cfg.Headless,
		Debounce: cfg.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer sess.Close()

	// Nobody sees a sidebar in a headless browser.
	var presenter pipeline.Presenter = browser.NewSidebar(sess)
	if cfg.Headless {
		presenter = pipeline.NewTextPresenter(os.Stdout)
	}

	p := svc.Pipeline(presenter, sessionID)
	w := watcher.New(ctx, p, p, logger)
	defer w.Close()

	err = sess.Watch(ctx, startURL, w)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info("watch timed out", "timeout", cfg.Timeout)
	case errors.Is(err, context.Canceled):
		logger.Info("watch interrupted")
	case err != nil:
		return fmt.Errorf("watch failed: %w", err)
	}

	w.Close()
	fmt.Printf("Session %d ended. Run 'secondlook db analyses' to review it.\n", sessionID)
	return nil
}
