// Package browser drives a live Chrome tab: it reports DOM mutations to a
// watcher and renders the sidebar into the page.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/dtnitsch/second-look/pkg/watcher"
)

// BindingName is the function the injected observer calls on every batch
// of mutations.
const BindingName = "__secondLookMutation"

// observerScript watches body for child-list changes, waiting for the body
// when injected before it exists.
const observerScript = `(() => {
	if (window.__secondLookObserver) return;
	const notify = () => { try { window.` + BindingName + `(""); } catch (e) {} };
	const start = () => {
		if (window.__secondLookObserver || !document.body) return;
		window.__secondLookObserver = new MutationObserver(notify);
		window.__secondLookObserver.observe(document.body, { childList: true, subtree: true });
		notify();
	};
	if (document.body) start();
	else document.addEventListener("DOMContentLoaded", start);
})();`

// snapshotScript serialises the page without the nodes we injected, so
// sidebar text never feeds back into classification.
const snapshotScript = `(() => {
	const root = document.documentElement;
	if (!root) return { url: location.href, html: "" };
	const copy = root.cloneNode(true);
	copy.querySelectorAll(` + "`" + ownNodesSelector + "`" + `).forEach((el) => el.remove());
	return { url: location.href, html: copy.outerHTML };
})()`

// snapshotTimeout bounds a single page read.
const snapshotTimeout = 10 * time.Second

type Options struct {
	Headless bool
	Debounce time.Duration
	Logger   *slog.Logger
}

// Session is one browser with one tab.
type Session struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	notify      chan struct{}
	debounce    time.Duration
	logger      *slog.Logger
}

// Open starts Chrome and prepares the tab: the mutation binding is added
// and the observer is registered for every document the tab loads.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug("browser: " + fmt.Sprintf(format, args...))
	}))

	s := &Session{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		notify:      make(chan struct{}, 1),
		debounce:    opts.Debounce,
		logger:      logger,
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	err := chromedp.Run(tabCtx,
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(observerScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare browser tab: %w", err)
	}
	return s, nil
}

// onEvent runs on the CDP event goroutine and must not block.
func (s *Session) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != BindingName {
			return
		}
	case *page.EventLoadEventFired:
	default:
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Watch navigates to startURL and feeds debounced page snapshots to w
// until ctx is done or the browser goes away.
func (s *Session) Watch(ctx context.Context, startURL string, w *watcher.Watcher) error {
	navCtx, cancel := s.runContext(ctx)
	err := chromedp.Run(navCtx, chromedp.Navigate(startURL))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", startURL, err)
	}

	// The first snapshot needs a body; later ones come from the observer,
	// which only starts once the body exists.
	readyCtx, cancel := s.runContext(ctx)
	err = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancel()
	if err != nil {
		return fmt.Errorf("waiting for page body: %w", err)
	}
	s.logger.Info("browser: watching", "url", startURL)

	s.observe(ctx, w, 0)

	deb := watcher.NewDebouncer(s.debounce, 0)
	defer deb.Flush()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.tabCtx.Done():
			return fmt.Errorf("browser closed: %w", s.tabCtx.Err())
		case <-s.notify:
			if deb.Add() {
				s.observe(ctx, w, deb.Flush())
			}
		case <-deb.C():
			s.observe(ctx, w, deb.Flush())
		}
	}
}

func (s *Session) observe(ctx context.Context, w *watcher.Watcher, batched int) {
	doc, err := s.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("browser: snapshot failed", "error", err)
		}
		return
	}
	if events := w.Observe(doc); len(events) > 0 {
		s.logger.Debug("browser: events", "url", doc.URL(), "events", events, "mutations", batched)
	}
}

// Snapshot reads the current page into a Document.
func (s *Session) Snapshot(ctx context.Context) (dom.Document, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, snapshotTimeout)
	defer cancelTimeout()

	var snap struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return parseSnapshot(snap.URL, snap.HTML)
}

// parseSnapshot parses a page read and drops anything we rendered into it.
func parseSnapshot(pageURL, rawHTML string) (dom.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}
	doc.Find(ownNodesSelector).Remove()
	return dom.FromGoquery(pageURL, doc), nil
}

// evaluate runs script in the page and reports its boolean result.
func (s *Session) evaluate(ctx context.Context, script string) (bool, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// runContext derives a context that carries the tab and is cancelled with
// ctx. Cancelling it does not close the tab.
func (s *Session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Close shuts the tab and the browser.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}
