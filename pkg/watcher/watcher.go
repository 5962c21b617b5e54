package watcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
)

// Classifier decides the state of a page. detector.Detector implements it.
type Classifier interface {
	Classify(doc dom.Document) models.PageState
}

// Handler reacts to checkout and confirmation pages. Both methods run in
// their own task and must return promptly once ctx is cancelled.
type Handler interface {
	OnCheckout(ctx context.Context, doc dom.Document)
	OnConfirmation(ctx context.Context, doc dom.Document)
}

// Watcher owns the sticky flags for one tab. Observe must be called from a
// single goroutine; Close may be called from any.
type Watcher struct {
	classifier Classifier
	handler    Handler
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	last     models.PageState
	checkout *Task
	tasks    []*Task
}

// New creates a watcher whose tasks are bound to ctx.
func New(ctx context.Context, classifier Classifier, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Watcher{
		classifier: classifier,
		handler:    handler,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Observe classifies doc and dispatches the resulting events. It returns the
// events for callers that log or test them.
func (w *Watcher) Observe(doc dom.Document) []Event {
	page := w.classifier.Classify(doc)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil {
		return nil
	}

	next, events := Step(w.state, page)
	if page != w.last {
		w.logger.Info("watcher: page state changed", "url", doc.URL(), "from", w.last, "to", page)
	}
	w.state, w.last = next, page

	for _, ev := range events {
		w.logger.Debug("watcher: event", "event", ev, "url", doc.URL())
		switch ev {
		case EventCheckoutEntered:
			w.checkout.Cancel()
			w.checkout = w.spawn("checkout", func(ctx context.Context) { w.handler.OnCheckout(ctx, doc) })
		case EventCheckoutLeft:
			// Results for a cart the user has navigated away from would
			// mutate stale UI.
			w.checkout.Cancel()
			w.checkout = nil
		case EventConfirmationEntered:
			w.spawn("confirmation", func(ctx context.Context) { w.handler.OnConfirmation(ctx, doc) })
		}
	}
	return events
}

func (w *Watcher) spawn(name string, fn func(ctx context.Context)) *Task {
	t := Go(w.ctx, w.logger, name, fn)

	live := w.tasks[:0]
	for _, old := range w.tasks {
		select {
		case <-old.Done():
		default:
			live = append(live, old)
		}
	}
	w.tasks = append(live, t)
	return t
}

// State returns a copy of the current flags.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Wait blocks until every task started so far has returned.
func (w *Watcher) Wait() {
	w.mu.Lock()
	tasks := append([]*Task(nil), w.tasks...)
	w.mu.Unlock()

	for _, t := range tasks {
		t.Wait()
	}
}

// Close cancels every running task and waits for them. Observe is a no-op
// afterwards.
func (w *Watcher) Close() {
	w.cancel()
	w.Wait()
}
