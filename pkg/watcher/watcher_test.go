package watcher

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
)

func TestStep(t *testing.T) {
	tests := []struct {
		name       string
		from       State
		page       models.PageState
		want       State
		wantEvents []Event
	}{
		{"neutral stays quiet", State{}, models.StateNeutral, State{}, nil},
		{"enter checkout", State{}, models.StateCheckout, State{TriggeredCheckout: true}, []Event{EventCheckoutEntered}},
		{"checkout again is idempotent", State{TriggeredCheckout: true}, models.StateCheckout, State{TriggeredCheckout: true}, nil},
		{"leave checkout", State{TriggeredCheckout: true}, models.StateNeutral, State{}, []Event{EventCheckoutLeft}},
		{
			"checkout to confirmation",
			State{TriggeredCheckout: true}, models.StateConfirmation,
			State{SyncedConfirmation: true},
			[]Event{EventCheckoutLeft, EventConfirmationEntered},
		},
		{"confirmation again is idempotent", State{SyncedConfirmation: true}, models.StateConfirmation, State{SyncedConfirmation: true}, nil},
		{"neutral keeps sync flag", State{SyncedConfirmation: true}, models.StateNeutral, State{SyncedConfirmation: true}, nil},
		{
			"new checkout clears sync flag",
			State{SyncedConfirmation: true}, models.StateCheckout,
			State{TriggeredCheckout: true},
			[]Event{EventCheckoutEntered},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, events := Step(tt.from, tt.page)
			if got != tt.want {
				t.Errorf("Step() state = %+v, want %+v", got, tt.want)
			}
			if !reflect.DeepEqual(events, tt.wantEvents) {
				t.Errorf("Step() events = %v, want %v", events, tt.wantEvents)
			}
		})
	}
}

// scripted returns the page state stored in the snapshot's URL.
type scripted map[string]models.PageState

func (s scripted) Classify(doc dom.Document) models.PageState { return s[doc.URL()] }

type recorder struct {
	mu            sync.Mutex
	checkouts     int
	confirmations int
	cancelled     int
	block         bool
}

func (r *recorder) OnCheckout(ctx context.Context, doc dom.Document) {
	r.mu.Lock()
	r.checkouts++
	block := r.block
	r.mu.Unlock()

	if !block {
		return
	}
	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.cancelled++
		r.mu.Unlock()
	case <-time.After(5 * time.Second):
	}
}

func (r *recorder) OnConfirmation(ctx context.Context, doc dom.Document) {
	r.mu.Lock()
	r.confirmations++
	r.mu.Unlock()
}

func snapshot(t *testing.T, pageURL string) dom.Document {
	t.Helper()
	doc, err := dom.ParseString(pageURL, "<html><body></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

var pages = scripted{
	"neutral":      models.StateNeutral,
	"cart":         models.StateCheckout,
	"confirmation": models.StateConfirmation,
}

func TestWatcher_CheckoutFiresOncePerVisit(t *testing.T) {
	rec := &recorder{}
	w := New(context.Background(), pages, rec, nil)
	defer w.Close()

	cart := snapshot(t, "cart")
	w.Observe(cart)
	w.Observe(cart)
	w.Observe(cart)
	w.Wait()

	if rec.checkouts != 1 {
		t.Fatalf("checkouts = %d after repeated observation, want 1", rec.checkouts)
	}

	w.Observe(snapshot(t, "neutral"))
	w.Observe(cart)
	w.Wait()

	if rec.checkouts != 2 {
		t.Errorf("checkouts = %d after re-entering, want 2", rec.checkouts)
	}
}

func TestWatcher_ConfirmationSyncsOnce(t *testing.T) {
	rec := &recorder{}
	w := New(context.Background(), pages, rec, nil)
	defer w.Close()

	conf := snapshot(t, "confirmation")
	w.Observe(snapshot(t, "cart"))
	w.Observe(conf)
	w.Observe(conf)
	w.Observe(snapshot(t, "neutral"))
	w.Observe(conf)
	w.Wait()

	if rec.confirmations != 1 {
		t.Errorf("confirmations = %d, want 1", rec.confirmations)
	}
	if got := w.State(); !got.SyncedConfirmation || got.TriggeredCheckout {
		t.Errorf("State() = %+v", got)
	}
}

func TestWatcher_LeavingCheckoutCancelsTask(t *testing.T) {
	rec := &recorder{block: true}
	w := New(context.Background(), pages, rec, nil)
	defer w.Close()

	events := w.Observe(snapshot(t, "cart"))
	if !reflect.DeepEqual(events, []Event{EventCheckoutEntered}) {
		t.Fatalf("events = %v", events)
	}
	events = w.Observe(snapshot(t, "neutral"))
	if !reflect.DeepEqual(events, []Event{EventCheckoutLeft}) {
		t.Fatalf("events = %v", events)
	}
	w.Wait()

	if rec.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", rec.cancelled)
	}
}

func TestWatcher_CloseStopsEverything(t *testing.T) {
	rec := &recorder{block: true}
	w := New(context.Background(), pages, rec, nil)

	w.Observe(snapshot(t, "cart"))
	w.Close()

	if rec.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", rec.cancelled)
	}
	if events := w.Observe(snapshot(t, "neutral")); events != nil {
		t.Errorf("Observe() after Close = %v, want nil", events)
	}
}

func TestTask_RecoversPanic(t *testing.T) {
	task := Go(context.Background(), testLogger(), "boom", func(ctx context.Context) {
		panic("kaboom")
	})
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 0)
	if d.C() != nil {
		t.Fatal("C() should be nil before Add")
	}

	d.Add()
	d.Add()
	d.Add()

	select {
	case <-d.C():
	case <-time.After(time.Second):
		t.Fatal("debounce window never fired")
	}
	if n := d.Flush(); n != 3 {
		t.Errorf("Flush() = %d, want 3", n)
	}
	if d.Pending() != 0 || d.C() != nil {
		t.Error("Flush() did not reset")
	}
}

func TestDebouncer_FullBuffer(t *testing.T) {
	d := NewDebouncer(time.Hour, 2)
	if d.Add() {
		t.Fatal("first Add() reported full")
	}
	if !d.Add() {
		t.Fatal("second Add() should report full")
	}
	if n := d.Flush(); n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
}
