// Package watcher turns a stream of page snapshots into checkout and
// confirmation events, firing each at most once per visit.
package watcher

import "github.com/dtnitsch/second-look/models"

// Event is a page-state transition the handler cares about.
type Event int

const (
	EventCheckoutEntered Event = iota + 1
	EventCheckoutLeft
	EventConfirmationEntered
)

func (e Event) String() string {
	switch e {
	case EventCheckoutEntered:
		return "checkout_entered"
	case EventCheckoutLeft:
		return "checkout_left"
	case EventConfirmationEntered:
		return "confirmation_entered"
	default:
		return "unknown"
	}
}

// State holds the two sticky flags. The zero value is the state of a freshly
// loaded page.
type State struct {
	TriggeredCheckout  bool `json:"triggered_checkout"`
	SyncedConfirmation bool `json:"synced_confirmation"`
}

// Step applies one classification to s. It is pure: calling it again with
// the same page state returns the same State and no events.
//
// Entering checkout also clears SyncedConfirmation, since it starts a new
// purchase flow whose confirmation must sync again.
func Step(s State, page models.PageState) (State, []Event) {
	var events []Event

	switch page {
	case models.StateCheckout:
		if !s.TriggeredCheckout {
			s.TriggeredCheckout = true
			s.SyncedConfirmation = false
			events = append(events, EventCheckoutEntered)
		}
	case models.StateConfirmation:
		if s.TriggeredCheckout {
			s.TriggeredCheckout = false
			events = append(events, EventCheckoutLeft)
		}
		if !s.SyncedConfirmation {
			s.SyncedConfirmation = true
			events = append(events, EventConfirmationEntered)
		}
	default:
		if s.TriggeredCheckout {
			s.TriggeredCheckout = false
			events = append(events, EventCheckoutLeft)
		}
	}

	return s, events
}
