package models

import "fmt"

// PageState is the derived classification of the page currently shown.
type PageState int

const (
	StateNeutral PageState = iota
	StateCheckout
	StateConfirmation
)

func (s PageState) String() string {
	switch s {
	case StateCheckout:
		return "checkout"
	case StateConfirmation:
		return "confirmation"
	default:
		return "neutral"
	}
}

// MarshalText lets the state appear by name in JSON and YAML output.
func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *PageState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "neutral", "":
		*s = StateNeutral
	case "checkout":
		*s = StateCheckout
	case "confirmation":
		*s = StateConfirmation
	default:
		return fmt.Errorf("unknown page state %q", text)
	}
	return nil
}
