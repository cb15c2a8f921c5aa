package entity

import "fmt"

// SyndicationStatus is the publication state of one listing on one portal.
// The values form a finite state machine; CanTransition implements the
// allowed moves. Anything outside the table is rejected at persistence time.
type SyndicationStatus string

const (
	StatusPending  SyndicationStatus = "pending"
	StatusSyncing  SyndicationStatus = "syncing"
	StatusActive   SyndicationStatus = "active"
	StatusError    SyndicationStatus = "error"
	StatusDisabled SyndicationStatus = "disabled"
	StatusExpired  SyndicationStatus = "expired"
	StatusRemoved  SyndicationStatus = "removed"
)

// statusTransitions is the authoritative transition table.
// syncing -> pending means a scheduled retry.
var statusTransitions = map[SyndicationStatus][]SyndicationStatus{
	StatusPending:  {StatusSyncing, StatusDisabled},
	StatusSyncing:  {StatusActive, StatusError, StatusPending},
	StatusActive:   {StatusSyncing, StatusExpired, StatusRemoved, StatusDisabled},
	StatusError:    {StatusPending, StatusSyncing, StatusDisabled},
	StatusDisabled: {StatusPending},
	StatusExpired:  {StatusPending, StatusRemoved, StatusDisabled},
	StatusRemoved:  {StatusPending, StatusDisabled},
}

// ParseSyndicationStatus validates a raw string against the known status set.
func ParseSyndicationStatus(s string) (SyndicationStatus, error) {
	st := SyndicationStatus(s)
	if _, ok := statusTransitions[st]; !ok {
		return "", fmt.Errorf("syndication status %q: %w", s, ErrUnknownStatus)
	}
	return st, nil
}

// Valid reports whether the status is one of the known values.
func (s SyndicationStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// String returns the status identifier.
func (s SyndicationStatus) String() string { return string(s) }

// CanTransition reports whether moving from the receiver to next is allowed
// by the state machine. A self-transition is always allowed: re-persisting
// the current state (e.g. a repeated webhook) is not a state change.
func (s SyndicationStatus) CanTransition(next SyndicationStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition (wrapped with both states)
// when the move is not in the transition table.
func (s SyndicationStatus) CheckTransition(next SyndicationStatus) error {
	if !next.Valid() {
		return fmt.Errorf("syndication status %q: %w", next, ErrUnknownStatus)
	}
	if !s.CanTransition(next) {
		return fmt.Errorf("%s -> %s: %w", s, next, ErrInvalidTransition)
	}
	return nil
}
