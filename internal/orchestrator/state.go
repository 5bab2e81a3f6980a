// SPDX-License-Identifier: MIT

package orchestrator

import (
	"slices"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
)

// State is owned by the dispatch loop. Nothing else reads or writes it;
// observers use Snapshot.
type State struct {
	policy config.Policy

	// Lookahead cache: the nearest future booking within the horizon.
	next          *booking.Booking
	nextIsCall    bool
	currentIsNext bool

	retries   map[string]*retryChain
	exhausted map[string]struct{}

	countdown    *countdownHandle
	pendingClear *pendingTimer
}

type retryChain struct {
	attempt int
	gen     uint64
	due     time.Time
	timer   Timer
}

type countdownHandle struct {
	gen       uint64
	bookingID string
	target    time.Time
	timer     Timer
}

type pendingTimer struct {
	gen   uint64
	timer Timer
}

func newState(policy config.Policy) State {
	return State{
		policy:    policy,
		retries:   make(map[string]*retryChain),
		exhausted: make(map[string]struct{}),
	}
}

// Snapshot is a read-only copy of the orchestrator state.
type Snapshot struct {
	NextMeeting     *booking.Booking `json:"next_meeting,omitempty"`
	NextIsCall      bool             `json:"next_is_call"`
	CurrentIsNext   bool             `json:"current_is_next"`
	PendingRetries  map[string]int   `json:"pending_retries,omitempty"`
	Exhausted       []string         `json:"exhausted,omitempty"`
	CountdownTarget *time.Time       `json:"countdown_target,omitempty"`
	EventsHandled   uint64           `json:"events_handled"`
	Running         bool             `json:"running"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (s *State) snapshot() *Snapshot {
	snap := &Snapshot{
		NextIsCall:    s.nextIsCall,
		CurrentIsNext: s.currentIsNext,
	}
	if s.next != nil {
		next := *s.next
		snap.NextMeeting = &next
	}
	if len(s.retries) > 0 {
		snap.PendingRetries = make(map[string]int, len(s.retries))
		for id, chain := range s.retries {
			snap.PendingRetries[id] = chain.attempt
		}
	}
	for id := range s.exhausted {
		snap.Exhausted = append(snap.Exhausted, id)
	}
	slices.Sort(snap.Exhausted)
	if s.countdown != nil {
		target := s.countdown.target
		snap.CountdownTarget = &target
	}
	return snap
}
