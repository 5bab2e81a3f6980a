// SPDX-License-Identifier: MIT

package orchestrator

import "github.com/vtjoeh/auto-connect-booking/internal/config"

// Kind names an event variant in logs and metrics.
type Kind string

const (
	KindBookingStarted       Kind = "booking_started"
	KindBookingEnded         Kind = "booking_ended"
	KindBookingStartBuffer   Kind = "booking_start_buffer"
	KindBookingTimeRemaining Kind = "booking_time_remaining"
	KindCallStatusChanged    Kind = "call_status_changed"
	KindCallDisconnected     Kind = "call_disconnected"
	KindBookingsUpdated      Kind = "bookings_updated"

	kindRetryDue      Kind = "retry_due"
	kindCountdownTick Kind = "countdown_tick"
	kindClearMessage  Kind = "clear_message"
	kindPolicyChanged Kind = "policy_changed"
)

// Event is a lifecycle notification consumed by the dispatch loop.
type Event interface {
	Kind() Kind
}

// BookingStarted fires when a booking period starts.
type BookingStarted struct{ BookingID string }

// BookingEnded fires when a booking period ends.
type BookingEnded struct{ BookingID string }

// BookingStartBuffer fires when a booking's start-time buffer is reached.
type BookingStartBuffer struct{ BookingID string }

// BookingTimeRemaining reports time left in the current meeting.
type BookingTimeRemaining struct{ Seconds int }

// CallStatusChanged reports a new call status ("Connected", "Disconnecting", ...).
type CallStatusChanged struct{ Status string }

// CallDisconnected fires when a call ends.
type CallDisconnected struct{}

// BookingsUpdated fires when the booking list changed. Also used to prime the
// lookahead cache at startup.
type BookingsUpdated struct{}

func (BookingStarted) Kind() Kind       { return KindBookingStarted }
func (BookingEnded) Kind() Kind         { return KindBookingEnded }
func (BookingStartBuffer) Kind() Kind   { return KindBookingStartBuffer }
func (BookingTimeRemaining) Kind() Kind { return KindBookingTimeRemaining }
func (CallStatusChanged) Kind() Kind    { return KindCallStatusChanged }
func (CallDisconnected) Kind() Kind     { return KindCallDisconnected }
func (BookingsUpdated) Kind() Kind      { return KindBookingsUpdated }

// Internal events are posted by timers and by ApplyPolicy. Each carries the
// generation of the timer that produced it so superseded timers are ignored.
type retryDue struct {
	bookingID string
	attempt   int
	gen       uint64
}

type countdownTick struct{ gen uint64 }

type clearMessage struct{ gen uint64 }

type policyChanged struct{ policy config.Policy }

func (retryDue) Kind() Kind      { return kindRetryDue }
func (countdownTick) Kind() Kind { return kindCountdownTick }
func (clearMessage) Kind() Kind  { return kindClearMessage }
func (policyChanged) Kind() Kind { return kindPolicyChanged }
