// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/journal"
)

// BookingLookup lists the endpoint's bookings. Ids are resolved by scanning.
type BookingLookup interface {
	ListBookings(ctx context.Context) ([]booking.Booking, error)
}

// CallProbe reports active calls. No call is an empty slice, not an error.
type CallProbe interface {
	Calls(ctx context.Context) ([]booking.ActiveCall, error)
}

// Actuator places and ends calls. Dial and Join return once the command was
// accepted; establishment is observed through later call-status events.
type Actuator interface {
	Dial(ctx context.Context, req booking.DialRequest) error
	Join(ctx context.Context, req booking.JoinRequest) error
	// Disconnect ends callID, or the current call when callID is empty.
	Disconnect(ctx context.Context, callID string) error
}

// Microphone mutes the endpoint's microphones.
type Microphone interface {
	MuteMicrophones(ctx context.Context) error
}

// Notifier shows on-screen text and plays sounds.
type Notifier interface {
	ShowMessage(ctx context.Context, text string, duration time.Duration, x, y int) error
	ClearMessage(ctx context.Context) error
	PlaySound(ctx context.Context, name string, autoStop time.Duration) error
}

// Recorder persists effectful decisions.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}
