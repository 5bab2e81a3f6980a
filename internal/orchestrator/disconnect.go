// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

func (o *Orchestrator) onBookingEnded(ctx context.Context, id string) {
	ctx = log.ContextWithBookingID(ctx, id)

	o.discardRetry(id)
	delete(o.state.exhausted, id)

	if o.state.policy.AutoDisconnectScheduled {
		o.conclude(ctx, o.disconnectEnded(ctx, id))
	} else {
		o.conclude(ctx, result{decision: decisionDisconnect, bookingID: id, outcome: outcomeDisabled})
	}

	o.refreshNextMeeting(ctx, string(KindBookingEnded))
}

// disconnectEnded ends the active call only when it reaches the ended
// booking's target. The call may not have been placed by us, so the match is
// by address, never by call id.
func (o *Orchestrator) disconnectEnded(ctx context.Context, id string) result {
	r := result{decision: decisionDisconnect, bookingID: id}

	calls, err := o.calls.Calls(ctx)
	if err != nil {
		r.outcome, r.err = outcomeLookupFailed, lookupError("probe calls", err)
		return r
	}
	active, busy := booking.FirstCall(calls)
	if !busy {
		r.outcome = outcomeNoCall
		return r
	}

	bookings, err := o.bookings.ListBookings(ctx)
	if err != nil {
		r.outcome, r.err = outcomeLookupFailed, lookupError("list bookings", err)
		return r
	}
	b, ok := booking.FindByID(bookings, id)
	if !ok {
		r.outcome, r.err = outcomeLookupFailed, lookupError("resolve booking", fmt.Errorf("booking %q not listed", id))
		return r
	}
	if !b.Dialable() {
		r.outcome = outcomeNoTarget
		return r
	}
	if !active.Reaches(b) {
		r.outcome = outcomeAddressMismatch
		r.detail = active.Remote
		return r
	}

	if err := o.actuator.Disconnect(ctx, active.ID); err != nil {
		r.outcome, r.err = outcomeActuatorFailed, actuatorError("disconnect", err)
		return r
	}
	o.showMessage(ctx, disconnectedText, o.state.policy.MessageDuration)
	o.playSound(ctx, soundDisconnect)
	r.outcome, r.detail = outcomeDisconnected, active.Remote
	return r
}
