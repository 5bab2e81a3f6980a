// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
)

func (o *Orchestrator) onBookingStarted(ctx context.Context, id string) {
	ctx = log.ContextWithBookingID(ctx, id)

	switch {
	case o.isExhausted(id):
		o.conclude(ctx, result{decision: decisionConnect, bookingID: id, outcome: outcomeDuplicate, detail: "retry budget already spent"})
	case o.state.retries[id] != nil:
		o.conclude(ctx, result{decision: decisionConnect, bookingID: id, outcome: outcomeDuplicate, detail: "retry already pending"})
	default:
		// A newer meeting start supersedes retries for earlier ones.
		for other := range o.state.retries {
			o.discardRetry(other)
		}
		o.attemptConnect(ctx, id, 0)
	}

	o.refreshNextMeeting(ctx, string(KindBookingStarted))
}

func (o *Orchestrator) onRetryDue(ctx context.Context, e retryDue) {
	chain := o.state.retries[e.bookingID]
	if chain == nil || chain.gen != e.gen {
		return
	}
	chain.timer = nil
	o.attemptConnect(log.ContextWithBookingID(ctx, e.bookingID), e.bookingID, e.attempt)
}

// attemptConnect runs one connection decision and settles the retry state:
// anything but a newly scheduled retry ends the chain for this booking.
func (o *Orchestrator) attemptConnect(ctx context.Context, id string, attempt int) {
	r := o.connect(ctx, id, attempt)
	if r.outcome != outcomeRetryScheduled {
		o.discardRetry(id)
	}
	if r.outcome == outcomeExhausted {
		o.state.exhausted[id] = struct{}{}
	}
	o.conclude(ctx, r)
}

// connect is the connection decision for one attempt. Inputs are probed
// fresh each time; a call may still change between the probe and the
// actuator command, which the next status event corrects.
func (o *Orchestrator) connect(ctx context.Context, id string, attempt int) result {
	r := result{decision: decisionConnect, bookingID: id, attempt: attempt}
	policy := o.state.policy

	calls, err := o.calls.Calls(ctx)
	if err != nil {
		r.outcome, r.err = outcomeLookupFailed, lookupError("probe calls", err)
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

	// Ad-hoc preemption comes first. Calls are probed again after the
	// hang-up before the busy check.
	if active, busy := booking.FirstCall(calls); busy && !active.Reaches(b) &&
		attempt == 0 && policy.AutoDisconnectAdhoc && b.Dialable() {
		if o.preempt(ctx, b, active) {
			calls, err = o.calls.Calls(ctx)
			if err != nil {
				r.outcome, r.err = outcomeLookupFailed, lookupError("probe calls", err)
				return r
			}
		}
	}

	if active, busy := booking.FirstCall(calls); busy {
		if active.Reaches(b) {
			r.outcome, r.detail = outcomeAlreadyConnected, active.Remote
			return r
		}
		if attempt < policy.MaxRetryAttempts {
			o.scheduleRetry(ctx, id, attempt+1)
			r.outcome = outcomeRetryScheduled
			r.detail = fmt.Sprintf("call %s still active", active.ID)
			return r
		}
		r.outcome, r.err = outcomeExhausted, ErrRetryBudgetExhausted
		r.detail = fmt.Sprintf("call %s still active after %d retries", active.ID, attempt)
		return r
	}

	if !b.Dialable() {
		r.outcome, r.err = outcomeNoTarget, ErrNoDialableTarget
		return r
	}

	return o.dispatchConnection(ctx, b, r)
}

// dispatchConnection applies the connect side effects in fixed order:
// mute, message, sound, then dial or join.
func (o *Orchestrator) dispatchConnection(ctx context.Context, b booking.Booking, r result) result {
	policy := o.state.policy
	r.detail = b.Target

	if policy.MuteOnConnect {
		if err := o.mic.MuteMicrophones(ctx); err != nil {
			l := log.WithContext(ctx, o.logger)
			l.Warn().Err(err).
				Str(log.FieldEvent, "connect.mute_failed").
				Msg("failed to mute microphones before connecting")
		}
	}
	o.showMessage(ctx, connectingText(b.Title), policy.MessageDuration)
	o.playSound(ctx, soundConnect)

	if b.Protocol.IsWebConference() {
		if err := o.actuator.Join(ctx, booking.JoinRequestFor(b)); err != nil {
			r.outcome, r.err = outcomeActuatorFailed, actuatorError("join", err)
			return r
		}
		r.outcome = outcomeJoined
		return r
	}

	if err := o.actuator.Dial(ctx, booking.DialRequestFor(b)); err != nil {
		r.outcome, r.err = outcomeActuatorFailed, actuatorError("dial", err)
		return r
	}
	r.outcome = outcomeDialed
	return r
}

// preempt disconnects an active call that is not the starting meeting and
// reports whether the disconnect command was accepted.
func (o *Orchestrator) preempt(ctx context.Context, b booking.Booking, active booking.ActiveCall) bool {
	r := result{decision: decisionPreempt, bookingID: b.ID, detail: active.Remote}
	if err := o.actuator.Disconnect(ctx, active.ID); err != nil {
		r.outcome, r.err = outcomeActuatorFailed, actuatorError("disconnect ad-hoc call", err)
		o.conclude(ctx, r)
		return false
	}
	o.showMessage(ctx, preemptText(b.Title), o.state.policy.MessageDuration)
	o.playSound(ctx, soundDisconnect)
	r.outcome = outcomePreempted
	o.conclude(ctx, r)
	return true
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, id string, attempt int) {
	chain := o.state.retries[id]
	if chain == nil {
		chain = &retryChain{}
		o.state.retries[id] = chain
	}
	if chain.timer != nil {
		chain.timer.Stop()
	}

	interval := o.state.policy.RetryInterval
	gen := o.nextGen()
	chain.attempt = attempt
	chain.gen = gen
	chain.due = o.clock.Now().Add(interval)
	chain.timer = o.clock.AfterFunc(interval, func() {
		o.post(retryDue{bookingID: id, attempt: attempt, gen: gen})
	})
	metrics.IncRetryScheduled()

	l := log.WithContext(ctx, o.logger)
	l.Debug().
		Str(log.FieldEvent, "retry.scheduled").
		Int(log.FieldAttempt, attempt).
		Dur("interval", interval).
		Msg("connect retry scheduled")
}

// discardRetry stops and forgets the retry chain for id.
func (o *Orchestrator) discardRetry(id string) {
	chain := o.state.retries[id]
	if chain == nil {
		return
	}
	if chain.timer != nil {
		chain.timer.Stop()
	}
	delete(o.state.retries, id)
}

func (o *Orchestrator) isExhausted(id string) bool {
	_, ok := o.state.exhausted[id]
	return ok
}
