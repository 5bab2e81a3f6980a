// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
)

// refreshNextMeeting recomputes the lookahead cache from a fresh booking
// list, re-derives whether the active call already is that meeting, and
// restarts the countdown. The cache is never patched in place.
func (o *Orchestrator) refreshNextMeeting(ctx context.Context, reason string) {
	l := log.WithContext(ctx, o.logger)

	bookings, err := o.bookings.ListBookings(ctx)
	if err != nil {
		l.Warn().Err(lookupError("list bookings", err)).
			Str(log.FieldEvent, "lookahead.lookup_failed").
			Str("reason", reason).
			Msg("keeping previous next meeting")
		return
	}
	calls, err := o.calls.Calls(ctx)
	if err != nil {
		l.Warn().Err(lookupError("probe calls", err)).
			Str(log.FieldEvent, "lookahead.lookup_failed").
			Str("reason", reason).
			Msg("keeping previous next meeting")
		return
	}

	next, found := booking.Next(bookings, o.clock.Now(), o.state.policy.LookaheadHorizon)
	active, busy := booking.FirstCall(calls)

	wasCurrentIsNext := o.state.currentIsNext
	o.state.next = nil
	o.state.nextIsCall = false
	o.state.currentIsNext = false
	if found {
		o.state.next = &next
		o.state.nextIsCall = next.Dialable()
		o.state.currentIsNext = busy && active.Reaches(next)
	}

	ev := l.Debug().
		Str(log.FieldEvent, "lookahead.refreshed").
		Str("reason", reason).
		Bool("next_is_call", o.state.nextIsCall).
		Bool("current_is_next", o.state.currentIsNext)
	if found {
		ev = ev.Str("next_booking_id", next.ID).Time(log.FieldStart, next.Start)
	}
	ev.Msg("next meeting refreshed")

	if o.state.currentIsNext != wasCurrentIsNext {
		l.Info().
			Str(log.FieldEvent, "lookahead.current_is_next").
			Bool(log.FieldOldState, wasCurrentIsNext).
			Bool(log.FieldNewState, o.state.currentIsNext).
			Msg("current call / next meeting match changed")
	}

	o.startCountdown(ctx)
}

// countdownAllowed is the gating policy for the visual countdown.
func (o *Orchestrator) countdownAllowed() bool {
	p := o.state.policy
	return p.CountdownEnabled && (o.state.nextIsCall || p.CountdownForNonCalls)
}

// startCountdown replaces any running tick chain with one for the cached
// next meeting. At most one chain is ever alive.
func (o *Orchestrator) startCountdown(ctx context.Context) {
	o.cancelCountdown()

	next := o.state.next
	if next == nil || o.state.currentIsNext || !o.countdownAllowed() {
		return
	}

	h := &countdownHandle{
		gen:       o.nextGen(),
		bookingID: next.ID,
		target:    next.Start,
	}
	o.state.countdown = h
	metrics.SetCountdownActive(true)

	l := log.WithContext(ctx, o.logger)
	l.Debug().
		Str(log.FieldEvent, "countdown.started").
		Str("next_booking_id", h.bookingID).
		Time(log.FieldStart, h.target).
		Msg("countdown started")

	o.tick(ctx, h)
}

// cancelCountdown stops the live chain. Ticks already queued carry the old
// generation and are dropped.
func (o *Orchestrator) cancelCountdown() {
	h := o.state.countdown
	if h == nil {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	o.state.countdown = nil
	metrics.SetCountdownActive(false)
}

func (o *Orchestrator) onCountdownTick(ctx context.Context, e countdownTick) {
	h := o.state.countdown
	if h == nil || h.gen != e.gen {
		return
	}
	h.timer = nil
	o.tick(ctx, h)
}

// tick evaluates one second of the countdown: past the start it stops,
// inside the window it shows mm:ss, at zero it shows 00:00 and stops,
// otherwise it stays silent and schedules the next tick.
func (o *Orchestrator) tick(ctx context.Context, h *countdownHandle) {
	remaining := int(math.Round(h.target.Sub(o.clock.Now()).Seconds()))
	if remaining < 0 {
		o.finishCountdown(ctx, h)
		return
	}

	window := int(o.state.policy.CountdownWindow / time.Second)
	if remaining <= window && !o.state.currentIsNext {
		o.showMessage(ctx, formatCountdown(remaining), countdownMessageDuration)
	}
	if remaining == 0 {
		o.finishCountdown(ctx, h)
		return
	}

	gen := h.gen
	h.timer = o.clock.AfterFunc(time.Second, func() {
		o.post(countdownTick{gen: gen})
	})
}

func (o *Orchestrator) finishCountdown(ctx context.Context, h *countdownHandle) {
	o.cancelCountdown()
	l := log.WithContext(ctx, o.logger)
	l.Debug().
		Str(log.FieldEvent, "countdown.finished").
		Str("next_booking_id", h.bookingID).
		Msg("countdown reached meeting start")
}
