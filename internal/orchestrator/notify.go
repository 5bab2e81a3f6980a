// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

const (
	soundConnect    = "Dial"
	soundDisconnect = "Announcement"
	soundAutoStop   = time.Second

	messageX = 10000
	messageY = 300

	countdownMessageDuration = 2 * time.Second

	disconnectedText = "Call auto-disconnected."
)

func connectingText(title string) string {
	return "Auto-connecting to: " + title
}

func preemptText(title string) string {
	return "Ending call for scheduled meeting: " + title
}

func startBufferText(minutes int) string {
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Auto-connecting next meeting within %d %s.", minutes, unit)
}

func timeRemainingText(minutes int) string {
	return fmt.Sprintf("%d min. left in meeting.", minutes)
}

// formatCountdown renders whole seconds as mm:ss.
func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func (o *Orchestrator) showMessage(ctx context.Context, text string, d time.Duration) {
	if !o.state.policy.MessagesEnabled {
		return
	}
	if err := o.notifier.ShowMessage(ctx, text, d, messageX, messageY); err != nil {
		l := log.WithContext(ctx, o.logger)
		l.Warn().Err(err).
			Str(log.FieldEvent, "notify.message_failed").
			Msg("failed to show message")
	}
}

func (o *Orchestrator) playSound(ctx context.Context, name string) {
	if !o.state.policy.SoundsEnabled {
		return
	}
	if err := o.notifier.PlaySound(ctx, name, soundAutoStop); err != nil {
		l := log.WithContext(ctx, o.logger)
		l.Warn().Err(err).
			Str(log.FieldEvent, "notify.sound_failed").
			Str("sound", name).
			Msg("failed to play sound")
	}
}

// onTimeRemaining warns how long the current meeting has left, unless the
// call is already the next meeting.
func (o *Orchestrator) onTimeRemaining(ctx context.Context, seconds int) {
	l := log.WithContext(ctx, o.logger)
	if o.state.currentIsNext {
		l.Debug().Str(log.FieldEvent, "time_remaining.suppressed").Msg("current call is the next meeting")
		return
	}
	if seconds < 0 {
		return
	}
	minutes := roundMinutes(time.Duration(seconds) * time.Second)
	o.showMessage(ctx, timeRemainingText(minutes), o.state.policy.MessageDuration)
}

// onStartBuffer announces an upcoming auto-connect for the rest of the
// booking's start buffer.
func (o *Orchestrator) onStartBuffer(ctx context.Context, id string) {
	ctx = log.ContextWithBookingID(ctx, id)
	l := log.WithContext(ctx, o.logger)
	policy := o.state.policy

	if !policy.StartBufferMessage || !policy.MessagesEnabled || o.state.currentIsNext {
		return
	}

	bookings, err := o.bookings.ListBookings(ctx)
	if err != nil {
		l.Warn().Err(lookupError("list bookings", err)).
			Str(log.FieldEvent, "start_buffer.lookup_failed").
			Msg("cannot announce upcoming meeting")
		return
	}
	b, ok := booking.FindByID(bookings, id)
	if !ok || !b.Dialable() {
		return
	}

	until := b.Start.Sub(o.clock.Now())
	if until <= 0 {
		return
	}
	minutes := max(roundMinutes(until), 1)
	o.showMessage(ctx, startBufferText(minutes), until)
}

// onCallStatus schedules the delayed clear of the on-screen message and, on
// connect, re-runs the lookahead check.
func (o *Orchestrator) onCallStatus(ctx context.Context, status string) {
	if p := o.state.pendingClear; p != nil {
		p.timer.Stop()
		o.state.pendingClear = nil
	}
	if o.state.policy.MessagesEnabled {
		gen := o.nextGen()
		o.state.pendingClear = &pendingTimer{
			gen: gen,
			timer: o.clock.AfterFunc(o.state.policy.MessageDuration, func() {
				o.post(clearMessage{gen: gen})
			}),
		}
	}

	if isConnected(status) {
		o.refreshNextMeeting(ctx, string(KindCallStatusChanged))
	}
}

func (o *Orchestrator) onClearMessage(ctx context.Context, e clearMessage) {
	p := o.state.pendingClear
	if p == nil || p.gen != e.gen {
		return
	}
	o.state.pendingClear = nil
	if err := o.notifier.ClearMessage(ctx); err != nil {
		l := log.WithContext(ctx, o.logger)
		l.Warn().Err(err).
			Str(log.FieldEvent, "notify.clear_failed").
			Msg("failed to clear message")
	}
}

func isConnected(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "Connected")
}
