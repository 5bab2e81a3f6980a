// SPDX-License-Identifier: MIT

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
)

func countdownTexts(from, to int) []string {
	var out []string
	for s := from; s >= to; s-- {
		out = append(out, formatCountdown(s))
	}
	return out
}

// Scenario: next meeting in 20s, window 30s, not in it yet.
func TestCountdown_TicksDownToZeroThenStops(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) {
		p.CountdownEnabled = true
		p.CountdownWindow = 30 * time.Second
	})
	h.dev.setBookings(meeting("M3", "3333", t0.Add(20*time.Second)))

	h.send(BookingsUpdated{})
	assert.Equal(t, []string{"00:20"}, h.dev.takeMessages())

	h.advance(20 * time.Second)

	assert.Equal(t, countdownTexts(19, 0), h.dev.takeMessages())
	assert.Zero(t, h.clock.live(), "countdown stops at zero")
	assert.Nil(t, h.o.Snapshot().CountdownTarget)

	h.advance(10 * time.Second)
	assert.Empty(t, h.dev.takeMessages())
}

func TestCountdown_SilentOutsideWindow(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.CountdownWindow = 30 * time.Second })
	h.dev.setBookings(meeting("M3", "3333", t0.Add(40*time.Second)))

	h.send(BookingsUpdated{})
	h.advance(9 * time.Second)
	assert.Empty(t, h.dev.takeMessages())
	assert.Equal(t, 1, h.clock.live(), "still ticking")

	h.advance(time.Second)
	assert.Equal(t, []string{"00:30"}, h.dev.takeMessages())
}

func TestCountdown_TicksAreNotTraced(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.CountdownWindow = 30 * time.Second })
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(h.ctx) })
	h.o.tracer = tp.Tracer("test")

	h.dev.setBookings(meeting("M3", "3333", t0.Add(time.Hour)))
	h.send(BookingsUpdated{})
	handled := h.o.handled

	h.advance(10 * time.Minute)

	assert.Len(t, rec.Ended(), 1, "only the bookings update is traced")
	assert.Equal(t, handled+600, h.o.handled, "every tick is still dispatched")
	assert.Equal(t, 1, h.clock.live())
}

func TestCountdown_ExactlyOneChainAfterRepeatedRefresh(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "3333", t0.Add(20*time.Second)))

	h.send(BookingsUpdated{})
	h.send(BookingsUpdated{})
	assert.Equal(t, 1, h.clock.live())
	h.dev.takeMessages()

	h.advance(time.Second)
	assert.Equal(t, []string{"00:19"}, h.dev.takeMessages(), "one message per tick")
	assert.Equal(t, 1, h.clock.live())
}

func TestCountdown_StaleTickIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "3333", t0.Add(20*time.Second)))

	h.send(BookingsUpdated{})
	stale := h.o.state.countdown.gen
	h.send(BookingsUpdated{})
	h.dev.takeMessages()

	h.send(countdownTick{gen: stale})

	assert.Empty(t, h.dev.takeMessages())
	assert.Equal(t, 1, h.clock.live())
}

func TestCountdown_RetargetsWhenNextMeetingChanges(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "3333", t0.Add(20*time.Second)))
	h.send(BookingsUpdated{})

	h.dev.setBookings(meeting("M4", "4444", t0.Add(10*time.Second)))
	h.send(BookingsUpdated{})
	h.dev.takeMessages()

	h.advance(time.Second)
	assert.Equal(t, []string{"00:09"}, h.dev.takeMessages())
	target := h.o.Snapshot().CountdownTarget
	require.NotNil(t, target)
	assert.True(t, target.Equal(t0.Add(10*time.Second)))
}

func TestCountdown_Gating(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		mutate   func(*config.Policy)
		counting bool
	}{
		{name: "call", target: "3333", counting: true},
		{name: "non-call", target: "", counting: false},
		{name: "non-call opted in", target: "", mutate: func(p *config.Policy) { p.CountdownForNonCalls = true }, counting: true},
		{name: "disabled", target: "3333", mutate: func(p *config.Policy) { p.CountdownEnabled = false }, counting: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.mutate)
			h.dev.setBookings(meeting("M3", tc.target, t0.Add(20*time.Second)))

			h.send(BookingsUpdated{})

			if tc.counting {
				assert.Equal(t, 1, h.clock.live())
				assert.Equal(t, []string{"00:20"}, h.dev.takeMessages())
			} else {
				assert.Zero(t, h.clock.live())
				assert.Empty(t, h.dev.takeMessages())
			}
		})
	}
}

func TestLookahead_CurrentCallIsNextSuppressesCountdownAndWarnings(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "sip:m3@example.com", t0.Add(20*time.Second)))
	h.dev.setCalls(booking.ActiveCall{ID: "2", Remote: "M3@example.com"})

	h.send(CallStatusChanged{Status: "Connected"})
	h.dev.takeActions()

	snap := h.o.Snapshot()
	assert.True(t, snap.CurrentIsNext)
	assert.Nil(t, snap.CountdownTarget)

	h.send(BookingTimeRemaining{Seconds: 300})
	h.advance(5 * time.Second)
	assert.Empty(t, h.dev.takeMessages())
}

func TestLookahead_CallDisconnectRestartsCountdown(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "3333", t0.Add(20*time.Second)))
	h.dev.setCalls(booking.ActiveCall{ID: "2", Remote: "3333"})

	h.send(BookingsUpdated{})
	require.True(t, h.o.Snapshot().CurrentIsNext)
	assert.Zero(t, h.clock.live())

	h.dev.setCalls()
	h.send(CallDisconnected{})

	assert.False(t, h.o.Snapshot().CurrentIsNext)
	assert.Equal(t, []string{"00:20"}, h.dev.takeMessages())
}

func TestLookahead_HorizonBoundsNextMeeting(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.LookaheadHorizon = time.Hour })
	h.dev.setBookings(meeting("far", "1", t0.Add(2*time.Hour)))

	h.send(BookingsUpdated{})
	assert.Nil(t, h.o.Snapshot().NextMeeting)

	h.dev.setBookings(meeting("far", "1", t0.Add(2*time.Hour)), meeting("near", "2", t0.Add(time.Minute)))
	h.send(BookingsUpdated{})

	snap := h.o.Snapshot()
	require.NotNil(t, snap.NextMeeting)
	assert.Equal(t, "near", snap.NextMeeting.ID)
	assert.True(t, snap.NextIsCall)
}

func TestLookahead_LookupFailureKeepsCache(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M3", "3333", t0.Add(time.Minute)))
	h.send(BookingsUpdated{})

	h.dev.callsErr = assert.AnError
	h.send(BookingsUpdated{})

	snap := h.o.Snapshot()
	require.NotNil(t, snap.NextMeeting)
	assert.Equal(t, "M3", snap.NextMeeting.ID)
	assert.Equal(t, 1, h.clock.live())
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "00:20", formatCountdown(20))
	assert.Equal(t, "01:05", formatCountdown(65))
	assert.Equal(t, "00:00", formatCountdown(0))
	assert.Equal(t, "00:00", formatCountdown(-3))
}
