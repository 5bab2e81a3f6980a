// SPDX-License-Identifier: MIT

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
)

func TestDisconnect_MatchingAddress(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234@Example.com", t0.Add(-30*time.Minute)))
	h.dev.setCalls(booking.ActiveCall{ID: "3", Remote: "sip:1234@example.com"})

	h.send(BookingEnded{BookingID: "M1"})

	assert.Equal(t, []string{
		"disconnect:3",
		"message:Call auto-disconnected.",
		"sound:Announcement",
	}, h.dev.takeActions())
	assert.Equal(t, []string{"disconnect/disconnected"}, h.rec.outcomes())
}

func TestDisconnect_MismatchedAddressLeavesCall(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234@example.com", t0.Add(-30*time.Minute)))
	h.dev.setCalls(booking.ActiveCall{ID: "3", Remote: "sip:5678@example.com"})

	h.send(BookingEnded{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
	assert.Empty(t, h.rec.outcomes())
}

// Scenario: the meeting was declined or missed.
func TestDisconnect_NoActiveCallIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234", t0.Add(-30*time.Minute)))

	h.send(BookingEnded{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
	assert.Empty(t, h.rec.outcomes())
}

func TestDisconnect_NoTargetIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "", t0.Add(-30*time.Minute)))
	h.dev.setCalls(booking.ActiveCall{ID: "3", Remote: "sip:1234@example.com"})

	r := h.o.disconnectEnded(h.ctx, "M1")

	assert.Equal(t, outcomeNoTarget, r.outcome)
	assert.NoError(t, r.err)
	assert.Empty(t, h.dev.takeActions())
}

func TestDisconnect_DisabledByPolicy(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.AutoDisconnectScheduled = false })
	h.dev.setBookings(meeting("M1", "1234", t0.Add(-30*time.Minute)))
	h.dev.setCalls(booking.ActiveCall{ID: "3", Remote: "1234"})

	h.send(BookingEnded{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
}

func TestDisconnect_EndClearsRetryState(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.MaxRetryAttempts = 0 })
	h.dev.setBookings(meeting("M2", "2222", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "1111"})

	h.send(BookingStarted{BookingID: "M2"})
	assert.Equal(t, []string{"M2"}, h.o.Snapshot().Exhausted)

	h.send(BookingEnded{BookingID: "M2"})
	assert.Empty(t, h.o.Snapshot().Exhausted)
}
