// SPDX-License-Identifier: MIT

package orchestrator

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
)

func TestConnect_DialsStandardBookingMutingFirst(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234", t0))

	h.send(BookingStarted{BookingID: "M1"})

	assert.Equal(t, []string{
		"mute",
		"message:Auto-connecting to: Meeting M1",
		"sound:Dial",
		"dial:1234",
	}, h.dev.takeActions())
	assert.Equal(t, []string{"connect/dialed"}, h.rec.outcomes())
	assert.Empty(t, h.o.Snapshot().PendingRetries)
}

func TestConnect_NoMuteWhenDisabled(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.MuteOnConnect = false })
	h.dev.setBookings(meeting("M1", "1234", t0))

	h.send(BookingStarted{BookingID: "M1"})

	actions := h.dev.takeActions()
	assert.NotContains(t, actions, "mute")
	assert.Contains(t, actions, "dial:1234")
}

func TestConnect_QuietWhenMessagesAndSoundsDisabled(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) {
		p.MessagesEnabled = false
		p.SoundsEnabled = false
	})
	h.dev.setBookings(meeting("M1", "1234", t0))

	h.send(BookingStarted{BookingID: "M1"})

	assert.Equal(t, []string{"mute", "dial:1234"}, h.dev.takeActions())
}

func TestConnect_JoinsWebConference(t *testing.T) {
	h := newHarness(t, nil)
	m := meeting("M1", "https://meet.google.com/abc-defg-hij", t0)
	m.Protocol = booking.ProtocolWebConferenceB
	h.dev.setBookings(m)

	h.send(BookingStarted{BookingID: "M1"})

	actions := h.dev.takeActions()
	require.NotEmpty(t, actions)
	assert.Equal(t, "join:GoogleMeet:https://meet.google.com/abc-defg-hij", actions[len(actions)-1])
	assert.Equal(t, []string{"connect/joined"}, h.rec.outcomes())
}

func TestConnect_EmptyTargetNeverDials(t *testing.T) {
	for _, target := range []string{"", "   "} {
		h := newHarness(t, nil)
		h.dev.setBookings(meeting("M1", target, t0))

		h.send(BookingStarted{BookingID: "M1"})

		assert.Empty(t, h.dev.takeActions(), "target %q", target)
		assert.Equal(t, []string{"connect/no_target"}, h.rec.outcomes())
	}
}

// A call from the previous meeting stays up: the start is retried at the
// configured interval exactly max-retry-attempts times, then abandoned.
func TestConnect_BackToBackRetriesThenAbandons(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) {
		p.RetryInterval = 5 * time.Second
		p.MaxRetryAttempts = 3
	})
	h.dev.setBookings(meeting("M0", "sip:m0@example.com", t0.Add(-30*time.Minute)), meeting("M2", "m2@example.com", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "sip:m0@example.com"})

	h.send(BookingStarted{BookingID: "M2"})
	assert.Equal(t, map[string]int{"M2": 1}, h.o.Snapshot().PendingRetries)

	probes := h.dev.probeCount()
	for i := 1; i <= 3; i++ {
		h.advance(4 * time.Second)
		assert.Equal(t, probes+i-1, h.dev.probeCount(), "retry %d fired early", i)
		h.advance(time.Second)
		assert.Equal(t, probes+i, h.dev.probeCount(), "retry %d did not fire", i)
	}

	snap := h.o.Snapshot()
	assert.Empty(t, snap.PendingRetries)
	assert.Equal(t, []string{"M2"}, snap.Exhausted)

	h.advance(time.Minute)
	assert.Equal(t, probes+3, h.dev.probeCount(), "no attempts after the budget is spent")
	assert.Empty(t, h.dev.takeActions())
	assert.Equal(t, []string{"connect/exhausted"}, h.rec.outcomes())
	assert.Zero(t, h.clock.live())

	// A repeated start for the abandoned booking is ignored.
	h.send(BookingStarted{BookingID: "M2"})
	assert.Empty(t, h.dev.takeActions())
	assert.Zero(t, h.clock.live())
}

func TestConnect_RetrySucceedsOnceCallEnds(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M2", "2222", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "1111"})

	h.send(BookingStarted{BookingID: "M2"})
	assert.Empty(t, h.dev.takeActions())

	h.dev.setCalls()
	h.advance(config.DefaultPolicy().RetryInterval)

	assert.Contains(t, h.dev.takeActions(), "dial:2222")
	assert.Empty(t, h.o.Snapshot().PendingRetries)
	assert.Zero(t, h.clock.live())
}

func TestConnect_ZeroRetriesAbandonsImmediately(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.MaxRetryAttempts = 0 })
	h.dev.setBookings(meeting("M2", "2222", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "1111"})

	h.send(BookingStarted{BookingID: "M2"})

	assert.Equal(t, []string{"connect/exhausted"}, h.rec.outcomes())
	assert.Zero(t, h.clock.live())
}

func TestConnect_DuplicateStartWhileRetryPending(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M2", "2222", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "1111"})

	h.send(BookingStarted{BookingID: "M2"})
	h.send(BookingStarted{BookingID: "M2"})

	assert.Equal(t, 1, h.clock.live())
	assert.Equal(t, map[string]int{"M2": 1}, h.o.Snapshot().PendingRetries)
}

func TestConnect_NewStartSupersedesOtherRetries(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1111", t0), meeting("M2", "2222", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "1", Remote: "9999"})

	h.send(BookingStarted{BookingID: "M1"})
	h.send(BookingStarted{BookingID: "M2"})

	assert.Equal(t, map[string]int{"M2": 1}, h.o.Snapshot().PendingRetries)
	assert.Equal(t, 1, h.clock.live())
}

func TestConnect_AlreadyInMeeting(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.AutoDisconnectAdhoc = true })
	h.dev.setBookings(meeting("M1", "1234@Example.com", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "4", Remote: "sip:1234@example.com"})

	h.send(BookingStarted{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
	assert.Empty(t, h.o.Snapshot().PendingRetries)
	assert.Zero(t, h.clock.live())
}

func TestConnect_PreemptsAdhocCall(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.AutoDisconnectAdhoc = true })
	h.dev.setBookings(meeting("M1", "1234", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "7", Remote: "adhoc@example.com"})

	h.send(BookingStarted{BookingID: "M1"})
	assert.Equal(t, []string{
		"disconnect:7",
		"message:Ending call for scheduled meeting: Meeting M1",
		"sound:Announcement",
	}, h.dev.takeActions())

	// The ad-hoc call tears down before the retry.
	h.dev.setCalls()
	h.advance(5 * time.Second)

	assert.Equal(t, []string{
		"mute",
		"message:Auto-connecting to: Meeting M1",
		"sound:Dial",
		"dial:1234",
	}, h.dev.takeActions())
	assert.Equal(t, []string{"preempt/preempted", "connect/dialed"}, h.rec.outcomes())
}

func TestConnect_PreemptedCallGoneDialsImmediately(t *testing.T) {
	for _, retries := range []int{0, 3} {
		t.Run(fmt.Sprintf("max_retries=%d", retries), func(t *testing.T) {
			h := newHarness(t, func(p *config.Policy) {
				p.AutoDisconnectAdhoc = true
				p.MaxRetryAttempts = retries
			})
			h.dev.hangUpOnDisconnect = true
			h.dev.setBookings(meeting("M1", "1234", t0))
			h.dev.setCalls(booking.ActiveCall{ID: "7", Remote: "adhoc@example.com"})

			h.send(BookingStarted{BookingID: "M1"})

			assert.Equal(t, []string{
				"disconnect:7",
				"message:Ending call for scheduled meeting: Meeting M1",
				"sound:Announcement",
				"mute",
				"message:Auto-connecting to: Meeting M1",
				"sound:Dial",
				"dial:1234",
			}, h.dev.takeActions())
			assert.Equal(t, []string{"preempt/preempted", "connect/dialed"}, h.rec.outcomes())
			assert.Empty(t, h.o.state.retries)
			assert.NotContains(t, h.o.state.exhausted, "M1")
		})
	}
}

func TestConnect_AdhocCallNotPreemptedByDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234", t0))
	h.dev.setCalls(booking.ActiveCall{ID: "7", Remote: "adhoc@example.com"})

	h.send(BookingStarted{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
	assert.Equal(t, 1, h.clock.live(), "a retry is pending instead")
}

func TestConnect_LookupFailureAbortsWithoutRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234", t0))
	h.dev.listErr = errors.New("directory unavailable")

	h.send(BookingStarted{BookingID: "M1"})

	assert.Empty(t, h.dev.takeActions())
	assert.Zero(t, h.clock.live())
	assert.Empty(t, h.rec.outcomes())

	// The next event is processed normally.
	h.dev.listErr = nil
	h.send(BookingStarted{BookingID: "M1"})
	assert.Contains(t, h.dev.takeActions(), "dial:1234")
}

func TestConnect_UnknownBooking(t *testing.T) {
	h := newHarness(t, nil)

	r := h.o.connect(h.ctx, "nope", 0)

	assert.Equal(t, outcomeLookupFailed, r.outcome)
	assert.ErrorIs(t, r.err, ErrLookup)
}

func TestConnect_ActuatorFailureIsJournaled(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.setBookings(meeting("M1", "1234", t0))
	h.dev.dialErr = errors.New("rejected")

	r := h.o.connect(h.ctx, "M1", 0)
	assert.Equal(t, outcomeActuatorFailed, r.outcome)
	assert.ErrorIs(t, r.err, ErrActuator)

	h.send(BookingStarted{BookingID: "M1"})
	assert.Equal(t, []string{"connect/actuator_failed"}, h.rec.outcomes())
	assert.Zero(t, h.clock.live(), "actuator failures are not retried")
}

func TestConnect_LogLinesCarryBookingIDOnce(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) { p.AutoDisconnectAdhoc = true })
	var buf bytes.Buffer
	h.o.logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	h.dev.setBookings(meeting("M1", "1234", t0), meeting("M2", "5678", t0.Add(time.Hour)))
	h.dev.setCalls(booking.ActiveCall{ID: "7", Remote: "adhoc@example.com"})
	h.send(BookingStarted{BookingID: "M1"})

	out := buf.String()
	lines := 0
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		lines++
		assert.LessOrEqual(t, strings.Count(line, `"booking_id"`), 1, line)
	}
	require.NotZero(t, lines)
	assert.Contains(t, out, `"booking_id":"M1"`)
}
