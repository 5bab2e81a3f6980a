// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
	"github.com/vtjoeh/auto-connect-booking/internal/journal"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fireNext fires the earliest timer due at or before limit.
func (c *fakeClock) fireNext(limit time.Time) bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if t.stopped || t.fired || t.at.After(limit) {
			continue
		}
		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	if next.at.After(c.now) {
		c.now = next.at
	}
	c.mu.Unlock()

	next.f()
	return true
}

func (c *fakeClock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// live counts timers that are neither stopped nor fired.
func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeDevice implements every collaborator port and records effects in order.
type fakeDevice struct {
	mu       sync.Mutex
	bookings []booking.Booking
	calls    []booking.ActiveCall
	actions  []string
	messages []string
	probes   int
	lookups  int

	listErr    error
	callsErr   error
	dialErr    error
	panicOnce  bool
	// hangUpOnDisconnect removes a call as soon as Disconnect is accepted.
	hangUpOnDisconnect bool
	messageDur map[string]time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{messageDur: make(map[string]time.Duration)}
}

func (d *fakeDevice) setBookings(b ...booking.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bookings = b
}

func (d *fakeDevice) setCalls(c ...booking.ActiveCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = c
}

func (d *fakeDevice) ListBookings(context.Context) ([]booking.Booking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOnce {
		d.panicOnce = false
		panic("directory exploded")
	}
	d.lookups++
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]booking.Booking(nil), d.bookings...), nil
}

func (d *fakeDevice) Calls(context.Context) ([]booking.ActiveCall, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.probes++
	if d.callsErr != nil {
		return nil, d.callsErr
	}
	return append([]booking.ActiveCall(nil), d.calls...), nil
}

func (d *fakeDevice) record(action string) {
	d.actions = append(d.actions, action)
}

func (d *fakeDevice) Dial(_ context.Context, req booking.DialRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("dial:" + req.Number)
	return d.dialErr
}

func (d *fakeDevice) Join(_ context.Context, req booking.JoinRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("join:%s:%s", req.Platform, req.URL))
	return d.dialErr
}

func (d *fakeDevice) Disconnect(_ context.Context, callID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("disconnect:" + callID)
	if d.hangUpOnDisconnect {
		kept := d.calls[:0]
		for _, c := range d.calls {
			if c.ID != callID {
				kept = append(kept, c)
			}
		}
		d.calls = kept
	}
	return nil
}

func (d *fakeDevice) MuteMicrophones(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("mute")
	return nil
}

func (d *fakeDevice) ShowMessage(_ context.Context, text string, dur time.Duration, _, _ int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("message:" + text)
	d.messages = append(d.messages, text)
	d.messageDur[text] = dur
	return nil
}

func (d *fakeDevice) ClearMessage(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("clear")
	return nil
}

func (d *fakeDevice) PlaySound(_ context.Context, name string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("sound:" + name)
	return nil
}

func (d *fakeDevice) takeActions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.actions
	d.actions = nil
	d.messages = nil
	return out
}

func (d *fakeDevice) takeMessages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.messages
	d.messages = nil
	d.actions = nil
	return out
}

func (d *fakeDevice) probeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(_ context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Decision+"/"+e.Outcome)
	}
	return out
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	ctx   context.Context
	o     *Orchestrator
	dev   *fakeDevice
	clock *fakeClock
	rec   *fakeRecorder
}

func newHarness(t *testing.T, mutate func(*config.Policy)) *harness {
	t.Helper()
	policy := config.DefaultPolicy()
	if mutate != nil {
		mutate(&policy)
	}

	h := &harness{
		t:     t,
		ctx:   context.Background(),
		dev:   newFakeDevice(),
		clock: newFakeClock(t0),
		rec:   &fakeRecorder{},
	}
	o, err := New(Deps{
		Bookings:   h.dev,
		Calls:      h.dev,
		Actuator:   h.dev,
		Microphone: h.dev,
		Notifier:   h.dev,
		Recorder:   h.rec,
		Clock:      h.clock,
	}, policy)
	require.NoError(t, err)
	h.o = o
	return h
}

// send handles ev synchronously, then anything it queued.
func (h *harness) send(ev Event) {
	h.o.dispatch(h.ctx, ev)
	h.drain()
}

func (h *harness) drain() {
	for {
		select {
		case ev := <-h.o.internal:
			h.o.dispatch(h.ctx, ev)
		default:
			return
		}
	}
}

// advance moves the clock forward, firing and handling each due timer in order.
func (h *harness) advance(d time.Duration) {
	target := h.clock.Now().Add(d)
	for h.clock.fireNext(target) {
		h.drain()
	}
	h.clock.set(target)
}

func meeting(id, target string, start time.Time) booking.Booking {
	return booking.Booking{
		ID:        id,
		MeetingID: "mtg-" + id,
		Title:     "Meeting " + id,
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Target:    target,
	}
}
