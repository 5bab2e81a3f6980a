// SPDX-License-Identifier: MIT

// Package orchestrator decides, for each booking lifecycle event and call
// state change, whether to dial, retry, preempt, disconnect or notify.
//
// All decisions run on a single dispatch loop. External events arrive through
// Submit on a bounded channel; timers (retry, countdown tick, message clear)
// only post internal events back to the loop, so State has exactly one
// writer and needs no lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vtjoeh/auto-connect-booking/internal/config"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
	"github.com/vtjoeh/auto-connect-booking/internal/telemetry"
)

const (
	tracerName        = "github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
	internalQueueSize = 16
)

// Deps are the collaborators the orchestrator drives. Recorder, Clock and
// Tracer are optional.
type Deps struct {
	Bookings   BookingLookup
	Calls      CallProbe
	Actuator   Actuator
	Microphone Microphone
	Notifier   Notifier
	Recorder   Recorder
	Clock      Clock
	Tracer     trace.Tracer
}

// Orchestrator is the meeting auto-connect state machine.
type Orchestrator struct {
	bookings BookingLookup
	calls    CallProbe
	actuator Actuator
	mic      Microphone
	notifier Notifier
	recorder Recorder
	clock    Clock
	tracer   trace.Tracer
	logger   zerolog.Logger

	events   chan Event
	internal chan Event
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	running  atomic.Bool

	// Loop-owned.
	state   State
	gen     uint64
	handled uint64

	snapshot atomic.Pointer[Snapshot]
}

// New validates deps and policy and returns an orchestrator ready to Run.
func New(deps Deps, policy config.Policy) (*Orchestrator, error) {
	if deps.Bookings == nil || deps.Calls == nil || deps.Actuator == nil || deps.Microphone == nil || deps.Notifier == nil {
		return nil, errors.New("orchestrator: missing collaborator")
	}
	if err := config.ValidatePolicy(policy); err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(tracerName)
	}

	o := &Orchestrator{
		bookings: deps.Bookings,
		calls:    deps.Calls,
		actuator: deps.Actuator,
		mic:      deps.Microphone,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		clock:    clock,
		tracer:   tracer,
		logger:   log.WithComponent("orchestrator"),
		events:   make(chan Event, policy.EventQueueSize),
		internal: make(chan Event, internalQueueSize),
		done:     make(chan struct{}),
		state:    newState(policy),
	}
	o.publish()
	return o, nil
}

// Submit queues an external event. It blocks while the queue is full until
// ctx is done.
func (o *Orchestrator) Submit(ctx context.Context, ev Event) error {
	if ev == nil {
		return errors.New("orchestrator: nil event")
	}
	kind := string(ev.Kind())

	select {
	case <-o.done:
		metrics.IncEventDropped(kind, "closed")
		return ErrStopped
	default:
	}

	select {
	case o.events <- ev:
		return nil
	case <-o.done:
		metrics.IncEventDropped(kind, "closed")
		return ErrStopped
	case <-ctx.Done():
		reason := "canceled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.IncEventDropped(kind, reason)
		return fmt.Errorf("submit %s: %w", kind, ctx.Err())
	}
}

// ApplyPolicy swaps the policy between events. Handlers always see one policy
// for their whole run.
func (o *Orchestrator) ApplyPolicy(ctx context.Context, p config.Policy) error {
	if err := config.ValidatePolicy(p); err != nil {
		return err
	}
	return o.Submit(ctx, policyChanged{policy: p})
}

// Snapshot returns the state published after the last handled event.
func (o *Orchestrator) Snapshot() Snapshot {
	return *o.snapshot.Load()
}

// Run dispatches events until ctx is done. Pending timers are stopped on
// return. Run may only be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("orchestrator: Run called twice")
	}
	o.running.Store(true)
	defer o.shutdown()

	o.publish()
	o.logger.Info().
		Str(log.FieldEvent, "orchestrator.started").
		Int("queue_size", cap(o.events)).
		Msg("dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().
				Str(log.FieldEvent, "orchestrator.stopped").
				Int("pending_events", len(o.events)).
				Msg("dispatch loop stopped")
			return nil
		case ev := <-o.events:
			o.dispatch(ctx, ev)
		case ev := <-o.internal:
			o.dispatch(ctx, ev)
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.stopOnce.Do(func() { close(o.done) })

	for id := range o.state.retries {
		o.discardRetry(id)
	}
	o.cancelCountdown()
	if p := o.state.pendingClear; p != nil {
		p.timer.Stop()
		o.state.pendingClear = nil
	}
	o.running.Store(false)
	o.publish()
}

// post hands a timer-produced event to the loop.
func (o *Orchestrator) post(ev Event) {
	select {
	case o.internal <- ev:
	case <-o.done:
	}
}

// nextGen returns a fresh timer generation.
func (o *Orchestrator) nextGen() uint64 {
	o.gen++
	return o.gen
}

// dispatch runs one handler under its own recover guard and publishes the
// resulting state.
func (o *Orchestrator) dispatch(ctx context.Context, ev Event) {
	kind := string(ev.Kind())
	start := time.Now()

	// Countdown ticks are not traced and carry no correlation id.
	var span trace.Span = noop.Span{}
	if _, tick := ev.(countdownTick); !tick {
		correlationID := uuid.NewString()
		ctx = log.ContextWithCorrelationID(ctx, correlationID)
		ctx, span = o.tracer.Start(ctx, "orchestrator.handle",
			trace.WithAttributes(telemetry.EventAttributes(kind, correlationID)...))
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.IncHandlerPanic(kind)
			span.SetStatus(codes.Error, "handler panic")
			l := log.WithContext(ctx, o.logger)
			l.Error().
				Str(log.FieldEvent, "handler.panic").
				Str(log.FieldKind, kind).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
		span.End()
		o.handled++
		o.publish()
		metrics.IncEvent(kind)
		metrics.ObserveEventHandle(kind, time.Since(start).Seconds())
	}()

	o.handle(ctx, ev)
}

func (o *Orchestrator) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case BookingStarted:
		o.onBookingStarted(ctx, e.BookingID)
	case retryDue:
		o.onRetryDue(ctx, e)
	case BookingEnded:
		o.onBookingEnded(ctx, e.BookingID)
	case BookingStartBuffer:
		o.onStartBuffer(ctx, e.BookingID)
	case BookingTimeRemaining:
		o.onTimeRemaining(ctx, e.Seconds)
	case CallStatusChanged:
		o.onCallStatus(ctx, e.Status)
	case CallDisconnected:
		o.refreshNextMeeting(ctx, string(KindCallDisconnected))
	case BookingsUpdated:
		o.refreshNextMeeting(ctx, string(KindBookingsUpdated))
	case countdownTick:
		o.onCountdownTick(ctx, e)
	case clearMessage:
		o.onClearMessage(ctx, e)
	case policyChanged:
		o.onPolicyChanged(ctx, e.policy)
	default:
		l := log.WithContext(ctx, o.logger)
		l.Warn().
			Str(log.FieldEvent, "event.unknown").
			Str(log.FieldKind, string(ev.Kind())).
			Msg("ignoring unknown event")
	}
}

func (o *Orchestrator) publish() {
	snap := o.state.snapshot()
	snap.EventsHandled = o.handled
	snap.Running = o.running.Load()
	snap.UpdatedAt = o.clock.Now()
	o.snapshot.Store(snap)
}

func (o *Orchestrator) onPolicyChanged(ctx context.Context, p config.Policy) {
	old := o.state.policy
	o.state.policy = p

	l := log.WithContext(ctx, o.logger)
	l.Info().
		Str(log.FieldEvent, "policy.applied").
		Bool("mute_on_connect", p.MuteOnConnect).
		Bool("auto_disconnect_adhoc", p.AutoDisconnectAdhoc).
		Int("max_retry_attempts", p.MaxRetryAttempts).
		Dur("retry_interval", p.RetryInterval).
		Msg("policy applied")

	if old.CountdownEnabled != p.CountdownEnabled ||
		old.CountdownWindow != p.CountdownWindow ||
		old.CountdownForNonCalls != p.CountdownForNonCalls ||
		old.LookaheadHorizon != p.LookaheadHorizon {
		o.refreshNextMeeting(ctx, string(kindPolicyChanged))
	}
}
