// SPDX-License-Identifier: MIT

package xapi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 10*time.Second)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	calls := 0
	fail := func() error { calls++; return boom }

	require.ErrorIs(t, cb.Execute(fail), boom)
	assert.Equal(t, StateClosed, cb.State())
	require.ErrorIs(t, cb.Execute(fail), boom)
	assert.Equal(t, StateOpen, cb.State())

	require.ErrorIs(t, cb.Execute(fail), ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit must not call through")
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, 10*time.Second)
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Execute(func() error { return errors.New("down") }))
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, 10*time.Second)
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Execute(func() error { return errors.New("down") }))
	now = now.Add(11 * time.Second)

	require.Error(t, cb.Execute(func() error {
		// A second caller is refused while the probe is in flight.
		assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
		return errors.New("still down")
	}))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return boom })

	assert.Equal(t, StateClosed, cb.State())
}
