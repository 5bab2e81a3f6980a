// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/feedback"
	"github.com/vtjoeh/auto-connect-booking/internal/health"
	"github.com/vtjoeh/auto-connect-booking/internal/journal"
	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
)

type staticStatus struct{ snap orchestrator.Snapshot }

func (s staticStatus) Snapshot() orchestrator.Snapshot { return s.snap }

type fakeJournal struct {
	entries   []journal.Entry
	err       error
	lastLimit int
}

func (f *fakeJournal) List(_ context.Context, limit int) ([]journal.Entry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

type sinkFunc func(ctx context.Context, ev orchestrator.Event) error

func (f sinkFunc) Submit(ctx context.Context, ev orchestrator.Event) error { return f(ctx, ev) }

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(deps).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snap := orchestrator.Snapshot{
		NextMeeting:    &booking.Booking{ID: "7", Title: "Standup", Start: start, Target: "room@example.com"},
		NextIsCall:     true,
		PendingRetries: map[string]int{"7": 1},
		Running:        true,
	}
	srv := newTestServer(t, Deps{Status: staticStatus{snap}})

	var got orchestrator.Snapshot
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/status", &got))
	require.NotNil(t, got.NextMeeting)
	assert.Equal(t, "Standup", got.NextMeeting.Title)
	assert.True(t, got.NextMeeting.Start.Equal(start))
	assert.True(t, got.NextIsCall)
	assert.Equal(t, map[string]int{"7": 1}, got.PendingRetries)
}

func TestJournal(t *testing.T) {
	j := &fakeJournal{entries: []journal.Entry{
		{ID: "b", BookingID: "7", Decision: "connect", Outcome: "dialed"},
		{ID: "a", BookingID: "6", Decision: "disconnect", Outcome: "disconnected"},
	}}
	srv := newTestServer(t, Deps{Journal: j})

	var got journalResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/journal?limit=2", &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "dialed", got.Entries[0].Outcome)
	assert.Equal(t, 2, j.lastLimit)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/journal", &got))
	assert.Equal(t, 0, j.lastLimit)
}

func TestJournal_Errors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newTestServer(t, Deps{})
		var body map[string]string
		assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/journal", &body))
		assert.Equal(t, "journal_disabled", body["error"])
	})
	t.Run("bad limit", func(t *testing.T) {
		srv := newTestServer(t, Deps{Journal: &fakeJournal{}})
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/journal?limit=-1", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/journal?limit=ten", nil))
	})
	t.Run("store failure", func(t *testing.T) {
		srv := newTestServer(t, Deps{Journal: &fakeJournal{err: errors.New("disk I/O error")}})
		assert.Equal(t, http.StatusInternalServerError, getJSON(t, srv.URL+"/api/v1/journal", nil))
	})
	t.Run("empty", func(t *testing.T) {
		srv := newTestServer(t, Deps{Journal: &fakeJournal{}})
		var got journalResponse
		require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/journal", &got))
		assert.NotNil(t, got.Entries)
		assert.Zero(t, got.Count)
	})
}

func TestFeedbackRoute(t *testing.T) {
	var got []orchestrator.Event
	sink := sinkFunc(func(_ context.Context, ev orchestrator.Event) error {
		got = append(got, ev)
		return nil
	})
	srv := newTestServer(t, Deps{Feedback: feedback.NewHandler(sink)})

	resp, err := http.Post(srv.URL+"/feedback", "text/xml",
		strings.NewReader(`<Event><Bookings><End><Id>9</Id></End></Bookings></Event>`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []orchestrator.Event{orchestrator.BookingEnded{BookingID: "9"}}, got)

	resp, err = http.Get(srv.URL + "/feedback")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFeedbackRoute_RateLimited(t *testing.T) {
	sink := sinkFunc(func(context.Context, orchestrator.Event) error { return nil })
	srv := newTestServer(t, Deps{
		Feedback: feedback.NewHandler(sink),
		FeedbackLimit: func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})

	resp, err := http.Post(srv.URL+"/feedback", "text/xml", strings.NewReader(`<Event/>`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestProbes(t *testing.T) {
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewLoopChecker(func() (bool, time.Time) { return false, time.Time{} }))
	srv := newTestServer(t, Deps{Health: hm})

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil))
	var ready health.ReadinessResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/readyz", &ready))
	assert.False(t, ready.Ready)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
