// SPDX-License-Identifier: MIT

package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"1234":                           "1234",
		"  sip:Room@Example.com ":        "room@example.com",
		"SIP:room@example.com;transport": "room@example.com",
		"h323:10.0.0.1":                  "10.0.0.1",
		"spark:abc-def":                  "abc-def",
		"sips:secure@example.com":        "secure@example.com",
		"tel:+4711223344":                "+4711223344",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAddress(in), "input %q", in)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("sip:1234", "1234"))
	assert.True(t, SameAddress("Room@Example.com", "sip:room@example.com"))
	assert.False(t, SameAddress("1234", "12345"))
	assert.False(t, SameAddress("", ""), "empty addresses never match")
}

func TestProtocolFor(t *testing.T) {
	assert.Equal(t, ProtocolStandard, ProtocolFor("SIP", "GoogleMeet"))
	assert.Equal(t, ProtocolStandard, ProtocolFor("", ""))
	assert.Equal(t, ProtocolWebConferenceA, ProtocolFor("WebRTC", "MSTeams"))
	assert.Equal(t, ProtocolWebConferenceA, ProtocolFor("webrtc", "Zoom"))
	assert.Equal(t, ProtocolWebConferenceB, ProtocolFor("WebRTC", "GoogleMeet"))
}

func TestActiveCallReaches(t *testing.T) {
	b := Booking{ID: "M1", Target: "1234"}
	assert.True(t, ActiveCall{Remote: "sip:1234"}.Reaches(b))
	assert.False(t, ActiveCall{Remote: "sip:9999"}.Reaches(b))
	assert.False(t, ActiveCall{Remote: ""}.Reaches(Booking{ID: "M2"}))
}

func TestNext(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	bookings := []Booking{
		{ID: "past", Start: now.Add(-time.Hour)},
		{ID: "now", Start: now},
		{ID: "later", Start: now.Add(2 * time.Hour)},
		{ID: "soon", Start: now.Add(10 * time.Minute)},
		{ID: "tomorrow+", Start: now.Add(25 * time.Hour)},
	}

	got, ok := Next(bookings, now, 24*time.Hour)
	assert.True(t, ok)
	assert.Equal(t, "soon", got.ID)

	_, ok = Next(bookings[:2], now, 24*time.Hour)
	assert.False(t, ok, "no future booking within horizon")

	_, ok = Next([]Booking{{ID: "far", Start: now.Add(25 * time.Hour)}}, now, 0)
	assert.False(t, ok, "zero horizon falls back to the default 24h")
}

func TestFindByID(t *testing.T) {
	bookings := []Booking{{ID: "a"}, {ID: "b", Title: "B"}}
	got, ok := FindByID(bookings, "b")
	assert.True(t, ok)
	assert.Equal(t, "B", got.Title)

	_, ok = FindByID(bookings, "zzz")
	assert.False(t, ok)
}

func TestRequestBuilders(t *testing.T) {
	b := Booking{ID: "42", MeetingID: "mtg-9", Title: "Weekly", Target: "https://meet.google.com/abc", Protocol: ProtocolWebConferenceB}

	assert.Equal(t, DialRequest{Number: b.Target, DisplayName: "Weekly", BookingID: "mtg-9", TrackingData: "42"}, DialRequestFor(b))
	assert.Equal(t, JoinRequest{BookingID: "mtg-9", Title: "Weekly", Platform: PlatformGoogleMeet, URL: b.Target}, JoinRequestFor(b))

	b.Protocol = ProtocolWebConferenceA
	assert.Equal(t, PlatformMSTeams, JoinRequestFor(b).Platform)
}
