// SPDX-License-Identifier: MIT

// Package booking holds the calendar booking and active call model shared by
// the endpoint client and the orchestrator.
package booking

import (
	"strings"
	"time"
)

// Protocol selects how a booking is connected.
type Protocol int

const (
	// ProtocolStandard is a direct dial (SIP, H.323, Spark...).
	ProtocolStandard Protocol = iota
	// ProtocolWebConferenceA is a browser-based join on the default platform (Microsoft Teams).
	ProtocolWebConferenceA
	// ProtocolWebConferenceB is a browser-based join on Google Meet.
	ProtocolWebConferenceB
)

func (p Protocol) String() string {
	switch p {
	case ProtocolWebConferenceA:
		return "web-conference-a"
	case ProtocolWebConferenceB:
		return "web-conference-b"
	default:
		return "standard"
	}
}

// IsWebConference reports whether the booking is joined rather than dialed.
func (p Protocol) IsWebConference() bool {
	return p == ProtocolWebConferenceA || p == ProtocolWebConferenceB
}

// Platform is the web-conference variant passed to the join command.
type Platform string

const (
	PlatformMSTeams    Platform = "MSTeams"
	PlatformGoogleMeet Platform = "GoogleMeet"
)

// ClassifyPlatform maps the booking's meeting platform label to a supported
// join variant. Unrecognised labels fall back to Microsoft Teams.
func ClassifyPlatform(label string) Platform {
	if strings.EqualFold(strings.TrimSpace(label), string(PlatformGoogleMeet)) {
		return PlatformGoogleMeet
	}
	return PlatformMSTeams
}

// ProtocolFor derives the connection protocol from the wire call protocol
// ("SIP", "H323", "WebRTC", ...) and the meeting platform label.
func ProtocolFor(callProtocol, platformLabel string) Protocol {
	if !strings.EqualFold(strings.TrimSpace(callProtocol), "WebRTC") {
		return ProtocolStandard
	}
	if ClassifyPlatform(platformLabel) == PlatformGoogleMeet {
		return ProtocolWebConferenceB
	}
	return ProtocolWebConferenceA
}

// Booking is one scheduled meeting instance as reported by the endpoint.
// It is read-only once fetched.
type Booking struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id,omitempty"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Target    string    `json:"target,omitempty"`
	Protocol  Protocol  `json:"-"`
	Platform  string    `json:"platform,omitempty"`
}

// Dialable reports whether the booking carries a connection target.
func (b Booking) Dialable() bool {
	return strings.TrimSpace(b.Target) != ""
}

// JoinPlatform returns the web-conference variant for the booking.
func (b Booking) JoinPlatform() Platform {
	if b.Protocol == ProtocolWebConferenceB {
		return PlatformGoogleMeet
	}
	return PlatformMSTeams
}

// ActiveCall is a call the endpoint currently has up.
type ActiveCall struct {
	ID     string `json:"id"`
	Remote string `json:"remote"`
	Status string `json:"status,omitempty"`
}

// Reaches reports whether the call is connected to the booking's target.
func (c ActiveCall) Reaches(b Booking) bool {
	if !b.Dialable() {
		return false
	}
	return SameAddress(c.Remote, b.Target)
}
