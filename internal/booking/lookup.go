// SPDX-License-Identifier: MIT

package booking

import "time"

// DefaultHorizon bounds the lookahead scan for the next meeting.
const DefaultHorizon = 24 * time.Hour

// FindByID resolves a booking identifier by scanning the list.
func FindByID(bookings []Booking, id string) (Booking, bool) {
	for _, b := range bookings {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}

// Next returns the booking with the earliest start strictly after now and no
// later than now+horizon. Ties keep the first one listed.
func Next(bookings []Booking, now time.Time, horizon time.Duration) (Booking, bool) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	limit := now.Add(horizon)

	var (
		best  Booking
		found bool
	)
	for _, b := range bookings {
		if !b.Start.After(now) || b.Start.After(limit) {
			continue
		}
		if !found || b.Start.Before(best.Start) {
			best = b
			found = true
		}
	}
	return best, found
}

// FirstCall returns the first active call, if any. An empty list means no call.
func FirstCall(calls []ActiveCall) (ActiveCall, bool) {
	if len(calls) == 0 {
		return ActiveCall{}, false
	}
	return calls[0], true
}
