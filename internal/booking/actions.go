// SPDX-License-Identifier: MIT

package booking

// DialRequest is a direct dial to a booking target.
type DialRequest struct {
	Number       string
	DisplayName  string
	BookingID    string
	TrackingData string
}

// JoinRequest is a web-conference join descriptor.
type JoinRequest struct {
	BookingID string
	Title     string
	Platform  Platform
	URL       string
}

// DialRequestFor builds the dial request for a standard booking. The endpoint
// correlates calls by meeting id; the booking id travels as tracking data.
func DialRequestFor(b Booking) DialRequest {
	return DialRequest{
		Number:       b.Target,
		DisplayName:  b.Title,
		BookingID:    b.MeetingID,
		TrackingData: b.ID,
	}
}

// JoinRequestFor builds the join descriptor for a web-conference booking.
func JoinRequestFor(b Booking) JoinRequest {
	return JoinRequest{
		BookingID: b.MeetingID,
		Title:     b.Title,
		Platform:  b.JoinPlatform(),
		URL:       b.Target,
	}
}
