// SPDX-License-Identifier: MIT

package xapi

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

type bookingsListCommand struct {
	XMLName   xml.Name `xml:"Command"`
	DayOffset int      `xml:"Bookings>List>DayOffset"`
	Days      int      `xml:"Bookings>List>Days"`
}

type bookingsListResponse struct {
	XMLName xml.Name           `xml:"Command"`
	Result  bookingsListResult `xml:"BookingsListResult"`
}

type bookingsListResult struct {
	Status   string       `xml:"status,attr,omitempty"`
	Bookings []bookingXML `xml:"Booking"`
}

type bookingXML struct {
	Item            int       `xml:"item,attr,omitempty"`
	ID              string    `xml:"Id"`
	Title           string    `xml:"Title"`
	MeetingPlatform string    `xml:"MeetingPlatform,omitempty"`
	MeetingID       string    `xml:"MeetingId,omitempty"`
	StartTime       string    `xml:"Time>StartTime"`
	EndTime         string    `xml:"Time>EndTime"`
	Calls           []callXML `xml:"DialInfo>Calls>Call"`
}

type callXML struct {
	Item     int    `xml:"item,attr,omitempty"`
	Number   string `xml:"Number"`
	Protocol string `xml:"Protocol,omitempty"`
	CallType string `xml:"CallType,omitempty"`
}

// bookingDays covers today and tomorrow, enough for a 24h lookahead.
const bookingDays = 2

// ListBookings returns today's and tomorrow's bookings. Entries with
// unparseable times are skipped.
func (c *Client) ListBookings(ctx context.Context) ([]booking.Booking, error) {
	data, err := c.command(ctx, "bookings_list", bookingsListCommand{Days: bookingDays})
	if err != nil {
		return nil, err
	}

	var resp bookingsListResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, badResponse("bookings_list", err, data)
	}

	out := make([]booking.Booking, 0, len(resp.Result.Bookings))
	for _, raw := range resp.Result.Bookings {
		b, err := raw.toBooking()
		if err != nil {
			c.logger.Warn().Err(err).
				Str(log.FieldEvent, "xapi.booking_skipped").
				Str(log.FieldBookingID, raw.ID).
				Msg("skipping booking with invalid time")
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (raw bookingXML) toBooking() (booking.Booking, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.StartTime))
	if err != nil {
		return booking.Booking{}, err
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.EndTime))
	if err != nil {
		return booking.Booking{}, err
	}

	b := booking.Booking{
		ID:        strings.TrimSpace(raw.ID),
		MeetingID: strings.TrimSpace(raw.MeetingID),
		Title:     strings.TrimSpace(raw.Title),
		Start:     start,
		End:       end,
		Platform:  strings.TrimSpace(raw.MeetingPlatform),
	}
	if len(raw.Calls) > 0 {
		b.Target = strings.TrimSpace(raw.Calls[0].Number)
		b.Protocol = booking.ProtocolFor(raw.Calls[0].Protocol, raw.MeetingPlatform)
	}
	return b, nil
}

func fromBooking(item int, b booking.Booking) bookingXML {
	raw := bookingXML{
		Item:            item,
		ID:              b.ID,
		Title:           b.Title,
		MeetingPlatform: b.Platform,
		MeetingID:       b.MeetingID,
		StartTime:       b.Start.UTC().Format(time.RFC3339),
		EndTime:         b.End.UTC().Format(time.RFC3339),
	}
	if b.Target != "" {
		proto := "SIP"
		if b.Protocol.IsWebConference() {
			proto = "WebRTC"
		}
		raw.Calls = []callXML{{Item: 1, Number: b.Target, Protocol: proto, CallType: "Video"}}
	}
	return raw
}
