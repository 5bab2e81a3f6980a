// SPDX-License-Identifier: MIT

package xapi

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
)

// LocationCalls is the status path listing active calls.
const LocationCalls = "/Status/Call"

type callStatusDoc struct {
	XMLName xml.Name        `xml:"Status"`
	Calls   []callStatusXML `xml:"Call"`
}

type callStatusXML struct {
	Item           string `xml:"item,attr"`
	CallbackNumber string `xml:"CallbackNumber,omitempty"`
	RemoteNumber   string `xml:"RemoteNumber,omitempty"`
	Status         string `xml:"Status,omitempty"`
}

// Calls returns the endpoint's calls. No call is an empty slice.
func (c *Client) Calls(ctx context.Context) ([]booking.ActiveCall, error) {
	data, err := c.status(ctx, "calls", LocationCalls)
	if err != nil {
		return nil, err
	}

	var doc callStatusDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, badResponse("calls", err, data)
	}

	out := make([]booking.ActiveCall, 0, len(doc.Calls))
	for _, raw := range doc.Calls {
		remote := strings.TrimSpace(raw.CallbackNumber)
		if remote == "" {
			remote = strings.TrimSpace(raw.RemoteNumber)
		}
		out = append(out, booking.ActiveCall{
			ID:     strings.TrimSpace(raw.Item),
			Remote: remote,
			Status: strings.TrimSpace(raw.Status),
		})
	}
	return out, nil
}
