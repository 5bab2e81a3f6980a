// SPDX-License-Identifier: MIT

package feedback

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
)

// ErrMalformed marks a body that is not a well-formed feedback document.
var ErrMalformed = errors.New("malformed feedback document")

type idNode struct {
	ID string `xml:"Id"`
}

type eventDoc struct {
	Bookings *struct {
		Start           *idNode `xml:"Start"`
		End             *idNode `xml:"End"`
		StartTimeBuffer *idNode `xml:"StartTimeBuffer"`
		TimeRemaining   *struct {
			Seconds string `xml:"Seconds"`
		} `xml:"TimeRemaining"`
		Updated *struct{} `xml:"Updated"`
	} `xml:"Bookings"`
	CallDisconnect *struct{} `xml:"CallDisconnect"`
}

type statusDoc struct {
	Calls []struct {
		Status string `xml:"Status"`
	} `xml:"Call"`
}

// Parse turns one pushed document into orchestrator events. A well-formed
// document the daemon has no interest in yields no events and no error.
func Parse(body []byte) ([]orchestrator.Event, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	root, err := rootElement(dec)
	if err != nil {
		return nil, err
	}

	switch root.Name.Local {
	case "Event":
		var doc eventDoc
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return doc.events()
	case "Status":
		var doc statusDoc
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return doc.events(), nil
	default:
		if err := dec.Skip(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, nil
	}
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, fmt.Errorf("%w: empty document", ErrMalformed)
			}
			return xml.StartElement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func (d eventDoc) events() ([]orchestrator.Event, error) {
	var out []orchestrator.Event
	if b := d.Bookings; b != nil {
		if id, ok := bookingID(b.Start); ok {
			out = append(out, orchestrator.BookingStarted{BookingID: id})
		}
		if id, ok := bookingID(b.End); ok {
			out = append(out, orchestrator.BookingEnded{BookingID: id})
		}
		if id, ok := bookingID(b.StartTimeBuffer); ok {
			out = append(out, orchestrator.BookingStartBuffer{BookingID: id})
		}
		if tr := b.TimeRemaining; tr != nil {
			secs, err := strconv.Atoi(strings.TrimSpace(tr.Seconds))
			if err != nil {
				return nil, fmt.Errorf("%w: time remaining seconds %q", ErrMalformed, tr.Seconds)
			}
			out = append(out, orchestrator.BookingTimeRemaining{Seconds: secs})
		}
		if b.Updated != nil {
			out = append(out, orchestrator.BookingsUpdated{})
		}
	}
	if d.CallDisconnect != nil {
		out = append(out, orchestrator.CallDisconnected{})
	}
	return out, nil
}

func (d statusDoc) events() []orchestrator.Event {
	var out []orchestrator.Event
	for _, c := range d.Calls {
		if s := strings.TrimSpace(c.Status); s != "" {
			out = append(out, orchestrator.CallStatusChanged{Status: s})
		}
	}
	return out
}

func bookingID(n *idNode) (string, bool) {
	if n == nil {
		return "", false
	}
	id := strings.TrimSpace(n.ID)
	return id, id != ""
}
