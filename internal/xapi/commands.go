// SPDX-License-Identifier: MIT

package xapi

import (
	"context"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

// Command paths below the <Command> root, as the mock server reports them.
const (
	CommandDial           = "Dial"
	CommandJoin           = "WebRTC/Join"
	CommandDisconnect     = "Call/Disconnect"
	CommandMute           = "Audio/Microphones/Mute"
	CommandMessageDisplay = "UserInterface/Message/TextLine/Display"
	CommandMessageClear   = "UserInterface/Message/TextLine/Clear"
	CommandSoundPlay      = "Audio/Sound/Play"
	CommandSoundStop      = "Audio/Sound/Stop"
	CommandBookingsList   = "Bookings/List"
	CommandFeedbackReg    = "HttpFeedback/Register"
	CommandFeedbackDereg  = "HttpFeedback/Deregister"
)

type dialCommand struct {
	XMLName      xml.Name `xml:"Command"`
	Number       string   `xml:"Dial>Number"`
	DisplayName  string   `xml:"Dial>DisplayName,omitempty"`
	BookingID    string   `xml:"Dial>BookingId,omitempty"`
	TrackingData string   `xml:"Dial>TrackingData,omitempty"`
}

type joinCommand struct {
	XMLName   xml.Name `xml:"Command"`
	BookingID string   `xml:"WebRTC>Join>BookingId,omitempty"`
	Title     string   `xml:"WebRTC>Join>Title,omitempty"`
	Type      string   `xml:"WebRTC>Join>Type"`
	URL       string   `xml:"WebRTC>Join>Url"`
}

type disconnectCommand struct {
	XMLName xml.Name `xml:"Command"`
	CallID  string   `xml:"Call>Disconnect>CallId,omitempty"`
}

type empty struct{}

type muteCommand struct {
	XMLName xml.Name `xml:"Command"`
	Mute    empty    `xml:"Audio>Microphones>Mute"`
}

type messageDisplayCommand struct {
	XMLName  xml.Name `xml:"Command"`
	Text     string   `xml:"UserInterface>Message>TextLine>Display>Text"`
	X        int      `xml:"UserInterface>Message>TextLine>Display>X"`
	Y        int      `xml:"UserInterface>Message>TextLine>Display>Y"`
	Duration int      `xml:"UserInterface>Message>TextLine>Display>Duration"`
}

type messageClearCommand struct {
	XMLName xml.Name `xml:"Command"`
	Clear   empty    `xml:"UserInterface>Message>TextLine>Clear"`
}

type soundPlayCommand struct {
	XMLName xml.Name `xml:"Command"`
	Sound   string   `xml:"Audio>Sound>Play>Sound"`
}

type soundStopCommand struct {
	XMLName xml.Name `xml:"Command"`
	Stop    empty    `xml:"Audio>Sound>Stop"`
}

// Dial places a direct call. It returns once the endpoint accepted the
// command, not when the call is established.
func (c *Client) Dial(ctx context.Context, req booking.DialRequest) error {
	_, err := c.command(ctx, "dial", dialCommand{
		Number:       req.Number,
		DisplayName:  req.DisplayName,
		BookingID:    req.BookingID,
		TrackingData: req.TrackingData,
	})
	return err
}

// Join starts a browser-based web-conference join.
func (c *Client) Join(ctx context.Context, req booking.JoinRequest) error {
	_, err := c.command(ctx, "join", joinCommand{
		BookingID: req.BookingID,
		Title:     req.Title,
		Type:      string(req.Platform),
		URL:       req.URL,
	})
	return err
}

// Disconnect ends a call. An empty id disconnects the current call.
func (c *Client) Disconnect(ctx context.Context, callID string) error {
	_, err := c.command(ctx, "disconnect", disconnectCommand{CallID: callID})
	return err
}

// MuteMicrophones mutes all microphones.
func (c *Client) MuteMicrophones(ctx context.Context) error {
	_, err := c.command(ctx, "mute", muteCommand{})
	return err
}

// ShowMessage displays a text line at position (x, y) for duration, rounded
// up to whole seconds. A zero duration keeps the text until cleared.
func (c *Client) ShowMessage(ctx context.Context, text string, duration time.Duration, x, y int) error {
	secs := int((duration + time.Second - 1) / time.Second)
	_, err := c.command(ctx, "message_display", messageDisplayCommand{Text: text, X: x, Y: y, Duration: secs})
	return err
}

// ClearMessage removes the on-screen text line.
func (c *Client) ClearMessage(ctx context.Context) error {
	_, err := c.command(ctx, "message_clear", messageClearCommand{})
	return err
}

// PlaySound plays a built-in sound and, when autoStop is positive, stops it
// after that long. A newer sound replaces a pending stop.
func (c *Client) PlaySound(ctx context.Context, name string, autoStop time.Duration) error {
	if _, err := c.command(ctx, "sound_play", soundPlayCommand{Sound: name}); err != nil {
		return err
	}
	if autoStop > 0 {
		c.scheduleSoundStop(autoStop)
	}
	return nil
}

func (c *Client) scheduleSoundStop(after time.Duration) {
	c.soundMu.Lock()
	defer c.soundMu.Unlock()
	if c.closed {
		return
	}
	if c.soundStop != nil {
		c.soundStop.Stop()
	}
	c.soundStop = time.AfterFunc(after, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if _, err := c.command(ctx, "sound_stop", soundStopCommand{}); err != nil {
			c.logger.Warn().Err(err).
				Str(log.FieldEvent, "xapi.sound_stop_failed").
				Msg("failed to stop sound")
		}
	})
}

type feedbackExpression struct {
	Item  int    `xml:"item,attr"`
	Value string `xml:",chardata"`
}

type feedbackRegisterCommand struct {
	XMLName     xml.Name             `xml:"Command"`
	Slot        int                  `xml:"HttpFeedback>Register>FeedbackSlot"`
	Format      string               `xml:"HttpFeedback>Register>Format"`
	ServerURL   string               `xml:"HttpFeedback>Register>ServerUrl"`
	Expressions []feedbackExpression `xml:"HttpFeedback>Register>Expression"`
}

type feedbackDeregisterCommand struct {
	XMLName xml.Name `xml:"Command"`
	Slot    int      `xml:"HttpFeedback>Deregister>FeedbackSlot"`
}

// FeedbackExpressions are the document paths the daemon subscribes to.
var FeedbackExpressions = []string{
	"/Event/Bookings",
	"/Event/CallDisconnect",
	"/Status/Call/Status",
}

// RegisterFeedback asks the endpoint to push the given expressions to serverURL.
func (c *Client) RegisterFeedback(ctx context.Context, slot int, serverURL string, expressions []string) error {
	cmd := feedbackRegisterCommand{Slot: slot, Format: "XML", ServerURL: serverURL}
	for i, expr := range expressions {
		cmd.Expressions = append(cmd.Expressions, feedbackExpression{Item: i + 1, Value: expr})
	}
	if _, err := c.command(ctx, "feedback_register", cmd); err != nil {
		return err
	}
	c.logger.Info().
		Str(log.FieldEvent, "xapi.feedback_registered").
		Str("slot", strconv.Itoa(slot)).
		Str("server_url", serverURL).
		Msg("feedback registered")
	return nil
}

// DeregisterFeedback frees a feedback slot.
func (c *Client) DeregisterFeedback(ctx context.Context, slot int) error {
	_, err := c.command(ctx, "feedback_deregister", feedbackDeregisterCommand{Slot: slot})
	return err
}

// LocationUptime is the cheap status path used for health probes.
const LocationUptime = "/Status/SystemUnit/Uptime"

// Ping checks that the endpoint answers status requests.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.status(ctx, "ping", LocationUptime)
	return err
}
