// SPDX-License-Identifier: MIT

package xapi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/vtjoeh/auto-connect-booking/internal/booking"
)

// Command is one command document received by the MockServer.
type Command struct {
	Name   string
	Params map[string]string
}

// knownCommands is ordered so that deeper paths win.
var knownCommands = []string{
	CommandMessageDisplay,
	CommandMessageClear,
	CommandFeedbackReg,
	CommandFeedbackDereg,
	CommandMute,
	CommandSoundPlay,
	CommandSoundStop,
	CommandBookingsList,
	CommandDisconnect,
	CommandJoin,
	CommandDial,
}

// MockServer emulates an endpoint's XML command interface for tests.
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	bookings []booking.Booking
	calls    []booking.ActiveCall
	commands []Command
	rejects  map[string]string // command name -> reason
	failures map[string]int    // command name or status location -> remaining 500s
	username string
	password string
}

// NewMockServer starts a mock endpoint with no bookings and no calls.
func NewMockServer() *MockServer {
	mock := &MockServer{
		rejects:  make(map[string]string),
		failures: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pathCommand, mock.handleCommand)
	mux.HandleFunc(pathStatus, mock.handleStatus)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetBookings replaces the booking list.
func (m *MockServer) SetBookings(bookings ...booking.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append([]booking.Booking(nil), bookings...)
}

// SetCalls replaces the active calls.
func (m *MockServer) SetCalls(calls ...booking.ActiveCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append([]booking.ActiveCall(nil), calls...)
}

// SetReject makes the named command answer with status="Error".
func (m *MockServer) SetReject(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[name] = reason
}

// SetFailures makes the next count requests for a command name or status
// location answer HTTP 500.
func (m *MockServer) SetFailures(key string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = count
}

// SetCredentials enables basic auth checks.
func (m *MockServer) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.password = username, password
}

// Commands returns all commands received so far, in order.
func (m *MockServer) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Command(nil), m.commands...)
}

// CommandNames returns the names of all commands received so far, in order.
func (m *MockServer) CommandNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.commands))
	for _, c := range m.commands {
		names = append(names, c.Name)
	}
	return names
}

// Reset clears recorded commands and injected behavior.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = nil
	m.calls = nil
	m.commands = nil
	m.rejects = make(map[string]string)
	m.failures = make(map[string]int)
}

func (m *MockServer) authorized(r *http.Request) bool {
	if m.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == m.username && pass == m.password
}

// takeFailure must be called with mu held.
func (m *MockServer) takeFailure(key string) bool {
	if m.failures[key] > 0 {
		m.failures[key]--
		return true
	}
	return false
}

func (m *MockServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cmd, err := parseCommand(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	m.commands = append(m.commands, cmd)
	if m.takeFailure(cmd.Name) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	if reason, ok := m.rejects[cmd.Name]; ok {
		_ = xml.NewEncoder(w).Encode(commandResult{Result: resultXML{Status: "Error", Reason: reason}})
		return
	}
	if cmd.Name == CommandBookingsList {
		resp := bookingsListResponse{Result: bookingsListResult{Status: "OK"}}
		for i, b := range m.bookings {
			resp.Result.Bookings = append(resp.Result.Bookings, fromBooking(i+1, b))
		}
		_ = xml.NewEncoder(w).Encode(resp)
		return
	}
	_ = xml.NewEncoder(w).Encode(commandResult{Result: resultXML{Status: "OK"}})
}

func (m *MockServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if m.takeFailure(location) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	switch location {
	case LocationCalls:
		doc := callStatusDoc{}
		for _, c := range m.calls {
			doc.Calls = append(doc.Calls, callStatusXML{Item: c.ID, CallbackNumber: c.Remote, Status: c.Status})
		}
		_ = xml.NewEncoder(w).Encode(doc)
	case LocationUptime:
		_, _ = w.Write([]byte("<Status><SystemUnit><Uptime>4242</Uptime></SystemUnit></Status>"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type commandResult struct {
	XMLName xml.Name  `xml:"Command"`
	Result  resultXML `xml:"Result"`
}

type resultXML struct {
	Status string `xml:"status,attr"`
	Reason string `xml:"Reason,omitempty"`
}

// parseCommand identifies a <Command> document by its element paths and
// collects leaf values as parameters.
func parseCommand(body []byte) (Command, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		stack  []string
		text   strings.Builder
		paths  = map[string]bool{}
		params = map[string]string{}
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Command{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			text.Reset()
			if len(stack) > 1 {
				paths[strings.Join(stack[1:], "/")] = true
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if v := strings.TrimSpace(text.String()); v != "" {
				params[t.Name.Local] = v
			}
			text.Reset()
			stack = stack[:len(stack)-1]
		}
	}
	for _, name := range knownCommands {
		if paths[name] {
			return Command{Name: name, Params: params}, nil
		}
	}
	return Command{}, errors.New("unknown command: " + strconv.Quote(string(body)))
}
