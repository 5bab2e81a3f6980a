// SPDX-License-Identifier: MIT

// Package xapi is a client for the video endpoint's XML command interface:
// commands are POSTed to /putxml, status is read from /getxml.
package xapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
	"github.com/vtjoeh/auto-connect-booking/internal/telemetry"
)

const (
	tracerName       = "github.com/vtjoeh/auto-connect-booking/internal/xapi"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20

	pathCommand = "/putxml"
	pathStatus  = "/getxml"
)

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	Username string
	Password string
	Timeout  time.Duration

	// CommandsPerSecond limits outbound requests; zero means unlimited.
	CommandsPerSecond float64
	Burst             int

	BreakerThreshold int
	BreakerReset     time.Duration

	HTTPClient *http.Client
}

// Client talks to one endpoint.
type Client struct {
	base     string
	http     *http.Client
	username string
	password string
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *CircuitBreaker
	logger   zerolog.Logger

	soundMu   sync.Mutex
	soundStop *time.Timer
	closed    bool
}

// New creates a client for the endpoint at base (scheme://host[:port]).
func New(base string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.CommandsPerSecond > 0 {
		limit = rate.Limit(opts.CommandsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	reset := opts.BreakerReset
	if reset <= 0 {
		reset = 30 * time.Second
	}

	return &Client{
		base:     strings.TrimRight(base, "/"),
		http:     httpClient,
		username: opts.Username,
		password: opts.Password,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  NewCircuitBreaker(opts.BreakerThreshold, reset),
		logger: log.WithComponent("xapi").With().
			Str(log.FieldBaseURL, base).Logger(),
	}
}

// Breaker exposes the circuit breaker state for readiness reporting.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Close cancels a pending sound auto-stop. The client must not be used afterwards.
func (c *Client) Close() {
	c.soundMu.Lock()
	defer c.soundMu.Unlock()
	c.closed = true
	if c.soundStop != nil {
		c.soundStop.Stop()
		c.soundStop = nil
	}
}

func (c *Client) command(ctx context.Context, op string, doc any) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("xapi: %s: encode command: %w", op, err)
	}
	return c.exchange(ctx, op, http.MethodPost, pathCommand, body)
}

func (c *Client) status(ctx context.Context, op, location string) ([]byte, error) {
	return c.exchange(ctx, op, http.MethodGet, pathStatus+"?location="+url.QueryEscape(location), nil)
}

func (c *Client) exchange(ctx context.Context, op, method, path string, body []byte) (data []byte, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "xapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.XAPIAttributes(op, method)...))
	defer func() {
		outcome := outcomeLabel(err)
		metrics.ObserveXAPIRequest(op, outcome, time.Since(start).Seconds())
		span.SetAttributes(attribute.String(telemetry.XAPIOutcomeKey, outcome))
		if err != nil {
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if err != nil {
			c.logger.Debug().Err(err).
				Str(log.FieldEvent, "xapi.request_failed").
				Str(log.FieldCommand, op).
				Msg("endpoint request failed")
		}
	}()

	var callErr error
	brErr := c.breaker.Execute(func() error {
		data, callErr = c.roundTrip(ctx, op, method, path, body)
		if callErr != nil && retriable(callErr) {
			return callErr
		}
		return nil
	})
	if callErr == nil && brErr != nil {
		return nil, wrapError(op, brErr, 0, nil)
	}
	if callErr != nil {
		return nil, callErr
	}

	if method == http.MethodPost {
		if err := checkResult(op, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapError(op, err, 0, nil)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("xapi: %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(op, err, 0, nil)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, wrapError(op, err, res.StatusCode, nil)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, wrapError(op, nil, res.StatusCode, data)
	}
	return data, nil
}

// checkResult looks for a status="Error" result element in a command response.
func checkResult(op string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		failed   bool
		inReason bool
		reason   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return badResponse(op, err, data)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			for _, attr := range t.Attr {
				if attr.Name.Local == "status" && strings.EqualFold(attr.Value, "Error") {
					failed = true
				}
			}
			if t.Name.Local == "Reason" {
				inReason = true
			}
		case xml.CharData:
			if inReason {
				reason.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "Reason" {
				inReason = false
			}
		}
	}
	if !failed {
		return nil
	}
	text := strings.TrimSpace(reason.String())
	if text == "" {
		text = "no reason given"
	}
	return &Error{Sentinel: ErrRejected, Operation: op, Body: sanitizeBody([]byte(text))}
}
