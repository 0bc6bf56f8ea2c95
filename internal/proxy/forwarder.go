// Package proxy performs the bounded network call to the legacy backend.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/eventhub/edge-gateway/internal/errors"
	"github.com/eventhub/edge-gateway/internal/transform"
)

// forwardedHeaders is the whitelist of request headers passed upstream. All
// other inbound headers, including any authorization artifacts, are dropped;
// the backend performs its own auth.
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	"Accept-Language",
	"User-Agent",
}

// Forwarder issues upstream calls with a bounded timeout and cancellation.
type Forwarder struct {
	transport http.RoundTripper
	timeout   time.Duration
}

// Config holds forwarder configuration.
type Config struct {
	Transport http.RoundTripper
	Timeout   time.Duration
}

// New creates a Forwarder. The transport is wrapped to follow origin
// redirects; Timeout defaults to 30s.
func New(cfg Config) *Forwarder {
	inner := cfg.Transport
	if inner == nil {
		inner = NewTransport(DefaultTransportConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		transport: &redirectTransport{inner: inner},
		timeout:   timeout,
	}
}

// Timeout returns the configured upstream bound.
func (f *Forwarder) Timeout() time.Duration { return f.timeout }

// Forward issues the upstream call for target. The call is bounded by the
// configured timeout; on expiry the in-flight request is aborted and a
// timeout error is returned, distinct from other transport failures.
// The raw response is returned unmodified for the caller to post-process.
func (f *Forwarder) Forward(ctx context.Context, target *transform.Target) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)

	req, err := f.buildRequest(ctx, target)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := f.transport.RoundTrip(req)
	if err != nil {
		cancel()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Timeout(err)
		}
		return nil, fmt.Errorf("upstream round trip: %w", err)
	}

	// The timeout covers body streaming too; cancel once the body is closed.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (f *Forwarder) buildRequest(ctx context.Context, target *transform.Target) (*http.Request, error) {
	u, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}

	body, getBody := rewindableBody(target.Body)
	req := (&http.Request{
		Method:        target.Method,
		URL:           u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Host:          u.Host,
		Body:          body,
		GetBody:       getBody,
		ContentLength: int64(len(target.Body)),
		Header:        make(http.Header, len(forwardedHeaders)+1),
	}).WithContext(ctx)

	for _, name := range forwardedHeaders {
		if v := target.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if target.JSONBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
