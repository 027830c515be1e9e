// Package apiclient talks to a running thinkchatd over HTTP. It satisfies
// controller.Sender and feeds /events into a channel of worker events.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse"

	"thinkchat/pkg/types"
)

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL. A nil hc uses a client
// with a 10s timeout for commands; the event stream never times out.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// Send posts cmd to /commands and returns the correlation id.
func (c *Client) Send(cmd types.Command) (string, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Post(c.base+"/commands", "application/json", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("post command: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		var e types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return "", fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out types.CommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

// Status fetches /status.
func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var st types.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

// Events connects to /events and returns once the stream is established,
// so every event published afterwards is delivered. The channel closes when
// ctx is done or the stream ends; a read error is reported through errc.
func (c *Client) Events(ctx context.Context) (<-chan types.Event, <-chan error, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events", nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	// The stream outlives any per-request timeout.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("connect events: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("events: unexpected status %d", resp.StatusCode)
	}
	out := make(chan types.Event, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if ctx.Err() == nil {
					errc <- err
				}
				return
			}
			var e types.Event
			if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
				errc <- fmt.Errorf("decode %s event: %w", ev.Type, err)
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc, nil
}
