package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/okian/airsense/internal/domain/types"
)

// Client talks to the airsense HTTP API.
type Client struct {
	base   string
	http   *http.Client
	dialer *websocket.Dialer
}

// NewClient returns a client for cfg.BaseURL.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Ack is the body returned for an accepted command.
type Ack struct {
	Status  string `json:"status"`
	Command string `json:"command"`
}

// Reading fetches the latest snapshot. ErrNoReading is returned before the first cycle.
func (c *Client) Reading(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	resp, err := c.do(ctx, http.MethodGet, "/reading")
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return snap, ErrNoReading
	default:
		return snap, unexpected(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode reading: %w", err)
	}
	return snap, nil
}

// Refresh asks the service to sample now.
func (c *Client) Refresh(ctx context.Context) (Ack, error) {
	return c.command(ctx, "/refresh")
}

// Reinit asks the service to set the sensor up again.
func (c *Client) Reinit(ctx context.Context) (Ack, error) {
	return c.command(ctx, "/reinit")
}

// Stats fetches the service counters.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, "/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, unexpected(resp)
	}
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return out, nil
}

// Watch streams snapshots from /ws into fn until ctx ends, fn returns false,
// or the server closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(types.Snapshot) bool) error {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var snap types.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if !fn(snap) {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteMessage(websocket.CloseMessage, msg)
			return nil
		}
	}
}

func (c *Client) command(ctx context.Context, path string) (Ack, error) {
	var ack Ack
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return ack, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return ack, unexpected(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return ack, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func unexpected(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpected,
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
}
