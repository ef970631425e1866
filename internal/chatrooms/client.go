package chatrooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/five82/lumen/internal/state"
)

// API defines the chatrooms endpoints used by Session.
// This interface is implemented by *Client and can be used for testing.
type API interface {
	Info(ctx context.Context) (Info, error)
	GetRoom(ctx context.Context, room string) (Room, error)
	CreateRoom(ctx context.Context) (Room, error)
	CheckUser(ctx context.Context, room string, creds Credentials) error
	CreateUser(ctx context.Context, room string, creds Credentials) (UserStatus, error)
	SendMessage(ctx context.Context, room string, creds Credentials, text string) (state.Message, error)
	LastMessages(ctx context.Context, room string, creds Credentials, after int64) ([]state.Message, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to a chatrooms HTTP server.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultUserAgent = "lumen/0.1"
	requestTimeout   = 5 * time.Second
	maxResponseBytes = 4 << 20
)

// NewClient builds a Client for a host:port or URL address.
func NewClient(address string) (*Client, error) {
	base, err := parseBaseURL(address)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Info retrieves the server's version information.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var payload Info
	if err := c.call(ctx, http.MethodGet, "/info", "", nil, &payload); err != nil {
		return Info{}, err
	}
	return payload, nil
}

// GetRoom checks that a room exists.
func (c *Client) GetRoom(ctx context.Context, room string) (Room, error) {
	if strings.TrimSpace(room) == "" {
		return Room{}, fmt.Errorf("room key required")
	}
	var payload Room
	if err := c.call(ctx, http.MethodGet, "/get_room", room, nil, &payload); err != nil {
		return Room{}, err
	}
	if payload.Key == "" {
		payload.Key = room
	}
	return payload, nil
}

// CreateRoom asks the server for a new room and returns its key.
func (c *Client) CreateRoom(ctx context.Context) (Room, error) {
	var payload Room
	if err := c.call(ctx, http.MethodPost, "/create_room", "", nil, &payload); err != nil {
		return Room{}, err
	}
	if payload.Key == "" {
		return Room{}, fmt.Errorf("create_room: server returned no room key")
	}
	return payload, nil
}

// CheckUser verifies credentials inside a room.
func (c *Client) CheckUser(ctx context.Context, room string, creds Credentials) error {
	return c.call(ctx, http.MethodGet, "/check_user", room, creds, nil)
}

// CreateUser registers a user inside a room. Rooms may require approval, in
// which case the user exists but cannot log in yet.
func (c *Client) CreateUser(ctx context.Context, room string, creds Credentials) (UserStatus, error) {
	payload := UserStatus{Approved: true}
	if err := c.call(ctx, http.MethodPost, "/create_user", room, creds, &payload); err != nil {
		return UserStatus{}, err
	}
	return payload, nil
}

// SendMessage posts text and returns the message as echoed by the server.
func (c *Client) SendMessage(ctx context.Context, room string, creds Credentials, text string) (state.Message, error) {
	var payload sendResponse
	req := sendRequest{Credentials: creds, Text: text}
	if err := c.call(ctx, http.MethodPost, "/send_message", room, req, &payload); err != nil {
		return state.Message{}, err
	}
	return payload.Message, nil
}

// LastMessages fetches messages with ids greater than after.
func (c *Client) LastMessages(ctx context.Context, room string, creds Credentials, after int64) ([]state.Message, error) {
	var payload fetchResponse
	req := fetchRequest{Credentials: creds, AfterMessage: after}
	if err := c.call(ctx, http.MethodGet, "/get_last_messages", room, req, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func (c *Client) call(ctx context.Context, method, path, room string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: path}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if room != "" {
		req.Header.Set("room", room)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	code := env.Code
	if code == 0 {
		code = resp.StatusCode
	}

	var out outcome
	if len(env.Data) > 0 {
		// data may be a bare value for endpoints without a status object.
		_ = json.Unmarshal(env.Data, &out)
	}
	if out.Success != nil && !*out.Success {
		return &ProtocolError{Endpoint: path, Code: code, Message: out.reason(env.Type)}
	}
	if resp.StatusCode >= 400 {
		return &ProtocolError{Endpoint: path, Code: code, Message: out.reason(http.StatusText(resp.StatusCode))}
	}

	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(address string) (*url.URL, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("server address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server address %q: missing host", address)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
