// ABOUTME: HTTP client for the downstream repair-shop REST API
// ABOUTME: Client owns the transport; Session binds one caller's bearer token to it

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every downstream call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a downstream response body is read.
const maxResponseSize = 8 << 20

// API is the set of backend operations tool handlers depend on.
type API interface {
	SearchEquipment(ctx context.Context, query string) ([]Equipment, error)
	ListEquipment(ctx context.Context) ([]Equipment, error)
	GetEquipment(ctx context.Context, id string) (*Equipment, error)
	UpdateEquipmentStatus(ctx context.Context, id string, status EquipmentStatus) (*Equipment, error)
	CreateRepairOrder(ctx context.Context, req CreateRepairOrderRequest) (*RepairOrder, error)
	GetRepairOrder(ctx context.Context, id string) (*RepairOrder, error)
	ListRepairOrdersByEquipment(ctx context.Context, equipmentID string) ([]RepairOrder, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Logger     *slog.Logger
	HTTPClient *http.Client // optional; Timeout is ignored when set
}

// Client is the long-lived connection to the backend. It holds no
// credential: every call goes through a Session.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "repairdesk-gateway"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger.With("component", "backend"),
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns a view of the client that authenticates every call with
// token. An empty token yields unauthenticated calls.
func (c *Client) Session(token string) *Session {
	return &Session{client: c, token: token}
}

// Ping checks that the backend answers HTTP at all. Any response, including
// an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: "reach backend", Message: err.Error(), Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	return nil
}

// Session is an immutable, per-request binding of a bearer token to a Client.
// It is safe for concurrent use and is discarded when the request ends.
type Session struct {
	client *Client
	token  string
}

var _ API = (*Session)(nil)

// SearchEquipment finds equipment by partial, case-insensitive match.
// Absence and authorization failures yield an empty slice.
func (s *Session) SearchEquipment(ctx context.Context, query string) ([]Equipment, error) {
	var out []Equipment
	err := s.do(ctx, "search equipment", http.MethodGet, "/equipments/search?q="+url.QueryEscape(query), nil, &out)
	if err != nil {
		if s.neutral(err, "search equipment") {
			return []Equipment{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = []Equipment{}
	}
	return out, nil
}

// ListEquipment returns all equipment visible to the caller.
func (s *Session) ListEquipment(ctx context.Context) ([]Equipment, error) {
	var out []Equipment
	err := s.do(ctx, "list equipment", http.MethodGet, "/equipments", nil, &out)
	if err != nil {
		if s.neutral(err, "list equipment") {
			return []Equipment{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = []Equipment{}
	}
	return out, nil
}

// GetEquipment fetches one equipment. Returns (nil, nil) when it does not
// exist or the caller may not see it.
func (s *Session) GetEquipment(ctx context.Context, id string) (*Equipment, error) {
	var out Equipment
	err := s.do(ctx, "get equipment", http.MethodGet, "/equipments/"+url.PathEscape(id), nil, &out)
	if err != nil {
		if s.neutral(err, "get equipment") {
			return nil, nil
		}
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// UpdateEquipmentStatus sets the equipment's current status.
func (s *Session) UpdateEquipmentStatus(ctx context.Context, id string, status EquipmentStatus) (*Equipment, error) {
	var out Equipment
	body := updateEquipmentRequest{CurrentStatus: status}
	if err := s.do(ctx, "update equipment status", http.MethodPatch, "/equipments/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRepairOrder opens a repair order. A nil ImageURLs is sent as [].
func (s *Session) CreateRepairOrder(ctx context.Context, req CreateRepairOrderRequest) (*RepairOrder, error) {
	if req.ImageURLs == nil {
		req.ImageURLs = []string{}
	}
	var out RepairOrder
	if err := s.do(ctx, "create repair order", http.MethodPost, "/repair-orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRepairOrder fetches one repair order, (nil, nil) when absent.
func (s *Session) GetRepairOrder(ctx context.Context, id string) (*RepairOrder, error) {
	var out RepairOrder
	err := s.do(ctx, "get repair order", http.MethodGet, "/repair-orders/"+url.PathEscape(id), nil, &out)
	if err != nil {
		if s.neutral(err, "get repair order") {
			return nil, nil
		}
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// ListRepairOrdersByEquipment returns every order filed against equipmentID.
func (s *Session) ListRepairOrdersByEquipment(ctx context.Context, equipmentID string) ([]RepairOrder, error) {
	var out []RepairOrder
	err := s.do(ctx, "get repair orders", http.MethodGet, "/repair-orders/equipment/"+url.PathEscape(equipmentID), nil, &out)
	if err != nil {
		if s.neutral(err, "get repair orders") {
			return []RepairOrder{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = []RepairOrder{}
	}
	return out, nil
}

// neutral reports whether err is a lookup absence, logging it if so.
func (s *Session) neutral(err error, op string) bool {
	if !isAbsence(err) {
		return false
	}
	s.client.logger.Warn("lookup returned no result",
		"op", op,
		"status", StatusCode(err),
		"authenticated", s.token != "",
	)
	return true
}

// do performs one JSON round trip. A response >= 400 becomes an *Error with
// the backend's message; transport and decode failures become an *Error too.
func (s *Session) do(ctx context.Context, op, method, path string, payload, out any) error {
	c := s.client

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &Error{Op: op, Message: "failed to marshal request payload", Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := err.Error()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			msg = "request timed out"
		}
		c.logger.Error("backend request failed", "op", op, "method", method, "path", path, "error", err)
		return &Error{Op: op, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		return &Error{Op: op, Status: resp.StatusCode, Message: extractMessage(resp.StatusCode, respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "malformed response from backend", Err: err}
	}
	return nil
}
