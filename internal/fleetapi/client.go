package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/lumenfleet/lumen-core/internal/infrastructure/config"
	"github.com/lumenfleet/lumen-core/internal/node"
	"github.com/lumenfleet/lumen-core/internal/schedule"
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the HTTP client for the backing fleet service.
//
// The fleet service owns persistence and node reachability; Lumen Core
// treats it as the authoritative write path. Every request carries the
// configured bearer token and passes through a client-side rate limiter
// so bursts of schedule activity cannot trip the service's throttling.
//
// The Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  Logger
}

// NewClient creates a fleet service client from configuration.
//
// A zero rate limit disables client-side throttling.
func NewClient(cfg *config.Config) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.Fleet.RateLimit > 0 {
		limit = rate.Limit(cfg.Fleet.RateLimit)
		burst = cfg.Fleet.RateBurst
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Fleet.BaseURL, "/"),
		token:   cfg.Fleet.Token,
		http: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// commandPayload is the POST /api/lamp/control body: the routing pair
// plus every field present in the update. The service persists whatever
// it is given, so a location edit must ride along here or the next
// snapshot reverts it.
type commandPayload struct {
	GatewayID      string      `json:"gw_id"`
	NodeID         string      `json:"node_id"`
	Power          *node.Power `json:"lamp_state,omitempty"`
	DimLevel       *int        `json:"lamp_dim,omitempty"`
	Lat            *float64    `json:"lat,omitempty"`
	Lng            *float64    `json:"lng,omitempty"`
	Lux            *float64    `json:"lux,omitempty"`
	CurrentA       *float64    `json:"current_a,omitempty"`
	EnergyConsumed *float64    `json:"energy_consumed,omitempty"`
}

// Snapshot fetches the full fleet state, one record per node.
func (c *Client) Snapshot(ctx context.Context) ([]node.State, error) {
	var records []node.State
	if err := c.do(ctx, http.MethodGet, "/api/lamp/state", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SendCommand writes a desired-state change for one node through the
// fleet service. The service persists the change and relays it to the
// node; a nil return means the write was accepted as authoritative.
func (c *Client) SendCommand(ctx context.Context, gatewayID, nodeID string, update node.Update) error {
	payload := commandPayload{
		GatewayID:      gatewayID,
		NodeID:         nodeID,
		Power:          update.Power,
		DimLevel:       update.DimLevel,
		Lat:            update.Lat,
		Lng:            update.Lng,
		Lux:            update.Lux,
		CurrentA:       update.CurrentA,
		EnergyConsumed: update.EnergyConsumed,
	}
	// An update may reassign the node's gateway; the commanded value
	// outranks the routing default.
	if update.GatewayID != nil && *update.GatewayID != "" {
		payload.GatewayID = *update.GatewayID
	}
	return c.do(ctx, http.MethodPost, "/api/lamp/control", payload, nil)
}

// ListSchedules fetches every stored schedule entry.
func (c *Client) ListSchedules(ctx context.Context) ([]schedule.Entry, error) {
	var entries []schedule.Entry
	if err := c.do(ctx, http.MethodGet, "/api/schedule", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateSchedule stores a new schedule entry and returns it with the
// service-assigned ID.
func (c *Client) CreateSchedule(ctx context.Context, entry schedule.Entry) (schedule.Entry, error) {
	var created schedule.Entry
	if err := c.do(ctx, http.MethodPost, "/api/schedule", entry, &created); err != nil {
		return schedule.Entry{}, err
	}
	return created, nil
}

// DeleteSchedule removes a schedule entry by ID.
//
// Deletion is idempotent: a 404 from the service means the entry is
// already gone, which is the desired outcome, so it is not an error.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/api/schedule/"+url.PathEscape(id), nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// statusError carries the HTTP status alongside the sentinel category so
// idempotent callers can distinguish 404 from other unknown failures.
type statusError struct {
	sentinel error
	status   int
	body     string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("%v: status %d: %s", e.sentinel, e.status, e.body)
	}
	return fmt.Sprintf("%v: status %d", e.sentinel, e.status)
}

func (e *statusError) Unwrap() error { return e.sentinel }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// do executes one request against the fleet service: limiter admission,
// bearer auth, JSON round trip, status classification.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: limiter: %v", ErrRateLimited, err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fleetapi: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("fleetapi: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("fleet request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("fleetapi: decode response: %w", err)
			}
		} else {
			io.Copy(io.Discard, resp.Body)
		}
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{
		sentinel: classifyStatus(resp.StatusCode),
		status:   resp.StatusCode,
		body:     strings.TrimSpace(string(snippet)),
	}
}

// classifyStatus maps an HTTP status to a dispatch error category.
func classifyStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnreachable
	default:
		return ErrUnknown
	}
}
