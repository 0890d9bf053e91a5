package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/genesis/service/db"
	"github.com/brojonat/genesis/service/session"
)

// Client is the HTTP client for the genesis wallet session service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new session service client. Transfers block until
// they settle, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Hash is set when a transfer settled but the session was reset.
	Hash string
	// Session is the session state after the failed operation, when known.
	Session *session.Snapshot
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// SendResult is the outcome of a confirmed transfer.
type SendResult struct {
	Hash    string           `json:"hash"`
	Session session.Snapshot `json:"session"`
}

// JournalQuery selects journaled transactions by address or session.
type JournalQuery struct {
	Address   string
	Network   string
	SessionID string
	Limit     int
	Offset    int
}

// CreateSession creates a new disconnected session.
func (c *Client) CreateSession(ctx context.Context) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", nil, http.StatusCreated, &snap); err != nil {
		return nil, err
	}
	c.logger.Debug("session created", "session_id", snap.SessionID)
	return &snap, nil
}

// ListSessions returns the ids of all sessions.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	var resp struct {
		Sessions []string `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// GetSession returns a session snapshot.
func (c *Client) GetSession(ctx context.Context, id string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSession disconnects and removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, sessionPath(id), nil, http.StatusNoContent, nil); err != nil {
		return err
	}
	c.logger.Debug("session deleted", "session_id", id)
	return nil
}

// Connect performs the wallet handshake for a session.
func (c *Client) Connect(ctx context.Context, id string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/connect", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Disconnect resets a session.
func (c *Client) Disconnect(ctx context.Context, id string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/disconnect", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SendTransaction transfers amount to the recipient and waits for settlement.
func (c *Client) SendTransaction(ctx context.Context, id, to string, amount float64) (*SendResult, error) {
	body := map[string]interface{}{
		"to":     to,
		"amount": amount,
	}

	var result SendResult
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/transactions", body, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction confirmed", "session_id", id, "hash", result.Hash)
	return &result, nil
}

// RefreshBalance refetches a session's balance.
func (c *Client) RefreshBalance(ctx context.Context, id string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/balance/refresh", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Journal lists journaled transactions, newest first.
func (c *Client) Journal(ctx context.Context, q JournalQuery) ([]*db.Transaction, error) {
	params := url.Values{}
	if q.Address != "" {
		params.Set("address", q.Address)
	}
	if q.Network != "" {
		params.Set("network", q.Network)
	}
	if q.SessionID != "" {
		params.Set("session_id", q.SessionID)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var resp struct {
		Transactions []*db.Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/journal?"+params.Encode(), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// StreamEvent is one Server-Sent Event from a session stream.
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// Stream follows a session's event stream until ctx is done, the session
// is closed, or handler returns an error.
func (c *Client) Stream(ctx context.Context, id string, handler func(StreamEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionPath(id)+"/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the request timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var ev StreamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name == "" && ev.Data == nil {
				continue
			}
			if err := handler(ev); err != nil {
				return err
			}
			if ev.Name == "closed" {
				return nil
			}
			ev = StreamEvent{}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error   string            `json:"error"`
		Hash    string            `json:"hash"`
		Session *session.Snapshot `json:"session"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error,
		Hash:       errResp.Hash,
		Session:    errResp.Session,
	}
}

func sessionPath(id string) string {
	return "/api/v1/sessions/" + url.PathEscape(id)
}
