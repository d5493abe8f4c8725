// Package remote talks to the UMKM REST API that owns accounts and records
// in the hosted deployment.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"umkm/internal/core"
)

// APIError is a non-2xx answer the API explained with a message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: http %d", e.Status)
	}
	return fmt.Sprintf("remote: http %d: %s", e.Status, e.Message)
}

// Client implements every store port and the authenticator against the API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a client for baseURL, the API root without the /api
// suffix.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("remote: empty base url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/categories", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeError maps an error response to a core sentinel where the API's
// status or message identifies one.
func decodeError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)

	msg := strings.ToLower(payload.Message)
	switch {
	case strings.Contains(msg, "pending approval"):
		return core.ErrPendingApproval
	case msg == "invalid credentials":
		return core.ErrInvalidCredentials
	case resp.StatusCode == http.StatusUnauthorized:
		return core.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case strings.Contains(msg, "email") && strings.Contains(msg, "taken"):
		return core.ErrEmailTaken
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Message}
}

// unwrap decodes raw into out, looking inside {key: ...} first. The API
// answers mutations with either an envelope or the bare record.
func unwrap(raw json.RawMessage, key string, out any) error {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err == nil {
		if inner, ok := env[key]; ok && string(inner) != "null" {
			raw = inner
		}
	}
	return json.Unmarshal(raw, out)
}

func escape(id core.ID) string {
	return strings.ReplaceAll(string(id), "/", "%2F")
}
