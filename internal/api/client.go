package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running daemon's HTTP API.
type Client struct {
	base   *url.URL
	token  string
	client *http.Client
}

// NewClient builds a client for the API listening on bind (host:port or URL).
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	return &Client{base: base, token: token, client: &http.Client{Timeout: 5 * time.Second}}, nil
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// Runs fetches the most recent runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out RunListResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs", query, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Orphans fetches orphaned orders.
func (c *Client) Orphans(ctx context.Context, includeResolved bool) ([]Orphan, error) {
	query := url.Values{}
	if includeResolved {
		query.Set("all", "1")
	}
	var out OrphanListResponse
	if err := c.do(ctx, http.MethodGet, "/api/orphans", query, &out); err != nil {
		return nil, err
	}
	return out.Orphans, nil
}

// TriggerRun asks the daemon to start the next run now.
func (c *Client) TriggerRun(ctx context.Context) (TriggerResponse, error) {
	var out TriggerResponse
	err := c.do(ctx, http.MethodPost, "/api/run", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.base.JoinPath(path)
	target.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Some endpoints answer refusals with their normal payload.
		if out != nil {
			_ = json.Unmarshal(body, out)
		}
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api %s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
