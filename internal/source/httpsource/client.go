// Package httpsource reads device tracks from the fleet tracking HTTP API.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fleetpulse/trackmap/internal/loader"
	"github.com/fleetpulse/trackmap/pkg/core"
)

// Config holds API connection settings.
type Config struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// Client handles communication with the tracking API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ loader.ChunkFetcher = (*Client)(nil)
	_ loader.PointCounter = (*Client)(nil)
)

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the tracking API is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) pointsURL(deviceID string, suffix string) string {
	return c.baseURL + "/api/v1/devices/" + url.PathEscape(deviceID) + "/points" + suffix
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchChunk requests up to limit points of deviceID starting at offset.
func (c *Client) FetchChunk(ctx context.Context, deviceID string, offset, limit int) ([]core.Point, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var points []core.Point
	if err := c.getJSON(ctx, c.pointsURL(deviceID, "?"+q.Encode()), &points); err != nil {
		return nil, err
	}
	return points, nil
}

type countResponse struct {
	Count int `json:"count"`
}

// CountPoints requests the number of stored points of deviceID.
func (c *Client) CountPoints(ctx context.Context, deviceID string) (int, error) {
	var resp countResponse
	if err := c.getJSON(ctx, c.pointsURL(deviceID, "/count"), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
