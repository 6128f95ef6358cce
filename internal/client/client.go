// Package client is an HTTP client for the polygon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// Client talks to a polygon service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the service at baseURL. The timeout must exceed
// the server's operation delay.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// List returns all stored polygons.
func (c *Client) List(ctx context.Context) ([]models.Polygon, error) {
	var polygons []models.Polygon
	if err := c.do(ctx, http.MethodGet, "/api/polygons", nil, &polygons); err != nil {
		return nil, err
	}
	if polygons == nil {
		polygons = []models.Polygon{}
	}
	return polygons, nil
}

// Create submits a new polygon and returns the stored record.
func (c *Client) Create(ctx context.Context, name string, points []geometry.Point) (*models.Polygon, error) {
	req := models.CreatePolygonRequest{Name: name, Points: geometry.Raw(points)}
	var polygon models.Polygon
	if err := c.do(ctx, http.MethodPost, "/api/polygons", req, &polygon); err != nil {
		return nil, err
	}
	return &polygon, nil
}

// Delete removes the polygon with the given id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/polygons/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns an error body into an *errs.Error. Bodies that do not
// carry a kind are reported by status.
func decodeError(status int, data []byte) error {
	var body models.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return errs.New(errs.Kind(body.Error), body.Message)
	}

	kind := errs.Internal
	if status == http.StatusNotFound {
		kind = errs.NotFound
	}
	return errs.Newf(kind, "unexpected status %d", status)
}
