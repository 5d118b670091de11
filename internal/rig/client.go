// Package rig is the REST client for the vision service behind the calibration rig.
package rig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aca-console/internal/logger"
	"aca-console/internal/models"
)

var (
	ErrUnhealthy = errors.New("rig unhealthy")
	ErrStatus    = errors.New("unexpected status")
)

const maxBodyBytes = 4 << 20

type Client struct {
	origin *url.URL
	http   *http.Client
	logger logger.Logger
}

func NewClient(origin string, httpClient *http.Client, log logger.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{origin: u, http: httpClient, logger: log}, nil
}

func (c *Client) Origin() string {
	return c.origin.String()
}

func (c *Client) HealthSystem(ctx context.Context) (models.HealthStatus, error) {
	var out models.HealthStatus
	err := c.do(ctx, http.MethodGet, "/health/system", nil, &out)
	return out, err
}

func (c *Client) HealthCamera(ctx context.Context) (models.HealthStatus, error) {
	var out models.HealthStatus
	err := c.do(ctx, http.MethodGet, "/health/camera", nil, &out)
	return out, err
}

// CheckHealth requires both the system and the camera endpoint to answer.
func (c *Client) CheckHealth(ctx context.Context) error {
	if _, err := c.HealthSystem(ctx); err != nil {
		return fmt.Errorf("%w: system: %v", ErrUnhealthy, err)
	}
	if _, err := c.HealthCamera(ctx); err != nil {
		return fmt.Errorf("%w: camera: %v", ErrUnhealthy, err)
	}
	return nil
}

func (c *Client) SetParameters(ctx context.Context, p models.CameraParams) error {
	return c.do(ctx, http.MethodPost, "/camera/parameters", p, nil)
}

func (c *Client) Capture(ctx context.Context) (models.CaptureResponse, error) {
	var out models.CaptureResponse
	err := c.do(ctx, http.MethodGet, "/camera/capture", nil, &out)
	return out, err
}

func (c *Client) DatasetImages(ctx context.Context, q models.DatasetQuery) ([]models.DatasetImage, error) {
	values := url.Values{}
	if q.Item != "" {
		values.Set("item", q.Item)
	}
	if q.Split != "" {
		values.Set("split", q.Split)
	}
	if q.DefectType != "" {
		values.Set("defect_type", q.DefectType)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/dataset/images"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var out []models.DatasetImage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DatasetFilters(ctx context.Context) (models.DatasetFilters, error) {
	var out models.DatasetFilters
	err := c.do(ctx, http.MethodGet, "/dataset/filters", nil, &out)
	return out, err
}

func (c *Client) SaveDataset(ctx context.Context, req models.SaveDatasetRequest) (models.SaveDatasetResponse, error) {
	var out models.SaveDatasetResponse
	err := c.do(ctx, http.MethodPost, "/dataset/save", req, &out)
	return out, err
}

// ResolveURL joins a service-relative path such as /dataset/image/3 onto the origin.
// Absolute URLs pass through.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.origin.ResolveReference(u).String()
}

// CacheBust appends t=<unix ms> so repeated captures at the same path are refetched.
func CacheBust(ref string, t time.Time) string {
	if ref == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(ref, "?") {
		sep = "&"
	}
	return ref + sep + "t=" + strconv.FormatInt(t.UnixMilli(), 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.origin.String()+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("RigClient", "request completed", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %s %s returned %d", ErrStatus, method, path, resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
