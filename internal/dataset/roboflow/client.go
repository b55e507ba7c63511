// Package roboflow is a minimal client for the Roboflow dataset API: version
// resolution, export-link requests, and archive download.
package roboflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client provides access to the Roboflow API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	// downloadClient has no timeout: dataset archives can be arbitrarily
	// large and a fixed deadline would abort legitimate transfers.
	downloadClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the metadata HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDownloadClient overrides the archive download HTTP client.
func WithDownloadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.downloadClient = client
		}
	}
}

// WithTimeout sets the metadata request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a Roboflow client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("roboflow api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("roboflow base url required")
	}
	client := &Client{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		downloadClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// VersionInfo describes a dataset version.
type VersionInfo struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Created float64        `json:"created"`
	Images  int            `json:"images"`
	Splits  map[string]int `json:"splits"`
	Export  ExportInfo     `json:"export"`
}

// ExportInfo carries the download link for a generated export.
type ExportInfo struct {
	Link string `json:"link"`
}

type versionResponse struct {
	Version VersionInfo `json:"version"`
}

type exportResponse struct {
	Export ExportInfo `json:"export"`
}

// Version resolves workspace -> project -> version metadata.
func (c *Client) Version(ctx context.Context, workspace, project, version string) (*VersionInfo, error) {
	if err := validateCoordinates(workspace, project, version); err != nil {
		return nil, err
	}
	endpoint, err := c.endpoint(workspace, project, version)
	if err != nil {
		return nil, err
	}

	var payload versionResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("resolve version: %w", err)
	}
	return &payload.Version, nil
}

// ExportLink requests an export of the version in the given format and
// returns the archive link.
func (c *Client) ExportLink(ctx context.Context, workspace, project, version, format string) (string, error) {
	if err := validateCoordinates(workspace, project, version); err != nil {
		return "", err
	}
	format = strings.TrimSpace(format)
	if format == "" {
		return "", errors.New("export format required")
	}
	endpoint, err := c.endpoint(workspace, project, version, format)
	if err != nil {
		return "", err
	}

	var payload exportResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", fmt.Errorf("request export: %w", err)
	}
	if strings.TrimSpace(payload.Export.Link) == "" {
		return "", errors.New("export response carried no download link")
	}
	return payload.Export.Link, nil
}

// Download performs the full primary flow: resolve the version, request an
// export in the stated format, and extract the archive into destDir.
func (c *Client) Download(ctx context.Context, workspace, project, version, format, destDir string) error {
	if _, err := c.Version(ctx, workspace, project, version); err != nil {
		return err
	}
	link, err := c.ExportLink(ctx, workspace, project, version, format)
	if err != nil {
		return err
	}
	return c.DownloadArchive(ctx, link, destDir)
}

// DownloadArchive fetches the zip archive at link and extracts it into
// destDir. The archive is staged in a temp file that is always removed.
func (c *Client) DownloadArchive(ctx context.Context, link, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive download returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "detlab-dataset-*.zip")
	if err != nil {
		return fmt.Errorf("create archive temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	if err := ExtractZip(tmpPath, destDir); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}
	return nil
}

func (c *Client) endpoint(parts ...string) (*url.URL, error) {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	endpoint, err := url.Parse(c.baseURL + "/" + strings.Join(escaped, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse roboflow url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()
	return endpoint, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("roboflow returned %d (latency=%v)", resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode roboflow response: %w", err)
	}
	return nil
}

func validateCoordinates(workspace, project, version string) error {
	if strings.TrimSpace(workspace) == "" {
		return errors.New("workspace must not be empty")
	}
	if strings.TrimSpace(project) == "" {
		return errors.New("project must not be empty")
	}
	if strings.TrimSpace(version) == "" {
		return errors.New("version must not be empty")
	}
	return nil
}
