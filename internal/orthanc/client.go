package orthanc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	appConfig "dicomboot/config"
	"dicomboot/internal/models"
	"dicomboot/pkg/retry"
)

// QueryError reports a failed read against the storage service's REST API.
type QueryError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage query %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("storage query %s failed with status code: %d", e.Endpoint, e.StatusCode)
}

func (e *QueryError) Unwrap() error { return e.Err }

// UploadError reports a failed instance upload, either a rejected request or
// exhausted retries on a transport failure.
type UploadError struct {
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("instance upload failed: %v", e.Err)
	}
	return fmt.Sprintf("instance upload failed with status code: %d", e.StatusCode)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Client talks to the Orthanc REST API. Basic auth is applied only when a
// username is configured.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	attempts   int
	backoff    retry.Backoff
}

func New(cfg *appConfig.Config) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.OrthancURL, "/"),
		username:   cfg.OrthancUsername,
		password:   cfg.OrthancPassword,
		httpClient: &http.Client{Timeout: time.Duration(cfg.QueryTimeout) * time.Second},
		attempts:   3,
		backoff:    retry.Backoff{Initial: 2 * time.Second, Max: 10 * time.Second, Factor: 2},
	}
}

// IsAlive reports whether the server answers its system endpoint. Connection
// and HTTP errors both read as "not alive".
func (c *Client) IsAlive() bool {
	_, err := c.GetSystemInfo()
	return err == nil
}

// GetSystemInfo returns the server's /system document (version, AET, ...).
func (c *Client) GetSystemInfo() (map[string]any, error) {
	var info map[string]any
	if err := c.getJSON("/system", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetStatistics returns patient/study/series/instance counts and disk usage.
func (c *Client) GetStatistics() (map[string]any, error) {
	var stats map[string]any
	if err := c.getJSON("/statistics", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) ListPatients() ([]string, error)  { return c.listIDs("/patients") }
func (c *Client) ListStudies() ([]string, error)   { return c.listIDs("/studies") }
func (c *Client) ListSeries() ([]string, error)    { return c.listIDs("/series") }
func (c *Client) ListInstances() ([]string, error) { return c.listIDs("/instances") }

// GetInstanceTags returns the simplified DICOM tags of a stored instance.
func (c *Client) GetInstanceTags(instanceID string) (map[string]any, error) {
	var tags map[string]any
	if err := c.getJSON("/instances/"+instanceID+"/simplified-tags", &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// Upload submits one DICOM instance's raw bytes. Transport failures are
// retried with exponential backoff; a rejected request (non-2xx) is not.
// Either way the terminal failure surfaces as *UploadError.
func (c *Client) Upload(data []byte) (*models.StoredInstance, error) {
	var result models.StoredInstance

	post := func() error {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/instances", bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/dicom")
		req.Header.Set("Accept", "application/json")
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &UploadError{StatusCode: resp.StatusCode}
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	}

	if err := retry.Do(c.attempts, c.backoff, retryableUpload, post); err != nil {
		var upErr *UploadError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &UploadError{Err: err}
	}
	return &result, nil
}

// UploadFromPath reads a file from disk and uploads its content.
func (c *Client) UploadFromPath(path string) (*models.StoredInstance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UploadError{Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}

	result, err := c.Upload(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Uploaded instance", "path", path, "id", result.ID, "status", result.Status)
	return result, nil
}

func (c *Client) listIDs(endpoint string) ([]string, error) {
	var ids []string
	if err := c.getJSON(endpoint, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) getJSON(endpoint string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &QueryError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

func retryableUpload(err error) bool {
	var upErr *UploadError
	if errors.As(err, &upErr) {
		return false
	}
	return retry.Transient(err)
}
