package tcia

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appConfig "dicomboot/config"
	"dicomboot/internal/models"
	"dicomboot/pkg/retry"
	"dicomboot/pkg/utils"
)

// QueryError reports a failed metadata query against the archive API.
type QueryError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive query %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("archive query %s failed with status code: %d", e.Endpoint, e.StatusCode)
}

func (e *QueryError) Unwrap() error { return e.Err }

// DownloadError reports a non-retryable failure fetching a series payload.
type DownloadError struct {
	SeriesUID  string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download of series %s failed: %v", e.SeriesUID, e.Err)
	}
	return fmt.Sprintf("download of series %s failed with status code: %d", e.SeriesUID, e.StatusCode)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Client queries the imaging archive's NBIA REST API for collection metadata
// and downloads series payloads. Metadata queries and payload downloads use
// separate HTTP clients because downloads need a much longer timeout.
type Client struct {
	baseURL        string
	queryClient    *http.Client
	downloadClient *http.Client
	attempts       int
	backoff        retry.Backoff
}

func New(cfg *appConfig.Config) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(cfg.ArchiveURL, "/"),
		queryClient:    &http.Client{Timeout: time.Duration(cfg.QueryTimeout) * time.Second},
		downloadClient: &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second},
		attempts:       3,
		backoff:        retry.Backoff{Initial: 4 * time.Second, Max: 30 * time.Second, Factor: 2},
	}
}

// ListCollections returns all collections available on the archive.
func (c *Client) ListCollections() ([]models.CollectionDescriptor, error) {
	var collections []models.CollectionDescriptor
	if err := c.getJSON("/getCollectionValues", nil, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// ListPatients returns the patients within a collection.
func (c *Client) ListPatients(collection string) ([]models.PatientDescriptor, error) {
	params := url.Values{"Collection": []string{collection}}
	var patients []models.PatientDescriptor
	if err := c.getJSON("/getPatient", params, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// ListSeries returns series metadata for a collection. An empty slice means
// the collection exists but has no series; the caller decides whether that
// is an error.
func (c *Client) ListSeries(collection string) ([]models.SeriesDescriptor, error) {
	params := url.Values{"Collection": []string{collection}}
	var series []models.SeriesDescriptor
	if err := c.getJSON("/getSeries", params, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// ListSeriesForPatient returns series metadata for one patient in a collection.
func (c *Client) ListSeriesForPatient(collection, patientID string) ([]models.SeriesDescriptor, error) {
	params := url.Values{
		"Collection": []string{collection},
		"PatientID":  []string{patientID},
	}
	var series []models.SeriesDescriptor
	if err := c.getJSON("/getSeries", params, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// DownloadSeries fetches one series payload and unpacks it into
// outputDir/<seriesUID>/, returning the extracted file paths. The archive
// normally responds with a zip of DICOM files; when the payload is not a
// zip the whole body is saved as a single file instead. Connection and
// timeout failures are retried with exponential backoff; HTTP error
// statuses are not.
func (c *Client) DownloadSeries(seriesUID, outputDir string) ([]string, error) {
	slog.Info("Downloading series", "series_uid", seriesUID)

	params := url.Values{"SeriesInstanceUID": []string{seriesUID}}
	requestURL := c.baseURL + "/getImage?" + params.Encode()

	var payload []byte
	fetch := func() error {
		resp, err := c.downloadClient.Get(requestURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &DownloadError{SeriesUID: seriesUID, StatusCode: resp.StatusCode}
		}

		payload, err = io.ReadAll(resp.Body)
		return err
	}

	if err := retry.Do(c.attempts, c.backoff, retryableDownload, fetch); err != nil {
		var dlErr *DownloadError
		if errors.As(err, &dlErr) {
			return nil, err
		}
		return nil, &DownloadError{SeriesUID: seriesUID, Err: err}
	}

	seriesDir := filepath.Join(outputDir, seriesUID)
	files, err := utils.ExtractArchive(payload, seriesDir)
	if errors.Is(err, utils.ErrNotArchive) {
		slog.Warn("Response was not a zip archive, saving as a single file", "series_uid", seriesUID)
		files, err = c.saveRawPayload(payload, seriesDir, seriesUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unpack series %s: %w", seriesUID, err)
	}

	slog.Info("Extracted series files", "series_uid", seriesUID, "files", len(files), "dir", seriesDir)
	return files, nil
}

func (c *Client) saveRawPayload(payload []byte, seriesDir, seriesUID string) ([]string, error) {
	if err := os.MkdirAll(seriesDir, 0o755); err != nil {
		return nil, err
	}
	single := filepath.Join(seriesDir, seriesUID+".dcm")
	if err := os.WriteFile(single, payload, 0o644); err != nil {
		return nil, err
	}
	return []string{single}, nil
}

func (c *Client) getJSON(endpoint string, params url.Values, out any) error {
	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.queryClient.Do(req)
	if err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &QueryError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return &QueryError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// HTTP error statuses are deterministic; only transport failures get retried.
func retryableDownload(err error) bool {
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return false
	}
	return retry.Transient(err)
}
