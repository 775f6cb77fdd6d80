package tcia

import (
	"archive/zip"
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appConfig "dicomboot/config"
	"dicomboot/pkg/retry"
)

func newTestClient(baseURL string) *Client {
	client := New(&appConfig.Config{
		ArchiveURL:      baseURL,
		QueryTimeout:    5,
		DownloadTimeout: 5,
	})
	client.backoff = retry.Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond, Factor: 2}
	return client
}

func zipPayload(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range members {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestListSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getSeries", r.URL.Path)
		assert.Equal(t, "LIDC-IDRI", r.URL.Query().Get("Collection"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"SeriesInstanceUID": "1.2.3", "Modality": "CT", "ImageCount": 133, "SeriesDescription": "chest"},
			{"SeriesInstanceUID": "4.5.6", "Modality": "MR", "ImageCount": "20", "SeriesDescription": ""}
		]`))
	}))
	defer server.Close()

	series, err := newTestClient(server.URL).ListSeries("LIDC-IDRI")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "1.2.3", series[0].SeriesInstanceUID)
	assert.Equal(t, "CT", series[0].Modality)
	assert.Equal(t, "133", series[0].ImageCount.String())
	assert.Equal(t, "20", series[1].ImageCount.String())
}

func TestListSeriesEmptyCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	series, err := newTestClient(server.URL).ListSeries("EMPTY")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestListSeriesQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListSeries("LIDC-IDRI")
	var queryErr *QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, http.StatusInternalServerError, queryErr.StatusCode)
	assert.Equal(t, "/getSeries", queryErr.Endpoint)
}

func TestListCollections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getCollectionValues", r.URL.Path)
		w.Write([]byte(`[{"Collection": "LIDC-IDRI"}, {"Collection": "NSCLC-Radiomics"}]`))
	}))
	defer server.Close()

	collections, err := newTestClient(server.URL).ListCollections()
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "LIDC-IDRI", collections[0].Collection)
}

func TestListSeriesForPatient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getSeries", r.URL.Path)
		assert.Equal(t, "P-0001", r.URL.Query().Get("PatientID"))
		w.Write([]byte(`[{"SeriesInstanceUID": "1.2.3", "PatientID": "P-0001"}]`))
	}))
	defer server.Close()

	series, err := newTestClient(server.URL).ListSeriesForPatient("LIDC-IDRI", "P-0001")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "P-0001", series[0].PatientID)
}

func TestDownloadSeriesExtractsArchive(t *testing.T) {
	payload := zipPayload(t, map[string]string{
		"1-001.dcm": "first",
		"1-002.dcm": "second",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getImage", r.URL.Path)
		assert.Equal(t, "1.2.3", r.URL.Query().Get("SeriesInstanceUID"))
		w.Write(payload)
	}))
	defer server.Close()

	outputDir := t.TempDir()
	files, err := newTestClient(server.URL).DownloadSeries("1.2.3", outputDir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, path := range files {
		assert.Equal(t, filepath.Join(outputDir, "1.2.3"), filepath.Dir(path))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestDownloadSeriesFallsBackToRawPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw dicom bytes, not a zip"))
	}))
	defer server.Close()

	outputDir := t.TempDir()
	files, err := newTestClient(server.URL).DownloadSeries("1.2.3", outputDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(outputDir, "1.2.3", "1.2.3.dcm"), files[0])

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "raw dicom bytes, not a zip", string(data))
}

func TestDownloadSeriesHTTPErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).DownloadSeries("1.2.3", t.TempDir())
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)
	assert.Equal(t, int32(1), requests.Load(), "HTTP status errors must not be retried")
}

func TestDownloadSeriesRetriesConnectionFailures(t *testing.T) {
	payload := zipPayload(t, map[string]string{"1-001.dcm": "first"})

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			hijacker, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hijacker.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	files, err := newTestClient(server.URL).DownloadSeries("1.2.3", t.TempDir())
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, int32(3), requests.Load())
}

func TestDownloadSeriesExhaustedRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		hijacker := w.(http.Hijacker)
		conn, _, err := hijacker.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).DownloadSeries("1.2.3", t.TempDir())
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "1.2.3", dlErr.SeriesUID)
	assert.Equal(t, int32(3), requests.Load())
}

func TestRetryableDownload(t *testing.T) {
	assert.False(t, retryableDownload(&DownloadError{StatusCode: 500}))
	assert.False(t, retryableDownload(errors.New("plain")))
}
