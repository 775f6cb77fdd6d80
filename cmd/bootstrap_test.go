package cmd

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"dicomboot/config"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), runErr
}

func fakeArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()

	var payload bytes.Buffer
	writer := zip.NewWriter(&payload)
	for _, name := range []string{"1-001.dcm", "1-002.dcm"} {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("Failed to build zip payload: %v", err)
		}
		entry.Write([]byte("dicom"))
	}
	writer.Close()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getSeries":
			w.Write([]byte(`[{"SeriesInstanceUID": "1.2.3", "Modality": "CT", "ImageCount": 2}]`))
		case "/getImage":
			w.Write(payload.Bytes())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func fakeStorageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/system":
			w.Write([]byte(`{"Version": "1.12.0", "DicomAet": "ORTHANC"}`))
		case r.URL.Path == "/statistics":
			w.Write([]byte(`{"CountPatients": 1, "CountStudies": 1, "CountSeries": 1, "CountInstances": 2, "TotalDiskSize": "4096"}`))
		case r.URL.Path == "/instances" && r.Method == http.MethodPost:
			w.Write([]byte(`{"ID": "abc123", "Status": "Success"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestBootstrapCommand(t *testing.T) {
	archiveServer := fakeArchiveServer(t)
	defer archiveServer.Close()
	storageServer := fakeStorageServer(t)
	defer storageServer.Close()

	cfg = &config.Config{
		ArchiveURL:      archiveServer.URL,
		OrthancURL:      storageServer.URL,
		MaxSeries:       5,
		DownloadDir:     t.TempDir(),
		PollRetries:     2,
		QueryTimeout:    5,
		DownloadTimeout: 5,
	}

	rootCmd.SetArgs([]string{"bootstrap", "--collection", "LIDC-IDRI"})
	output, err := captureStdout(t, rootCmd.Execute)
	if err != nil {
		t.Fatalf("Bootstrap command failed: %v", err)
	}

	for _, want := range []string{
		`"collection": "LIDC-IDRI"`,
		`"series_downloaded": 1`,
		`"files_downloaded": 2`,
		`"uploaded": 2`,
		`"failed": 0`,
		`"count_instances": 2`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Output doesn't contain %s:\n%s", want, output)
		}
	}
}

func TestBootstrapCommandRequiresCollection(t *testing.T) {
	cfg = &config.Config{DownloadDir: t.TempDir(), PollRetries: 1}

	rootCmd.SetArgs([]string{"bootstrap", "--collection", ""})
	output, err := captureStdout(t, rootCmd.Execute)
	if err == nil {
		t.Fatal("Bootstrap command expected error without a collection, got nil")
	}
	if !strings.Contains(output, "collection is required") {
		t.Errorf("Output doesn't explain the missing collection:\n%s", output)
	}
}
