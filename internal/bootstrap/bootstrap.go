package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	appConfig "dicomboot/config"
	"dicomboot/internal/models"
	"dicomboot/pkg/utils"
)

// Fatal pipeline conditions. Per-series and per-file failures are logged and
// counted instead; only these abort a run.
var (
	ErrNotReady  = errors.New("storage service never became reachable")
	ErrDiscovery = errors.New("series discovery failed")
	ErrNoSeries  = errors.New("no series found in collection")
	ErrNoFiles   = errors.New("no files were downloaded")
)

// ArchiveClient is the subset of the imaging-archive API the pipeline needs.
type ArchiveClient interface {
	ListSeries(collection string) ([]models.SeriesDescriptor, error)
	DownloadSeries(seriesUID, outputDir string) ([]string, error)
}

// StorageClient is the subset of the storage-service API the pipeline needs.
type StorageClient interface {
	IsAlive() bool
	GetSystemInfo() (map[string]any, error)
	GetStatistics() (map[string]any, error)
	UploadFromPath(path string) (*models.StoredInstance, error)
}

// Runner drives the three-stage bootstrap pipeline: wait for the storage
// service, download series from the archive into the staging directory,
// upload every staged file. Stages run strictly in order with no backward
// transitions.
type Runner struct {
	cfg     *appConfig.Config
	archive ArchiveClient
	storage StorageClient
	sleep   func(time.Duration)
}

func NewRunner(cfg *appConfig.Config, archive ArchiveClient, storage StorageClient) *Runner {
	return &Runner{
		cfg:     cfg,
		archive: archive,
		storage: storage,
		sleep:   time.Sleep,
	}
}

// Run executes the pipeline and returns per-stage counts together with the
// storage service's post-run statistics. Fatal conditions come back wrapped
// around one of the sentinel errors above; the caller owns exit behavior.
func (r *Runner) Run() (*models.BootstrapResult, error) {
	start := time.Now()
	result := &models.BootstrapResult{
		Collection:    r.cfg.Collection,
		OperationTime: utils.FormatTime(start),
	}

	if err := os.MkdirAll(r.cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", r.cfg.DownloadDir, err)
	}

	slog.Info("Step 1/3: waiting for storage service", "url", r.cfg.OrthancURL)
	if err := r.waitForStorage(); err != nil {
		return nil, err
	}

	slog.Info("Step 2/3: querying archive collection", "collection", r.cfg.Collection)
	files, err := r.downloadSeries(result)
	if err != nil {
		return nil, err
	}

	slog.Info("Step 3/3: uploading files to storage service", "files", len(files))
	result.Uploads = r.uploadFiles(files)

	r.collectStatistics(result)
	result.RunDuration = time.Since(start).String()
	return result, nil
}

// waitForStorage polls the liveness probe up to PollRetries times with a
// fixed delay between polls.
func (r *Runner) waitForStorage() error {
	delay := time.Duration(r.cfg.PollDelay) * time.Second

	for attempt := 1; attempt <= r.cfg.PollRetries; attempt++ {
		if r.storage.IsAlive() {
			if info, err := r.storage.GetSystemInfo(); err == nil {
				slog.Info("Storage service is ready", "version", info["Version"], "aet", info["DicomAet"])
			}
			return nil
		}
		slog.Warn("Storage service not reachable, retrying",
			"attempt", attempt, "max_attempts", r.cfg.PollRetries, "retry_in", delay)
		if attempt < r.cfg.PollRetries {
			r.sleep(delay)
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrNotReady, r.cfg.PollRetries)
}

// downloadSeries discovers the collection's series and downloads the first
// MaxSeries of them in archive-returned order. A single failing series is
// skipped; only an empty result set or a discovery error is fatal.
func (r *Runner) downloadSeries(result *models.BootstrapResult) ([]string, error) {
	seriesList, err := r.archive.ListSeries(r.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w for collection %q: %w", ErrDiscovery, r.cfg.Collection, err)
	}
	if len(seriesList) == 0 {
		return nil, fmt.Errorf("%w %q, check the collection name", ErrNoSeries, r.cfg.Collection)
	}
	result.SeriesFound = len(seriesList)

	selected := seriesList
	if len(selected) > r.cfg.MaxSeries {
		selected = selected[:r.cfg.MaxSeries]
	}
	result.SeriesSelected = len(selected)
	slog.Info("Discovered series", "found", len(seriesList), "selected", len(selected))

	var files []string
	for idx, series := range selected {
		if series.SeriesInstanceUID == "" {
			slog.Warn("Series entry has no SeriesInstanceUID, skipping", "index", idx+1)
			continue
		}

		slog.Info("Processing series",
			"index", fmt.Sprintf("%d/%d", idx+1, len(selected)),
			"series_uid", series.SeriesInstanceUID,
			"modality", series.Modality,
			"images", series.ImageCount,
			"description", series.SeriesDescription)

		paths, err := r.archive.DownloadSeries(series.SeriesInstanceUID, r.cfg.DownloadDir)
		if err != nil {
			slog.Error("Failed to download series", "series_uid", series.SeriesInstanceUID, "error", err)
			continue
		}
		result.SeriesDownloaded++
		files = append(files, paths...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w, aborting upload", ErrNoFiles)
	}
	result.FilesDownloaded = len(files)
	slog.Info("Download stage complete", "files", len(files))
	return files, nil
}

// uploadFiles pushes every staged file sequentially. Failures are counted,
// never raised; the three counters always sum to len(files).
func (r *Runner) uploadFiles(files []string) models.UploadStats {
	var stats models.UploadStats

	for _, path := range files {
		stored, err := r.storage.UploadFromPath(path)
		if err != nil {
			slog.Error("Failed to upload file", "path", path, "error", err)
			stats.Failed++
			continue
		}
		if stored.Status == "AlreadyStored" {
			stats.AlreadyStored++
		} else {
			stats.Uploaded++
		}
	}

	return stats
}

func (r *Runner) collectStatistics(result *models.BootstrapResult) {
	stats, err := r.storage.GetStatistics()
	if err != nil {
		slog.Warn("Failed to query storage statistics", "error", err)
		return
	}

	result.CountPatients = statInt(stats, "CountPatients")
	result.CountStudies = statInt(stats, "CountStudies")
	result.CountSeries = statInt(stats, "CountSeries")
	result.CountInstances = statInt(stats, "CountInstances")
	result.TotalDiskBytes = statInt(stats, "TotalDiskSize")
	result.TotalDiskHuman = utils.FormatBytes(result.TotalDiskBytes)
}

// Orthanc reports counters as JSON numbers but disk sizes as strings.
func statInt(stats map[string]any, key string) int64 {
	switch v := stats[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
