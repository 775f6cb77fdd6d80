package models

// UploadStats counts per-file outcomes of the upload stage. The three
// counters always sum to the number of files submitted.
type UploadStats struct {
	Uploaded      int `json:"uploaded"`
	AlreadyStored int `json:"already_stored"`
	Failed        int `json:"failed"`
}

func (s UploadStats) Total() int {
	return s.Uploaded + s.AlreadyStored + s.Failed
}

type BootstrapResult struct {
	Collection       string      `json:"collection"`
	SeriesFound      int         `json:"series_found"`
	SeriesSelected   int         `json:"series_selected"`
	SeriesDownloaded int         `json:"series_downloaded"`
	FilesDownloaded  int         `json:"files_downloaded"`
	Uploads          UploadStats `json:"uploads"`
	CountPatients    int64       `json:"count_patients"`
	CountStudies     int64       `json:"count_studies"`
	CountSeries      int64       `json:"count_series"`
	CountInstances   int64       `json:"count_instances"`
	TotalDiskBytes   int64       `json:"total_disk_bytes"`
	TotalDiskHuman   string      `json:"total_disk_human"`
	OperationTime    string      `json:"operation_time"`
	RunDuration      string      `json:"run_duration"`
}

type ServerInfo struct {
	System     map[string]any `json:"system"`
	Statistics map[string]any `json:"statistics"`
}

type ResourceList struct {
	Level string   `json:"level"`
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

type BackupResult struct {
	Bucket         string `json:"bucket"`
	RemotePath     string `json:"remote_path"`
	SourceDir      string `json:"source_dir"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalSizeHuman string `json:"total_size_human"`
	OperationTime  string `json:"operation_time"`
	BackupDuration string `json:"backup_duration"`
}
