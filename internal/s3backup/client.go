package s3backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "dicomboot/config"
	"dicomboot/internal/models"
	"dicomboot/pkg/utils"
)

// Client archives the local download staging directory and pushes the
// archive to an S3-compatible bucket for off-host safekeeping.
type Client struct {
	s3Client *s3.Client
	config   *appConfig.Config
}

func New(cfg *appConfig.Config) (*Client, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 backup is not configured: S3_BUCKET is empty")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.S3Endpoint != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return &Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// BackupDirectory zips localDir and uploads the archive under destinationPath
// in the configured bucket. The temporary archive is removed afterwards.
func (c *Client) BackupDirectory(ctx context.Context, localDir, destinationPath string) (*models.BackupResult, error) {
	startTime := time.Now()

	if err := utils.ValidatePaths([]string{localDir}); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	archivePath := filepath.Join(os.TempDir(), utils.GenerateArchiveName([]string{localDir}, ".zip"))
	compressedSize, err := utils.CreateArchive([]string{localDir}, archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer utils.CleanupTempFile(archivePath)

	remotePath := buildRemotePath(destinationPath, filepath.Base(archivePath))
	if err := c.uploadArchive(ctx, archivePath, remotePath); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	return &models.BackupResult{
		Bucket:         c.config.S3Bucket,
		RemotePath:     remotePath,
		SourceDir:      localDir,
		TotalSizeBytes: compressedSize,
		TotalSizeHuman: utils.FormatBytes(compressedSize),
		OperationTime:  utils.FormatTime(startTime),
		BackupDuration: time.Since(startTime).String(),
	}, nil
}

func (c *Client) uploadArchive(ctx context.Context, localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	uploader := manager.NewUploader(c.s3Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.S3Bucket),
		Key:         aws.String(remotePath),
		Body:        file,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func buildRemotePath(destinationPath, filename string) string {
	if destinationPath == "" {
		return filename
	}

	destinationPath = strings.TrimPrefix(destinationPath, "/")
	if !strings.HasSuffix(destinationPath, "/") {
		destinationPath += "/"
	}
	return destinationPath + filename
}
