package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dicomboot/internal/s3backup"
	"dicomboot/pkg/utils"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the download staging directory to S3",
	Long: `Create a zip archive of the download staging directory and upload it
to the configured S3-compatible bucket.

Requires S3_BUCKET plus credentials in the configuration. The staging
directory defaults to the bootstrap download directory.`,
	Example: `  # Back up the default staging directory
  dicomboot backup

  # Back up into a bucket folder
  dicomboot backup --destination "backups/2026-08"

  # Back up a different directory
  dicomboot backup --source /tmp/staging`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd)
	},
}

func runBackup(cmd *cobra.Command) error {
	source, _ := cmd.Flags().GetString("source")
	destination, _ := cmd.Flags().GetString("destination")
	if source == "" {
		source = cfg.DownloadDir
	}

	client, err := s3backup.New(cfg)
	if err != nil {
		utils.PrintError(err, "backup")
		return err
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Starting backup operation...\n")
		cmd.Printf("  Source: %s\n", source)
		cmd.Printf("  Bucket: %s\n", cfg.S3Bucket)
	}

	result, err := client.BackupDirectory(ctx, source, destination)
	if err != nil {
		utils.PrintError(err, "backup")
		return err
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "backup")
		return err
	}

	if isVerbose(cmd) {
		cmd.Println("Backup operation completed successfully")
	}
	return nil
}

func init() {
	backupCmd.Flags().String("source", "", "Directory to back up (default: download staging directory)")
	backupCmd.Flags().StringP("destination", "d", "", "Destination folder in the S3 bucket (optional)")
	backupCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")
}
