package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dicomboot/internal/bootstrap"
	"dicomboot/internal/orthanc"
	"dicomboot/internal/tcia"
	"dicomboot/pkg/utils"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Populate the Orthanc server with imaging data from TCIA",
	Long: `Run the full bootstrap pipeline:

  1. Wait until the Orthanc server answers its liveness probe.
  2. Query TCIA for the collection's series and download the first
     --max-series of them into the staging directory.
  3. Upload every downloaded file to Orthanc and report upload and
     server statistics.

A series that fails to download or a file that fails to upload is
logged and skipped; the run only aborts when Orthanc never becomes
reachable, the collection query fails or is empty, or no files were
downloaded at all. Each fatal condition maps to its own exit code.`,
	Example: `  # Bootstrap using defaults from .env
  dicomboot bootstrap --collection LIDC-IDRI

  # Limit to the first 3 series of the collection
  dicomboot bootstrap --collection LIDC-IDRI --max-series 3

  # Stage downloads somewhere else and target a remote Orthanc
  dicomboot bootstrap -c NSCLC-Radiomics -d /tmp/staging --orthanc-url http://orthanc:8042`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBootstrap(cmd)
	},
}

func runBootstrap(cmd *cobra.Command) error {
	runCfg := *cfg
	if collection, _ := cmd.Flags().GetString("collection"); collection != "" {
		runCfg.Collection = collection
	}
	if cmd.Flags().Changed("max-series") {
		runCfg.MaxSeries, _ = cmd.Flags().GetInt("max-series")
	}
	if downloadDir, _ := cmd.Flags().GetString("download-dir"); downloadDir != "" {
		runCfg.DownloadDir = downloadDir
	}
	if orthancURL, _ := cmd.Flags().GetString("orthanc-url"); orthancURL != "" {
		runCfg.OrthancURL = orthancURL
	}
	if username, _ := cmd.Flags().GetString("orthanc-user"); username != "" {
		runCfg.OrthancUsername = username
	}
	if password, _ := cmd.Flags().GetString("orthanc-pass"); password != "" {
		runCfg.OrthancPassword = password
	}

	if runCfg.Collection == "" {
		err := fmt.Errorf("collection is required; set TCIA_COLLECTION or pass --collection")
		utils.PrintError(err, "bootstrap")
		return err
	}

	if isVerbose(cmd) {
		cmd.Printf("Starting bootstrap run...\n")
		cmd.Printf("  Collection : %s\n", runCfg.Collection)
		cmd.Printf("  Max series : %d\n", runCfg.MaxSeries)
		cmd.Printf("  Download to: %s\n", runCfg.DownloadDir)
		cmd.Printf("  Orthanc URL: %s\n", runCfg.OrthancURL)
	}

	runner := bootstrap.NewRunner(&runCfg, tcia.New(&runCfg), orthanc.New(&runCfg))

	result, err := runner.Run()
	if err != nil {
		utils.PrintError(err, "bootstrap")
		return err
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "bootstrap")
		return err
	}

	if isVerbose(cmd) {
		cmd.Println("Bootstrap run completed successfully")
	}
	return nil
}

func init() {
	bootstrapCmd.Flags().StringP("collection", "c", "", "TCIA collection name (default from config)")
	bootstrapCmd.Flags().IntP("max-series", "n", 0, "Maximum number of series to download (default from config)")
	bootstrapCmd.Flags().StringP("download-dir", "d", "", "Download staging directory (default from config)")
	bootstrapCmd.Flags().String("orthanc-url", "", "Orthanc REST API base URL (default from config)")
	bootstrapCmd.Flags().String("orthanc-user", "", "Orthanc basic-auth username")
	bootstrapCmd.Flags().String("orthanc-pass", "", "Orthanc basic-auth password")
}
