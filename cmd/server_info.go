package cmd

import (
	"github.com/spf13/cobra"

	"dicomboot/internal/models"
	"dicomboot/internal/orthanc"
	"dicomboot/pkg/utils"
)

var serverInfoCmd = &cobra.Command{
	Use:   "server-info",
	Short: "Show Orthanc system information and storage statistics",
	Long: `Query the Orthanc server's /system and /statistics endpoints and
print both documents as JSON. The server URL and credentials are taken
from the configuration unless overridden with flags.`,
	Example: `  # Inspect the configured Orthanc server
  dicomboot server-info

  # Inspect a different server
  dicomboot server-info --orthanc-url http://orthanc:8042`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServerInfo(cmd)
	},
}

func runServerInfo(cmd *cobra.Command) error {
	runCfg := *cfg
	if orthancURL, _ := cmd.Flags().GetString("orthanc-url"); orthancURL != "" {
		runCfg.OrthancURL = orthancURL
	}

	client := orthanc.New(&runCfg)

	if isVerbose(cmd) {
		cmd.Printf("Querying Orthanc server: %s\n", runCfg.OrthancURL)
	}

	system, err := client.GetSystemInfo()
	if err != nil {
		utils.PrintError(err, "server-info")
		return err
	}

	statistics, err := client.GetStatistics()
	if err != nil {
		utils.PrintError(err, "server-info")
		return err
	}

	info := models.ServerInfo{System: system, Statistics: statistics}
	if err := utils.PrintJSON(info); err != nil {
		utils.PrintError(err, "server-info")
		return err
	}
	return nil
}

func init() {
	serverInfoCmd.Flags().String("orthanc-url", "", "Orthanc REST API base URL (default from config)")
}
