package cmd

import (
	"github.com/spf13/cobra"

	"dicomboot/config"
)

var (
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dicomboot",
	Short: "Bootstrap a local DICOM server with public imaging data",
	Long: `dicomboot populates a local Orthanc DICOM server with imaging data
pulled from The Cancer Imaging Archive (TCIA).

It can run the full bootstrap pipeline, inspect the Orthanc server,
browse TCIA collections, and back up the download staging directory
to an S3-compatible bucket.
Configuration is loaded from a .env file, an optional YAML config
file (CONFIG_FILE), or environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(config *config.Config) error {
	cfg = config
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(serverInfoCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(backupCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
