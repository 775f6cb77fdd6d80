package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dicomboot/internal/models"
	"dicomboot/internal/orthanc"
	"dicomboot/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list [patients|studies|series|instances]",
	Short: "List resource identifiers stored in Orthanc",
	Long: `List the identifiers Orthanc holds at the given resource level.

The level must be one of: patients, studies, series, instances.`,
	Example: `  # List stored patients
  dicomboot list patients

  # List stored instances on a remote server
  dicomboot list instances --orthanc-url http://orthanc:8042`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args[0])
	},
}

func runList(cmd *cobra.Command, level string) error {
	runCfg := *cfg
	if orthancURL, _ := cmd.Flags().GetString("orthanc-url"); orthancURL != "" {
		runCfg.OrthancURL = orthancURL
	}

	client := orthanc.New(&runCfg)

	var (
		ids []string
		err error
	)
	switch level {
	case "patients":
		ids, err = client.ListPatients()
	case "studies":
		ids, err = client.ListStudies()
	case "series":
		ids, err = client.ListSeries()
	case "instances":
		ids, err = client.ListInstances()
	default:
		err = fmt.Errorf("unknown resource level %q, expected patients, studies, series or instances", level)
	}
	if err != nil {
		utils.PrintError(err, "list")
		return err
	}

	result := models.ResourceList{Level: level, Count: len(ids), IDs: ids}
	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "list")
		return err
	}
	return nil
}

func init() {
	listCmd.Flags().String("orthanc-url", "", "Orthanc REST API base URL (default from config)")
}
