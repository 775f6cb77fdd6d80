package cmd

import (
	"github.com/spf13/cobra"

	"dicomboot/internal/tcia"
	"dicomboot/pkg/utils"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List imaging collections available on TCIA",
	Long: `Query TCIA for all publicly available imaging collections and print
them as JSON. Useful for picking a --collection value for bootstrap.`,
	Example: `  dicomboot collections`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollections(cmd)
	},
}

func runCollections(cmd *cobra.Command) error {
	client := tcia.New(cfg)

	if isVerbose(cmd) {
		cmd.Printf("Querying TCIA: %s\n", cfg.ArchiveURL)
	}

	collections, err := client.ListCollections()
	if err != nil {
		utils.PrintError(err, "collections")
		return err
	}

	if err := utils.PrintJSON(collections); err != nil {
		utils.PrintError(err, "collections")
		return err
	}
	return nil
}
