package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Print the genesis information",
	Run:   genesisRun,
}

func init() {
	rootCmd.AddCommand(genesisCmd)
}

func genesisRun(cmd *cobra.Command, args []string) {
	if err := get("/v1/genesis/list"); err != nil {
		log.Fatal(err)
	}
}
