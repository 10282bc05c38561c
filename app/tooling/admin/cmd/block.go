package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var blockCmd = &cobra.Command{
	Use:   "block [id]",
	Short: "Print a block by number, hash, latest, or earliest",
	Args:  cobra.MaximumNArgs(1),
	Run:   blockRun,
}

func init() {
	rootCmd.AddCommand(blockCmd)
}

func blockRun(cmd *cobra.Command, args []string) {
	id := "latest"
	if len(args) == 1 {
		id = args[0]
	}

	if err := get("/v1/block/" + id); err != nil {
		log.Fatal(err)
	}
}
