package cmd

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	fromBlock string
	toBlock   string
	addresses []string
	limit     int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query log entries over a block range",
	Run:   logsRun,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVarP(&fromBlock, "from", "f", "earliest", "Start of the block range.")
	logsCmd.Flags().StringVarP(&toBlock, "to", "t", "latest", "End of the block range.")
	logsCmd.Flags().StringSliceVarP(&addresses, "address", "a", nil, "Emitting addresses to match.")
	logsCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Keep only the trailing limit entries.")
}

func logsRun(cmd *cobra.Command, args []string) {
	payload, err := json.Marshal(struct {
		FromBlock string   `json:"from_block"`
		ToBlock   string   `json:"to_block"`
		Addresses []string `json:"addresses"`
		Limit     int      `json:"limit"`
	}{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addresses,
		Limit:     limit,
	})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(url+"/v1/logs/list", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if err := print(resp.Body); err != nil {
		log.Fatal(err)
	}
}
