package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	chainID  uint64
	to       string
	value    uint64
	gas      uint64
	gasPrice uint64
	data     []byte
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := loadPrivateKey()
		if err != nil {
			log.Fatal(err)
		}

		sendWithDetails(privateKey)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint64VarP(&chainID, "chain-id", "i", 42261, "Chain id to sign for.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address to send to.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64VarP(&gas, "gas", "g", 21000, "Gas limit for the transaction.")
	sendCmd.Flags().Uint64VarP(&gasPrice, "gas-price", "c", 1, "Gas price to offer.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Data to send.")
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) {
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	nonce, err := queryNonce(from)
	if err != nil {
		log.Fatal(err)
	}

	txData := types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Gas:      gas,
		Value:    new(big.Int).SetUint64(value),
		Data:     data,
	}
	if to != "" {
		address := common.HexToAddress(to)
		txData.To = &address
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signedTx, err := types.SignNewTx(privateKey, signer, &txData)
	if err != nil {
		log.Fatal(err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		log.Fatal(err)
	}

	payload, err := json.Marshal(struct {
		Tx string `json:"tx"`
	}{
		Tx: hexutil.Encode(raw),
	})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/send", url), "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(body))
}

func queryNonce(from common.Address) (uint64, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/account/%s", url, from))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return 0, err
	}

	return account.Nonce, nil
}
