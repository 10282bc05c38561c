// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time         `json:"date"`
	ChainID       uint64            `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	BlockGasLimit uint64            `json:"block_gas_limit"` // The maximum amount of gas a single block can consume.
	MinGasPrice   uint64            `json:"min_gas_price"`   // The minimum gas price (in wei) a transaction must offer.
	Balances      map[string]uint64 `json:"balances"`        // Accounts pre-funded at block zero.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load() (Genesis, error) {
	path := "zblock/genesis.json"
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
