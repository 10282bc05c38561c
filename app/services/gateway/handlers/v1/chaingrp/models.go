package chaingrp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cloakchain/gateway/business/sys/validate"
	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// sendTx is what clients POST to submit a raw signed transaction.
type sendTx struct {
	Tx string `json:"tx" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (st sendTx) Validate() error {
	if err := validate.Check(st); err != nil {
		return err
	}
	return nil
}

// simulateTx is what clients POST to simulate or estimate a transaction.
// The block defaults to latest when not provided.
type simulateTx struct {
	Tx    string `json:"tx" validate:"required"`
	Block string `json:"block"`
}

// Validate checks the data in the model is considered clean.
func (st simulateTx) Validate() error {
	if err := validate.Check(st); err != nil {
		return err
	}
	return nil
}

// logsFilter is what clients POST to query log entries.
type logsFilter struct {
	FromBlock string     `json:"from_block"`
	ToBlock   string     `json:"to_block"`
	Addresses []string   `json:"addresses"`
	Topics    [][]string `json:"topics"`
	Limit     int        `json:"limit" validate:"gte=0"`
}

// Validate checks the data in the model is considered clean.
func (lf logsFilter) Validate() error {
	if err := validate.Check(lf); err != nil {
		return err
	}
	return nil
}

// toFilter converts the request model into the database filter, defaulting
// an empty range to the whole chain.
func (lf logsFilter) toFilter() (database.Filter, error) {
	from := lf.FromBlock
	if from == "" {
		from = "earliest"
	}

	fromID, err := parseBlockID(from)
	if err != nil {
		return database.Filter{}, err
	}

	toID, err := parseBlockID(lf.ToBlock)
	if err != nil {
		return database.Filter{}, err
	}

	addresses := make([]common.Address, len(lf.Addresses))
	for i, address := range lf.Addresses {
		if !common.IsHexAddress(address) {
			return database.Filter{}, fmt.Errorf("invalid address %q", address)
		}
		addresses[i] = common.HexToAddress(address)
	}

	topics := make([][]common.Hash, len(lf.Topics))
	for i, candidates := range lf.Topics {
		topics[i] = make([]common.Hash, len(candidates))
		for j, topic := range candidates {
			topics[i][j] = common.HexToHash(topic)
		}
	}

	return database.Filter{
		FromBlock: fromID,
		ToBlock:   toID,
		Addresses: addresses,
		Topics:    topics,
		Limit:     lf.Limit,
	}, nil
}

// parseBlockID converts a client block reference into a block identifier.
// Accepted forms: "latest" (or empty), "earliest", a 32 byte hex hash, or a
// decimal block number.
func parseBlockID(s string) (database.BlockID, error) {
	switch {
	case s == "" || s == "latest":
		return database.LatestBlockID(), nil

	case s == "earliest":
		return database.EarliestBlockID(), nil

	case strings.HasPrefix(s, "0x"):
		if len(s) != 2+2*common.HashLength {
			return database.BlockID{}, fmt.Errorf("invalid block hash %q", s)
		}
		return database.HashBlockID(common.HexToHash(s)), nil

	default:
		number, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return database.BlockID{}, fmt.Errorf("invalid block number %q", s)
		}
		return database.NumberBlockID(number), nil
	}
}

// =============================================================================

type tx struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to,omitempty"`
	Nonce       uint64          `json:"nonce"`
	Value       *hexutil.Big    `json:"value"`
	Gas         uint64          `json:"gas"`
	GasPrice    *hexutil.Big    `json:"gas_price"`
	Data        hexutil.Bytes   `json:"data"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   common.Hash     `json:"block_hash"`
	Index       uint            `json:"index"`
}

func toTx(blockTx database.BlockTx) tx {
	return tx{
		Hash:        blockTx.Tx.Hash(),
		From:        blockTx.From,
		To:          blockTx.Tx.To(),
		Nonce:       blockTx.Tx.Nonce(),
		Value:       (*hexutil.Big)(blockTx.Tx.Value()),
		Gas:         blockTx.Tx.Gas(),
		GasPrice:    (*hexutil.Big)(blockTx.Tx.GasPrice()),
		Data:        blockTx.Tx.Data(),
		BlockNumber: blockTx.BlockNumber,
		BlockHash:   blockTx.BlockHash,
		Index:       blockTx.Index,
	}
}

type block struct {
	Number       uint64       `json:"number"`
	Timestamp    uint64       `json:"timestamp"`
	Hash         common.Hash  `json:"hash"`
	ParentHash   common.Hash  `json:"parent_hash"`
	GasUsed      uint64       `json:"gas_used"`
	GasLimit     uint64       `json:"gas_limit"`
	LogBloom     types.Bloom  `json:"log_bloom"`
	Transactions []tx         `json:"transactions"`
	Logs         []*types.Log `json:"logs"`
}

func toBlock(blk database.Block) block {
	txs := make([]tx, len(blk.Transactions))
	for i, blockTx := range blk.Transactions {
		txs[i] = toTx(blockTx)
	}

	return block{
		Number:       blk.Number,
		Timestamp:    blk.Timestamp,
		Hash:         blk.Hash,
		ParentHash:   blk.ParentHash,
		GasUsed:      blk.GasUsed,
		GasLimit:     blk.GasLimit,
		LogBloom:     blk.LogBloom,
		Transactions: txs,
		Logs:         blk.Logs,
	}
}

type sendResult struct {
	TxHash            common.Hash   `json:"tx_hash"`
	CumulativeGasUsed uint64        `json:"cumulative_gas_used"`
	GasUsed           uint64        `json:"gas_used"`
	LogBloom          types.Bloom   `json:"log_bloom"`
	Logs              []*types.Log  `json:"logs"`
	StatusCode        uint64        `json:"status_code"`
	Output            hexutil.Bytes `json:"output"`
}

func toSendResult(txHash common.Hash, result state.ExecutionResult) sendResult {
	return sendResult{
		TxHash:            txHash,
		CumulativeGasUsed: result.CumulativeGasUsed,
		GasUsed:           result.GasUsed,
		LogBloom:          result.LogBloom,
		Logs:              result.Logs,
		StatusCode:        result.StatusCode,
		Output:            result.Output,
	}
}

type simulateResult struct {
	GasUsed    uint64        `json:"gas_used"`
	Refunded   uint64        `json:"refunded"`
	StatusCode uint64        `json:"status_code"`
	Logs       []*types.Log  `json:"logs"`
	Output     hexutil.Bytes `json:"output"`
	Exception  string        `json:"exception,omitempty"`
}

type account struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
	Balance uint64         `json:"balance"`
	Code    hexutil.Bytes  `json:"code,omitempty"`
}
