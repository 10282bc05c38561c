package database

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Block represents a block in the chain. Blocks carry a single transaction
// and the localized logs it produced.
type Block struct {
	Number       uint64       `json:"number"`
	Timestamp    uint64       `json:"timestamp"`
	Hash         common.Hash  `json:"hash"`
	ParentHash   common.Hash  `json:"parent_hash"`
	GasUsed      uint64       `json:"gas_used"`
	GasLimit     uint64       `json:"gas_limit"`
	LogBloom     types.Bloom  `json:"log_bloom"`
	Transactions []BlockTx    `json:"transactions"`
	Logs         []*types.Log `json:"logs"`
}

// NewBlock constructs the next block in the chain.
func NewBlock(number uint64, parentHash common.Hash, timestamp uint64, gasUsed uint64, gasLimit uint64, logBloom types.Bloom) Block {
	return Block{
		Number:     number,
		Timestamp:  timestamp,
		Hash:       BlockHash(number),
		ParentHash: parentHash,
		GasUsed:    gasUsed,
		GasLimit:   gasLimit,
		LogBloom:   logBloom,
	}
}

// BlockHash derives the hash for a block. CORE NOTE: the hash is derived
// from the block number alone, which is not collision-resistant or
// tamper-evident. This is a documented simplification of the simulator, not
// a property to preserve if cryptographic block integrity is ever required.
func BlockHash(number uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(strconv.FormatUint(number, 10)))
}

// =============================================================================

// BlockTx represents a transaction as it's recorded inside a block,
// localized with its block linkage.
type BlockTx struct {
	Tx          *types.Transaction `json:"tx"`
	From        common.Address     `json:"from"`
	BlockNumber uint64             `json:"block_number"`
	BlockHash   common.Hash        `json:"block_hash"`
	Index       uint               `json:"index"`
}

// NewBlockTx constructs a localized transaction record. Blocks hold a single
// transaction so the index is always zero.
func NewBlockTx(tx *types.Transaction, from common.Address, blockNumber uint64, blockHash common.Hash) BlockTx {
	return BlockTx{
		Tx:          tx,
		From:        from,
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		Index:       0,
	}
}
