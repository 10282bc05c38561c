// Package database maintains the append-only ledger for the chain: blocks,
// indexed transactions, indexed receipts, and the handle to the merkleized
// key/value store holding account and contract state.
package database

import (
	"github.com/cloakchain/gateway/foundation/chain/genesis"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainState is the current state of the ledger. It is created once at
// startup with the genesis block pre-loaded and is mutated exclusively by
// the mining operation. Access is synchronized by the owning state package.
type ChainState struct {
	store        *mkvs.Memory
	blockNumber  uint64
	blocks       map[common.Hash]Block
	numberToHash map[uint64]common.Hash
	transactions map[common.Hash]BlockTx
	receipts     map[common.Hash]*types.Receipt
}

// New constructs a ChainState around a pre-seeded store and installs the
// genesis block: number 0 with a zero parent hash.
func New(gen genesis.Genesis, store *mkvs.Memory) *ChainState {
	genesisBlock := NewBlock(0, common.Hash{}, 0, 0, gen.BlockGasLimit, types.Bloom{})

	cs := ChainState{
		store:        store,
		blockNumber:  0,
		blocks:       map[common.Hash]Block{genesisBlock.Hash: genesisBlock},
		numberToHash: map[uint64]common.Hash{0: genesisBlock.Hash},
		transactions: make(map[common.Hash]BlockTx),
		receipts:     make(map[common.Hash]*types.Receipt),
	}

	return &cs
}

// Store returns the handle to the merkleized key/value store.
func (cs *ChainState) Store() *mkvs.Memory {
	return cs.store
}

// BestBlockNumber returns the current best block number.
func (cs *ChainState) BestBlockNumber() uint64 {
	return cs.blockNumber
}

// LatestBlock returns the current best block.
func (cs *ChainState) LatestBlock() Block {
	block, exists := cs.BlockByNumber(cs.blockNumber)
	if !exists {
		// The best block is installed before it becomes the best block.
		panic("chain state missing its best block")
	}

	return block
}

// BlockByNumber returns the block with the specified number.
func (cs *ChainState) BlockByNumber(number uint64) (Block, bool) {
	hash, exists := cs.numberToHash[number]
	if !exists {
		return Block{}, false
	}

	return cs.BlockByHash(hash)
}

// BlockByHash returns the block with the specified hash.
func (cs *ChainState) BlockByHash(hash common.Hash) (Block, bool) {
	block, exists := cs.blocks[hash]
	return block, exists
}

// Transaction returns the localized transaction with the specified hash.
func (cs *ChainState) Transaction(hash common.Hash) (BlockTx, bool) {
	tx, exists := cs.transactions[hash]
	return tx, exists
}

// Receipt returns the localized receipt for the transaction with the
// specified hash.
func (cs *ChainState) Receipt(hash common.Hash) (*types.Receipt, bool) {
	receipt, exists := cs.receipts[hash]
	return receipt, exists
}

// Append records a mined block and its transaction and receipt in the
// ledger indices and advances the best block pointer. The records are
// immutable once stored.
func (cs *ChainState) Append(block Block, tx BlockTx, receipt *types.Receipt) {
	cs.blocks[block.Hash] = block
	cs.numberToHash[block.Number] = block.Hash
	cs.transactions[tx.Tx.Hash()] = tx
	cs.receipts[tx.Tx.Hash()] = receipt
	cs.blockNumber = block.Number
}
