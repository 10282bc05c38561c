package state

import (
	"sort"

	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BestBlockNumber returns the current best block number.
func (s *State) BestBlockNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.BestBlockNumber()
}

// GetLatestBlock returns a copy of the current best block.
func (s *State) GetLatestBlock() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.LatestBlock()
}

// GetBlock returns the block with the specified identifier. An absent block
// is an empty result, not an error.
func (s *State) GetBlock(id database.BlockID) (database.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return id.Resolve(s.chain)
}

// GetBlockUnwrap returns the block with the specified identifier, failing
// with ErrBlockNotFound when the block does not exist.
func (s *State) GetBlockUnwrap(id database.BlockID) (database.Block, error) {
	block, exists := s.GetBlock(id)
	if !exists {
		return database.Block{}, ErrBlockNotFound
	}

	return block, nil
}

// GetBlockByNumber returns the block with the specified number.
func (s *State) GetBlockByNumber(number uint64) (database.Block, bool) {
	return s.GetBlock(database.NumberBlockID(number))
}

// GetBlockByHash returns the block with the specified hash.
func (s *State) GetBlockByHash(hash common.Hash) (database.Block, bool) {
	return s.GetBlock(database.HashBlockID(hash))
}

// GetTxnByHash returns the localized transaction with the specified hash.
func (s *State) GetTxnByHash(hash common.Hash) (database.BlockTx, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Transaction(hash)
}

// GetTxn returns the transaction at the specified index within the
// identified block.
func (s *State) GetTxn(id database.BlockID, index uint) (database.BlockTx, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := id.Resolve(s.chain)
	if !exists || index >= uint(len(block.Transactions)) {
		return database.BlockTx{}, false
	}

	return block.Transactions[index], true
}

// GetTxnReceiptByHash returns the receipt for the transaction with the
// specified hash.
func (s *State) GetTxnReceiptByHash(hash common.Hash) (*types.Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Receipt(hash)
}

// QueryAccount returns the engine's view of the specified account from a
// snapshot of the store.
func (s *State) QueryAccount(address common.Address) (engine.Account, error) {
	s.mu.RLock()
	store := s.chain.Store().Snapshot()
	s.mu.RUnlock()

	return s.engine.Account(store, address)
}

// Logs looks up log entries based on the specified filter. Both range
// endpoints must resolve to existing blocks or the whole query fails. The
// result is sorted ascending by block number and, when a limit is set, only
// the trailing limit entries are returned.
func (s *State) Logs(filter database.Filter) ([]*types.Log, error) {
	s.mu.RLock()

	fromBlock, fromExists := filter.FromBlock.Resolve(s.chain)
	toBlock, toExists := filter.ToBlock.Resolve(s.chain)
	if !fromExists || !toExists {
		s.mu.RUnlock()
		return nil, ErrBlockNotFound
	}

	var logs []*types.Log
	for number := fromBlock.Number; number <= toBlock.Number; number++ {
		block, exists := s.chain.BlockByNumber(number)
		if !exists {
			continue
		}

		for _, log := range block.Logs {
			if filter.Matches(log) {
				logs = append(logs, log)
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].BlockNumber < logs[j].BlockNumber
	})

	if filter.Limit > 0 && len(logs) > filter.Limit {
		logs = logs[len(logs)-filter.Limit:]
	}

	return logs, nil
}
