package database

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// The kinds of block identifier. The variant set is closed and small so a
// tagged value with a switch is used instead of an interface hierarchy.
const (
	blockIDLatest = iota
	blockIDEarliest
	blockIDNumber
	blockIDHash
)

// BlockID identifies a block by number, by hash, or symbolically as the
// earliest or latest block in the chain.
type BlockID struct {
	kind   int
	number uint64
	hash   common.Hash
}

// LatestBlockID identifies the current best block.
func LatestBlockID() BlockID {
	return BlockID{kind: blockIDLatest}
}

// EarliestBlockID identifies the genesis block.
func EarliestBlockID() BlockID {
	return BlockID{kind: blockIDEarliest}
}

// NumberBlockID identifies a block by its number.
func NumberBlockID(number uint64) BlockID {
	return BlockID{kind: blockIDNumber, number: number}
}

// HashBlockID identifies a block by its hash.
func HashBlockID(hash common.Hash) BlockID {
	return BlockID{kind: blockIDHash, hash: hash}
}

// Resolve looks the identifier up in the specified chain state.
func (id BlockID) Resolve(cs *ChainState) (Block, bool) {
	switch id.kind {
	case blockIDLatest:
		return cs.BlockByNumber(cs.BestBlockNumber())
	case blockIDEarliest:
		return cs.BlockByNumber(0)
	case blockIDNumber:
		return cs.BlockByNumber(id.number)
	default:
		return cs.BlockByHash(id.hash)
	}
}

// =============================================================================

// Filter selects log entries by block range, emitting address, and topic
// positions.
type Filter struct {
	FromBlock BlockID
	ToBlock   BlockID
	Addresses []common.Address
	Topics    [][]common.Hash
	Limit     int
}

// Matches reports whether the log entry satisfies the filter's address and
// topic predicates. Each topic position matches when the filter lists no
// candidates for that position or when any candidate equals the log's topic
// at that position.
func (f Filter) Matches(log *types.Log) bool {
	if len(f.Addresses) > 0 {
		var found bool
		for _, address := range f.Addresses {
			if address == log.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Topics) > len(log.Topics) {
		return false
	}

	for i, candidates := range f.Topics {
		if len(candidates) == 0 {
			continue
		}

		var found bool
		for _, topic := range candidates {
			if topic == log.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
