// Package mkvs provides a merkleized key/value store. The chain keeps all
// account and contract state inside one of these stores and binds the full
// contents to a single root digest on commit.
package mkvs

import (
	"github.com/ethereum/go-ethereum/common"
)

// MKVS represents the behavior required to be implemented by any package
// providing merkleized key/value storage for chain state.
type MKVS interface {
	Get(key []byte) []byte
	Insert(key []byte, value []byte)
	Remove(key []byte)
	Commit() common.Hash
}
