// Package engine declares the boundary to the state-transition engine that
// executes transactions against account and contract state. The chain
// consumes the engine as an abstract service; the machine package provides
// the reference implementation.
package engine

import (
	"errors"

	"github.com/cloakchain/gateway/foundation/chain/confidential"
	"github.com/cloakchain/gateway/foundation/chain/genesis"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// The exceptions an execution can finish with. These are carried on the
// Executed value for simulations rather than failing the call.
var (
	ErrReverted = errors.New("execution reverted")
	ErrOutOfGas = errors.New("out of gas")
)

// EnvInfo carries the block environment a transaction executes within.
type EnvInfo struct {
	Number     uint64        // Block number being produced.
	Timestamp  uint64        // Wall-clock timestamp of the block.
	Coinbase   common.Address
	GasLimit   uint64
	LastHashes []common.Hash // Only the most recent ancestor hash is tracked.
}

// Account is the engine's view of a single account.
type Account struct {
	Nonce   uint64
	Balance uint64
	Code    []byte
}

// Executed is the outcome of applying or simulating a transaction.
type Executed struct {
	GasUsed         uint64
	Refunded        uint64
	Status          uint64 // EIP-658: 1 success, 0 failure.
	Logs            []*types.Log
	Output          []byte
	ContractAddress *common.Address // Set when the transaction created a contract.
	Exception       error           // Revert/out-of-gas outcome, set instead of failing.
}

// Engine represents the behavior required to be implemented by any package
// providing transaction execution against chain state.
type Engine interface {
	InitGenesis(store mkvs.MKVS, gen genesis.Genesis) error
	Apply(env EnvInfo, store mkvs.MKVS, tx *types.Transaction, cctx *confidential.Ctx) (*Executed, error)
	Simulate(env EnvInfo, store mkvs.MKVS, tx *types.Transaction) (*Executed, error)
	Account(store mkvs.MKVS, address common.Address) (Account, error)
}
