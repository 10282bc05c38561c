// Package machine is the reference state-transition engine for the gateway.
// It executes value transfers, contract creation, and a minimal contract
// storage operation, with full confidential encryption of call data and
// contract storage when a confidential context is active.
package machine

import (
	"fmt"
	"math/big"

	"github.com/cloakchain/gateway/foundation/chain/confidential"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/cloakchain/gateway/foundation/chain/genesis"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// ConfidentialPrefix marks call data destined for a confidential contract.
// The remainder of the call data is an authenticated session payload.
var ConfidentialPrefix = []byte("\x00enc")

// SlotSize is the size of a contract storage slot key. Call data for a
// storage operation is the slot key followed by the value bytes.
const SlotSize = 32

// StoreTopic is the log topic emitted for every contract storage operation.
var StoreTopic = common.Hash(crypto.Keccak256Hash([]byte("Store(bytes32)")))

// Machine implements the engine.Engine interface.
type Machine struct {
	signer types.Signer
}

// New constructs a Machine for the specified chain id.
func New(chainID uint64) *Machine {
	return &Machine{
		signer: types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
	}
}

// InitGenesis seeds the store with the account balances from the genesis
// file.
func (m *Machine) InitGenesis(store mkvs.MKVS, gen genesis.Genesis) error {
	for addr, balance := range gen.Balances {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("genesis account %q is not a valid address", addr)
		}

		account := engine.Account{Balance: balance}
		if err := writeAccount(store, common.HexToAddress(addr), account); err != nil {
			return err
		}
	}

	return nil
}

// Account returns the engine's view of the specified account.
func (m *Machine) Account(store mkvs.MKVS, address common.Address) (engine.Account, error) {
	return readAccount(store, address)
}

// Apply executes the transaction against the store for inclusion in a block.
// Validation failures and malformed confidential payloads return an error so
// the caller can abort the block without mutating chain state.
func (m *Machine) Apply(env engine.EnvInfo, store mkvs.MKVS, tx *types.Transaction, cctx *confidential.Ctx) (*engine.Executed, error) {
	return m.execute(env, store, tx, cctx, false)
}

// Simulate executes the transaction without nonce checking. The caller is
// expected to pass a snapshot of the store since the execution still writes
// through it.
func (m *Machine) Simulate(env engine.EnvInfo, store mkvs.MKVS, tx *types.Transaction) (*engine.Executed, error) {
	return m.execute(env, store, tx, nil, true)
}

// =============================================================================

// execute performs the state transition for one transaction.
func (m *Machine) execute(env engine.EnvInfo, store mkvs.MKVS, tx *types.Transaction, cctx *confidential.Ctx, virtual bool) (*engine.Executed, error) {
	from, err := types.Sender(m.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	sender, err := readAccount(store, from)
	if err != nil {
		return nil, err
	}

	if !virtual && tx.Nonce() != sender.Nonce {
		return nil, fmt.Errorf("invalid nonce, got %d, exp %d", tx.Nonce(), sender.Nonce)
	}

	intrinsic := intrinsicGas(tx)
	if tx.Gas() < intrinsic {
		return nil, fmt.Errorf("intrinsic gas too low, need %d, have %d", intrinsic, tx.Gas())
	}

	// Account balances are 64 bit, so transactions declaring amounts
	// beyond that range can never be funded. Reject them before the
	// conversion would wrap the values.
	if !tx.GasPrice().IsUint64() {
		return nil, fmt.Errorf("gas price %v exceeds the balance range", tx.GasPrice())
	}
	if !tx.Value().IsUint64() {
		return nil, fmt.Errorf("value %v exceeds the balance range", tx.Value())
	}
	gasPrice := tx.GasPrice().Uint64()
	value := tx.Value().Uint64()

	cost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasPrice())
	cost.Add(cost, tx.Value())
	if !cost.IsUint64() || sender.Balance < cost.Uint64() {
		return nil, fmt.Errorf("insufficient balance, have %d", sender.Balance)
	}

	exec := engine.Executed{
		GasUsed: intrinsic,
		Status:  types.ReceiptStatusSuccessful,
	}

	switch {
	case tx.To() == nil:
		if err := m.create(store, from, tx, cctx, &exec); err != nil {
			return nil, err
		}

	case len(tx.Data()) > 0:
		if err := m.call(store, tx, cctx, &exec); err != nil {
			return nil, err
		}
	}

	// The sender pays for the gas consumed regardless of the outcome, but
	// the value only moves on success.
	sender.Balance -= exec.GasUsed * gasPrice
	sender.Nonce++

	if exec.Status == types.ReceiptStatusSuccessful && tx.To() != nil && value > 0 {
		recipient, err := readAccount(store, *tx.To())
		if err != nil {
			return nil, err
		}
		recipient.Balance += value
		sender.Balance -= value

		if err := writeAccount(store, *tx.To(), recipient); err != nil {
			return nil, err
		}
	}

	if err := writeAccount(store, from, sender); err != nil {
		return nil, err
	}

	fee := exec.GasUsed * gasPrice
	if fee > 0 {
		coinbase, err := readAccount(store, env.Coinbase)
		if err != nil {
			return nil, err
		}
		coinbase.Balance += fee

		if err := writeAccount(store, env.Coinbase, coinbase); err != nil {
			return nil, err
		}
	}

	return &exec, nil
}

// create deploys the transaction data as contract code at the derived
// contract address.
func (m *Machine) create(store mkvs.MKVS, from common.Address, tx *types.Transaction, cctx *confidential.Ctx, exec *engine.Executed) (err error) {
	code := tx.Data()
	address := crypto.CreateAddress(from, tx.Nonce())

	// A confidential deployment activates the context for the new contract
	// so its key bundle exists before the first call.
	if cctx != nil && hasConfidentialPrefix(code) {
		code = code[len(ConfidentialPrefix):]

		previous, aerr := cctx.Activate(&address)
		if aerr != nil {
			return aerr
		}
		defer func() {
			if rerr := restore(cctx, previous); err == nil {
				err = rerr
			}
		}()
	}

	account, err := readAccount(store, address)
	if err != nil {
		return err
	}
	account.Code = code

	if err := writeAccount(store, address, account); err != nil {
		return err
	}

	exec.ContractAddress = &address

	return nil
}

// call performs the storage operation encoded in the transaction's call
// data: a 32 byte slot key followed by the value bytes. The previous value
// of the slot is returned as the call output. With an active confidential
// context the slot key, value, call data and output are all encrypted.
func (m *Machine) call(store mkvs.MKVS, tx *types.Transaction, cctx *confidential.Ctx, exec *engine.Executed) (err error) {
	to := *tx.To()
	payload := tx.Data()

	contract, err := readAccount(store, to)
	if err != nil {
		return err
	}
	if len(contract.Code) == 0 {
		// Plain value transfer carrying extra data.
		return nil
	}

	confidentialCall := cctx != nil && hasConfidentialPrefix(payload)
	if confidentialCall {
		previous, aerr := cctx.Activate(&to)
		if aerr != nil {
			return aerr
		}
		defer func() {
			if rerr := restore(cctx, previous); err == nil {
				err = rerr
			}
		}()

		plaintext, _, derr := cctx.DecryptSession(payload[len(ConfidentialPrefix):])
		if derr != nil {
			return derr
		}
		payload = plaintext
	}

	if len(payload) < SlotSize {
		exec.Status = types.ReceiptStatusFailed
		exec.Exception = engine.ErrReverted
		return nil
	}

	if exec.GasUsed+params.SstoreSetGas > tx.Gas() {
		exec.GasUsed = tx.Gas()
		exec.Status = types.ReceiptStatusFailed
		exec.Exception = engine.ErrOutOfGas
		return nil
	}
	exec.GasUsed += params.SstoreSetGas

	slot := payload[:SlotSize]
	value := payload[SlotSize:]

	key := slot
	if cctx != nil && cctx.IsEncrypting() {
		if key, err = cctx.EncryptStorageKey(slot); err != nil {
			return err
		}
	}

	previous := store.Get(storageKey(to, key))
	if previous != nil && cctx != nil && cctx.IsEncrypting() {
		if previous, err = cctx.DecryptStorageValue(previous); err != nil {
			return err
		}
	}

	stored := value
	if cctx != nil && cctx.IsEncrypting() {
		if stored, err = cctx.EncryptStorageValue(value); err != nil {
			return err
		}
	}
	store.Insert(storageKey(to, key), stored)

	exec.Logs = append(exec.Logs, &types.Log{
		Address: to,
		Topics:  []common.Hash{StoreTopic, common.BytesToHash(slot)},
		Data:    value,
	})
	exec.Output = previous

	if confidentialCall {
		if exec.Output, err = cctx.EncryptSession(exec.Output); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

// intrinsicGas computes the gas consumed before any execution takes place.
func intrinsicGas(tx *types.Transaction) uint64 {
	gas := params.TxGas
	if tx.To() == nil {
		gas = params.TxGasContractCreation
	}

	for _, b := range tx.Data() {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}

	return gas
}

// hasConfidentialPrefix reports whether the call data is marked for
// confidential execution.
func hasConfidentialPrefix(data []byte) bool {
	if len(data) < len(ConfidentialPrefix) {
		return false
	}

	for i := range ConfidentialPrefix {
		if data[i] != ConfidentialPrefix[i] {
			return false
		}
	}

	return true
}

// restore reactivates the previously active contract after a nested call
// returns. A key manager failure here leaves the context pointed at the
// wrong contract, so it fails the execution.
func restore(cctx *confidential.Ctx, previous *common.Address) error {
	if _, err := cctx.Activate(previous); err != nil {
		return fmt.Errorf("restoring confidential context: %w", err)
	}

	return nil
}
