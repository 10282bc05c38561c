package state_test

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/engine/machine"
	"github.com/cloakchain/gateway/foundation/chain/genesis"
	"github.com/cloakchain/gateway/foundation/chain/keymanager"
	"github.com/cloakchain/gateway/foundation/chain/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const chainID = 42261

// =============================================================================

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()

	privateKey, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the private key: %v", failed, err)
	}

	return privateKey, crypto.PubkeyToAddress(privateKey.PublicKey)
}

func newState(t *testing.T, funded common.Address, balance uint64) *state.State {
	t.Helper()

	gen := genesis.Genesis{
		ChainID:       chainID,
		BlockGasLimit: 16_000_000,
		MinGasPrice:   1,
		Balances:      map[string]uint64{funded.Hex(): balance},
	}

	st, err := state.New(state.Config{
		Genesis:    gen,
		Engine:     machine.New(chainID),
		KeyManager: keymanager.NewMockClient(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the chain state: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	return st
}

func rawTx(t *testing.T, privateKey *ecdsa.PrivateKey, nonce uint64, to *common.Address, value uint64, gas uint64, gasPrice uint64, data []byte) []byte {
	t.Helper()

	signer := types.LatestSignerForChainID(big.NewInt(chainID))
	tx, err := types.SignNewTx(privateKey, signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Gas:      gas,
		To:       to,
		Value:    new(big.Int).SetUint64(value),
		Data:     data,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal the transaction: %v", failed, err)
	}

	return raw
}

func Test_SendRawTransaction(t *testing.T) {
	privateKey, from := newKey(t)
	to := common.HexToAddress("0x2200000000000000000000000000000000000022")

	t.Log("Given the need to mine submitted transactions.")
	{
		t.Logf("\tTest 0:\tWhen sending a simple transfer.")
		{
			st := newState(t, from, 1_000_000)

			raw := rawTx(t, privateKey, 0, &to, 100, params.TxGas, 1, nil)
			txHash, result, err := st.SendRawTransaction(raw)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to send the transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to send the transaction.", success)

			if result.GasUsed != params.TxGas || result.StatusCode != types.ReceiptStatusSuccessful {
				t.Fatalf("\t%s\tTest 0:\tShould use the intrinsic gas with a success status: got %d/%d.", failed, result.GasUsed, result.StatusCode)
			}
			t.Logf("\t%s\tTest 0:\tShould use the intrinsic gas with a success status.", success)

			if st.BestBlockNumber() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould mine the transaction into block one: got %d.", failed, st.BestBlockNumber())
			}
			t.Logf("\t%s\tTest 0:\tShould mine the transaction into block one.", success)

			block := st.GetLatestBlock()
			if len(block.Transactions) != 1 || block.Transactions[0].Tx.Hash() != txHash || block.Transactions[0].Index != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould carry the single transaction at index zero.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould carry the single transaction at index zero.", success)

			receipt, exists := st.GetTxnReceiptByHash(txHash)
			if !exists || receipt.Status != types.ReceiptStatusSuccessful || receipt.BlockHash != block.Hash {
				t.Fatalf("\t%s\tTest 0:\tShould localize the receipt to the mined block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould localize the receipt to the mined block.", success)

			sender, err := st.QueryAccount(from)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to query the sender: %v", failed, err)
			}
			if sender.Balance != 1_000_000-params.TxGas-100 || sender.Nonce != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould charge the sender gas and value: got %d/%d.", failed, sender.Balance, sender.Nonce)
			}
			t.Logf("\t%s\tTest 0:\tShould charge the sender gas and value.", success)

			recipient, err := st.QueryAccount(to)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to query the recipient: %v", failed, err)
			}
			if recipient.Balance != 100 {
				t.Fatalf("\t%s\tTest 0:\tShould credit the recipient: got %d.", failed, recipient.Balance)
			}
			t.Logf("\t%s\tTest 0:\tShould credit the recipient.", success)
		}

		t.Logf("\tTest 1:\tWhen sending several transactions.")
		{
			st := newState(t, from, 1_000_000)

			for nonce := uint64(0); nonce < 3; nonce++ {
				raw := rawTx(t, privateKey, nonce, &to, 10, params.TxGas, 1, nil)
				if _, _, err := st.SendRawTransaction(raw); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould be able to send transaction %d: %v", failed, nonce, err)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould be able to send three transactions.", success)

			if st.BestBlockNumber() != 3 {
				t.Fatalf("\t%s\tTest 1:\tShould mine one block per transaction: got %d.", failed, st.BestBlockNumber())
			}
			t.Logf("\t%s\tTest 1:\tShould mine one block per transaction.", success)

			for number := uint64(1); number <= 3; number++ {
				block, exists := st.GetBlockByNumber(number)
				if !exists {
					t.Fatalf("\t%s\tTest 1:\tShould find block %d.", failed, number)
				}
				parent, exists := st.GetBlockByNumber(number - 1)
				if !exists || block.ParentHash != parent.Hash {
					t.Fatalf("\t%s\tTest 1:\tShould link block %d to its parent.", failed, number)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould link every block to its parent.", success)
		}

		t.Logf("\tTest 2:\tWhen a transaction violates chain policy.")
		{
			st := newState(t, from, 1_000_000)

			if _, _, err := st.SendRawTransaction([]byte("not a transaction")); !errors.Is(err, state.ErrDecode) {
				t.Fatalf("\t%s\tTest 2:\tShould reject undecodable bytes: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject undecodable bytes.", success)

			raw := rawTx(t, privateKey, 0, &to, 10, 17_000_000, 1, nil)
			if _, _, err := st.SendRawTransaction(raw); !errors.Is(err, state.ErrGasLimit) {
				t.Fatalf("\t%s\tTest 2:\tShould reject gas above the block gas limit: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject gas above the block gas limit.", success)

			raw = rawTx(t, privateKey, 0, &to, 10, params.TxGas, 0, nil)
			if _, _, err := st.SendRawTransaction(raw); !errors.Is(err, state.ErrGasPrice) {
				t.Fatalf("\t%s\tTest 2:\tShould reject a gas price below the minimum: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject a gas price below the minimum.", success)

			// Signed for a different chain so sender recovery fails.
			wrongSigner := types.LatestSignerForChainID(big.NewInt(chainID + 1))
			wrongTx, err := types.SignNewTx(privateKey, wrongSigner, &types.LegacyTx{
				Nonce:    0,
				GasPrice: big.NewInt(1),
				Gas:      params.TxGas,
				To:       &to,
				Value:    big.NewInt(10),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign the transaction: %v", failed, err)
			}
			wrongRaw, err := wrongTx.MarshalBinary()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to marshal the transaction: %v", failed, err)
			}
			if _, _, err := st.SendRawTransaction(wrongRaw); !errors.Is(err, state.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest 2:\tShould reject a signature for another chain: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject a signature for another chain.", success)

			if st.BestBlockNumber() != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould leave the chain untouched by rejected transactions: got block %d.", failed, st.BestBlockNumber())
			}
			sender, err := st.QueryAccount(from)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to query the sender: %v", failed, err)
			}
			if sender.Balance != 1_000_000 || sender.Nonce != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould leave the sender account untouched: got %d/%d.", failed, sender.Balance, sender.Nonce)
			}
			t.Logf("\t%s\tTest 2:\tShould leave the chain untouched by rejected transactions.", success)
		}
	}
}

func Test_LogsAndSimulation(t *testing.T) {
	privateKey, from := newKey(t)

	t.Log("Given the need to query logs and simulate transactions.")
	{
		t.Logf("\tTest 0:\tWhen filtering logs over a block range.")
		{
			st := newState(t, from, 10_000_000)

			// Deploy a contract, then write the same slot in two blocks.
			deploy := rawTx(t, privateKey, 0, nil, 0, 500_000, 1, []byte("code"))
			txHash, _, err := st.SendRawTransaction(deploy)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to deploy the contract: %v", failed, err)
			}
			receipt, _ := st.GetTxnReceiptByHash(txHash)
			contract := receipt.ContractAddress

			slot := bytes.Repeat([]byte{0x01}, machine.SlotSize)
			for i, value := range []string{"one", "two"} {
				payload := append(append([]byte{}, slot...), []byte(value)...)
				raw := rawTx(t, privateKey, uint64(i+1), &contract, 0, 500_000, 1, payload)
				if _, _, err := st.SendRawTransaction(raw); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to write the slot: %v", failed, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to deploy and write the slot twice.", success)

			logs, err := st.Logs(database.Filter{
				FromBlock: database.EarliestBlockID(),
				ToBlock:   database.LatestBlockID(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to query the whole range: %v", failed, err)
			}
			if len(logs) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould find both store logs: got %d.", failed, len(logs))
			}
			if logs[0].BlockNumber >= logs[1].BlockNumber {
				t.Fatalf("\t%s\tTest 0:\tShould sort logs ascending by block number.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould find both store logs sorted ascending.", success)

			if logs[0].BlockNumber != 2 || logs[0].BlockHash != database.BlockHash(2) || logs[0].Index != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould localize each log to its block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould localize each log to its block.", success)

			limited, err := st.Logs(database.Filter{
				FromBlock: database.EarliestBlockID(),
				ToBlock:   database.LatestBlockID(),
				Limit:     1,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply a limit: %v", failed, err)
			}
			if len(limited) != 1 || limited[0].BlockNumber != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould keep only the trailing limit entries.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep only the trailing limit entries.", success)

			if _, err := st.Logs(database.Filter{
				FromBlock: database.EarliestBlockID(),
				ToBlock:   database.NumberBlockID(99),
			}); !errors.Is(err, state.ErrBlockNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould fail the query when an endpoint is missing: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fail the query when an endpoint is missing.", success)
		}

		t.Logf("\tTest 1:\tWhen simulating and estimating transactions.")
		{
			st := newState(t, from, 1_000_000)
			to := common.HexToAddress("0x2200000000000000000000000000000000000022")

			raw := rawTx(t, privateKey, 0, &to, 100, params.TxGas, 1, nil)
			tx := new(types.Transaction)
			if err := tx.UnmarshalBinary(raw); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decode the transaction: %v", failed, err)
			}

			gas, err := st.EstimateGas(tx, database.LatestBlockID())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to estimate gas: %v", failed, err)
			}
			if gas != params.TxGas {
				t.Fatalf("\t%s\tTest 1:\tShould estimate the intrinsic gas for a transfer: got %d.", failed, gas)
			}
			t.Logf("\t%s\tTest 1:\tShould estimate the intrinsic gas for a transfer.", success)

			exec, err := st.SimulateTransaction(tx, database.LatestBlockID())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to simulate: %v", failed, err)
			}
			if exec.Status != types.ReceiptStatusSuccessful {
				t.Fatalf("\t%s\tTest 1:\tShould simulate a successful execution: got %d.", failed, exec.Status)
			}
			t.Logf("\t%s\tTest 1:\tShould simulate a successful execution.", success)

			if st.BestBlockNumber() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould not mine during simulation: got block %d.", failed, st.BestBlockNumber())
			}
			sender, err := st.QueryAccount(from)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to query the sender: %v", failed, err)
			}
			if sender.Balance != 1_000_000 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the canonical state untouched: got %d.", failed, sender.Balance)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the canonical state untouched.", success)

			if _, err := st.SimulateTransaction(tx, database.NumberBlockID(42)); !errors.Is(err, state.ErrBlockNotFound) {
				t.Fatalf("\t%s\tTest 1:\tShould fail for a missing base block: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould fail for a missing base block.", success)
		}
	}
}
