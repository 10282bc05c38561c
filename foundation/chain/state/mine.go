package state

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/cloakchain/gateway/foundation/chain/confidential"
	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ExecutionResult is returned to the submitter of a mined transaction.
type ExecutionResult struct {
	CumulativeGasUsed uint64       `json:"cumulative_gas_used"`
	GasUsed           uint64       `json:"gas_used"`
	LogBloom          types.Bloom  `json:"log_bloom"`
	Logs              []*types.Log `json:"logs"`
	StatusCode        uint64       `json:"status_code"`
	Output            []byte       `json:"output"`
}

// SendRawTransaction accepts a raw signed transaction, validates it against
// chain policy, and mines it into the next block. Rejections happen before
// any state mutation and leave no side effects.
func (s *State) SendRawTransaction(raw []byte) (common.Hash, ExecutionResult, error) {

	// Decode the transaction.
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, ExecutionResult{}, ErrDecode
	}

	// Check that gas < block gas limit.
	if tx.Gas() > s.blockGasLimit {
		return common.Hash{}, ExecutionResult{}, ErrGasLimit
	}

	// Check the signature by recovering the sender.
	from, err := types.Sender(s.signer, tx)
	if err != nil {
		return common.Hash{}, ExecutionResult{}, ErrInvalidSignature
	}

	// Check the gas price against the configured minimum.
	if tx.GasPrice().Cmp(s.minGasPrice) < 0 {
		return common.Hash{}, ExecutionResult{}, ErrGasPrice
	}

	// Mine a block with the transaction.
	return s.mineBlock(tx, from)
}

// mineBlock is the sole mutating operation on the ledger. The entire
// snapshot-execute-commit-store sequence runs under the write lock and is
// all-or-nothing: any execution failure discards the attempted block.
func (s *State) mineBlock(tx *types.Transaction, from common.Address) (common.Hash, ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A panic while mutating could leave readers observing a partially
	// updated ledger, so it is unrecoverable.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "state: mineBlock: unrecoverable: %v\n", r)
			os.Exit(1)
		}
	}()

	best := s.chain.LatestBlock()

	// A fresh confidential context is constructed per mined block, seeded
	// with the previous block's hash. The deferred deactivate zeroes its
	// secrets on both the success and the abort path.
	cctx := confidential.New(best.Hash, s.keyManager)
	defer cctx.Deactivate()

	// Only the most recent block hash is tracked as history. This is an
	// intentional limitation of the simulator, not a full 256-block window.
	number := best.Number + 1
	timestamp := uint64(time.Now().UTC().Unix())
	env := engine.EnvInfo{
		Number:     number,
		Timestamp:  timestamp,
		GasLimit:   s.blockGasLimit,
		LastHashes: []common.Hash{best.Hash},
	}

	// Execute the transaction against an overlay so a failed execution
	// leaves the canonical store untouched.
	overlay := mkvs.NewOverlay(s.chain.Store())
	executed, err := s.engine.Apply(env, overlay, tx, cctx)
	if err != nil {
		s.evHandler("state: mineBlock: execution failed: %s", err)
		return common.Hash{}, ExecutionResult{}, err
	}

	// Commit the state diff and capture the new root digest.
	overlay.Flush()
	root := s.chain.Store().Commit()

	// Create the block.
	logBloom := types.BytesToBloom(types.LogsBloom(executed.Logs))
	block := database.NewBlock(number, best.Hash, timestamp, executed.GasUsed, s.blockGasLimit, logBloom)

	// Localize and store the transaction. Blocks carry one transaction so
	// the index is always zero.
	txHash := tx.Hash()
	blockTx := database.NewBlockTx(tx, from, number, block.Hash)
	block.Transactions = []database.BlockTx{blockTx}

	// Localize the logs.
	for i, log := range executed.Logs {
		log.BlockNumber = number
		log.BlockHash = block.Hash
		log.TxHash = txHash
		log.TxIndex = 0
		log.Index = uint(i)
	}
	block.Logs = executed.Logs

	// Build the receipt, including the created contract address when the
	// transaction was a contract creation.
	receipt := types.Receipt{
		Type:              tx.Type(),
		Status:            executed.Status,
		CumulativeGasUsed: executed.GasUsed,
		Bloom:             logBloom,
		Logs:              executed.Logs,
		TxHash:            txHash,
		GasUsed:           executed.GasUsed,
		BlockHash:         block.Hash,
		BlockNumber:       new(big.Int).SetUint64(number),
		TransactionIndex:  0,
	}
	if executed.ContractAddress != nil {
		receipt.ContractAddress = *executed.ContractAddress
	}

	// Store the block and advance the best block pointer.
	s.chain.Append(block, blockTx, &receipt)

	result := ExecutionResult{
		CumulativeGasUsed: executed.GasUsed,
		GasUsed:           executed.GasUsed,
		LogBloom:          logBloom,
		Logs:              executed.Logs,
		StatusCode:        executed.Status,
		Output:            executed.Output,
	}

	s.evHandler("state: mineBlock: mined block %d containing transaction %s: gas used %d: root %s",
		number, txHash, executed.GasUsed, root)

	return txHash, result, nil
}
