package state

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// defaultSimulatorWorkers is the number of goroutines servicing simulation
// requests when the configuration doesn't specify one.
const defaultSimulatorWorkers = 4

// simulator runs read-only transaction executions on a dedicated bounded
// pool so slow simulations never block mining or queries.
type simulator struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// newSimulator starts the specified number of worker goroutines.
func newSimulator(workers int) *simulator {
	sim := simulator{
		tasks: make(chan func()),
	}

	sim.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer sim.wg.Done()
			for task := range sim.tasks {
				task()
			}
		}()
	}

	return &sim
}

// shutdown stops accepting work and waits for in-flight simulations.
func (sim *simulator) shutdown() {
	close(sim.tasks)
	sim.wg.Wait()
}

// run executes the task on the pool and blocks until it completes.
func (sim *simulator) run(task func()) {
	done := make(chan struct{})

	sim.tasks <- func() {
		defer close(done)
		task()
	}

	<-done
}

// SimulateTransaction executes the transaction against a snapshot of the
// state at the identified block without mining it. Confidential mechanisms
// are not engaged, so callers see plaintext results.
func (s *State) SimulateTransaction(tx *types.Transaction, id database.BlockID) (*engine.Executed, error) {
	s.mu.RLock()
	block, exists := id.Resolve(s.chain)
	if !exists {
		s.mu.RUnlock()
		return nil, ErrBlockNotFound
	}
	store := s.chain.Store().Snapshot()
	s.mu.RUnlock()

	env := engine.EnvInfo{
		Number:     block.Number + 1,
		Timestamp:  uint64(time.Now().UTC().Unix()),
		GasLimit:   math.MaxUint64,
		LastHashes: []common.Hash{block.Hash},
	}

	var exec *engine.Executed
	var err error

	s.simulator.run(func() {
		exec, err = s.engine.Simulate(env, store, tx)
	})

	return exec, err
}

// EstimateGas simulates the transaction and returns the gas it would
// consume, including any gas the execution would refund. A reverted or
// out-of-gas execution is reported in the event log but still produces an
// estimate.
func (s *State) EstimateGas(tx *types.Transaction, id database.BlockID) (uint64, error) {
	exec, err := s.SimulateTransaction(tx, id)
	if err != nil {
		return 0, err
	}

	switch {
	case errors.Is(exec.Exception, engine.ErrReverted):
		s.evHandler("state: estimate gas: transaction reverted")
	case errors.Is(exec.Exception, engine.ErrOutOfGas):
		s.evHandler("state: estimate gas: transaction ran out of gas")
	}

	return exec.GasUsed + exec.Refunded, nil
}
