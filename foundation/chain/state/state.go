// Package state is the core API for the gateway chain and implements all
// the business rules and processing: validating and mining incoming
// transactions, answering read queries, and running gas simulations.
package state

import (
	"math/big"
	"sync"

	"github.com/cloakchain/gateway/foundation/chain/database"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/cloakchain/gateway/foundation/chain/genesis"
	"github.com/cloakchain/gateway/foundation/chain/keymanager"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventHandler defines a function that is called when events occur in the
// processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the chain.
type Config struct {
	Genesis          genesis.Genesis
	Engine           engine.Engine
	KeyManager       keymanager.Client
	SimulatorWorkers int
	EvHandler        EventHandler
}

// State manages the chain ledger. The ledger is shared multiple-reader /
// single-writer: mining holds the write lock for its entire
// validate-execute-commit-store sequence, read queries hold the read lock
// only long enough to copy a snapshot.
type State struct {
	genesis       genesis.Genesis
	engine        engine.Engine
	keyManager    keymanager.Client
	evHandler     EventHandler
	minGasPrice   *big.Int
	blockGasLimit uint64
	signer        types.Signer

	mu    sync.RWMutex
	chain *database.ChainState

	simulator *simulator
}

// New constructs the chain state with genesis pre-loaded.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Seed the store with the genesis account state before the ledger
	// starts tracking blocks.
	store := mkvs.NewMemory()
	if err := cfg.Engine.InitGenesis(store, cfg.Genesis); err != nil {
		return nil, err
	}
	store.Commit()

	workers := cfg.SimulatorWorkers
	if workers <= 0 {
		workers = defaultSimulatorWorkers
	}

	s := State{
		genesis:       cfg.Genesis,
		engine:        cfg.Engine,
		keyManager:    cfg.KeyManager,
		evHandler:     ev,
		minGasPrice:   new(big.Int).SetUint64(cfg.Genesis.MinGasPrice),
		blockGasLimit: cfg.Genesis.BlockGasLimit,
		signer:        types.LatestSignerForChainID(new(big.Int).SetUint64(cfg.Genesis.ChainID)),
		chain:         database.New(cfg.Genesis, store),
		simulator:     newSimulator(workers),
	}

	return &s, nil
}

// Shutdown cleanly brings the chain down, stopping the simulation workers.
func (s *State) Shutdown() error {
	s.simulator.shutdown()
	return nil
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// GasPrice returns the minimum gas price a transaction must offer.
func (s *State) GasPrice() *big.Int {
	return new(big.Int).Set(s.minGasPrice)
}
