package mkvs

import (
	"sort"
	"sync"

	"github.com/cloakchain/gateway/foundation/chain/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Memory represents an in-memory implementation of the MKVS interface. There
// is no durability beyond the life of the process.
type Memory struct {
	mu    sync.RWMutex
	pairs map[string][]byte
}

// NewMemory constructs a Memory store for use.
func NewMemory() *Memory {
	return &Memory{
		pairs: make(map[string][]byte),
	}
}

// Get returns the value stored under the specified key or nil when the key
// is not present.
func (m *Memory) Get(key []byte) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.pairs[string(key)]
	if !exists {
		return nil
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out
}

// Insert stores the value under the specified key.
func (m *Memory) Insert(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.pairs[string(key)] = v
}

// Remove deletes the key from the store.
func (m *Memory) Remove(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pairs, string(key))
}

// Commit computes the merkle root digest binding the current contents of
// the store.
func (m *Memory) Commit() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.pairs) == 0 {
		return types.EmptyRootHash
	}

	// A deterministic root requires the pairs in a stable order.
	pairs := make([]pair, 0, len(m.pairs))
	for k, v := range m.pairs {
		pairs = append(pairs, pair{key: k, value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	tree, err := merkle.NewTree(pairs)
	if err != nil {
		return common.Hash{}
	}

	return common.BytesToHash(tree.MerkleRoot)
}

// Snapshot makes a deep copy of the store. Readers and simulations work
// against a snapshot so they never observe a partially-mutated state.
func (m *Memory) Snapshot() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pairs := make(map[string][]byte, len(m.pairs))
	for k, v := range m.pairs {
		value := make([]byte, len(v))
		copy(value, v)
		pairs[k] = value
	}

	return &Memory{pairs: pairs}
}

// =============================================================================

// pair implements the merkle Hashable interface so the store contents can
// form the leaves of the root digest tree.
type pair struct {
	key   string
	value []byte
}

// Hash returns a unique hash for the pair.
func (p pair) Hash() ([]byte, error) {
	return crypto.Keccak256([]byte(p.key), p.value), nil
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two pairs. Keys are unique within a store.
func (p pair) Equals(other pair) bool {
	return p.key == other.key
}
