// Package keymanager provides access to the external key management service
// that owns the long-lived key bundles for confidential contracts.
package keymanager

import (
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of all keys issued by the key manager.
const KeySize = 32

// ContractID uniquely identifies a contract to the key manager. It is
// derived by hashing the contract address.
type ContractID [KeySize]byte

// ContractKeys is the long-lived key bundle for a single contract.
type ContractKeys struct {
	PublicKey [KeySize]byte // Curve25519 public key for session key agreement.
	SecretKey [KeySize]byte // Curve25519 secret key for session key agreement.
	StateKey  [KeySize]byte // Symmetric key protecting contract storage.
}

// Client represents the behavior required to be implemented by any package
// providing key management for confidential contracts.
type Client interface {
	GetOrCreateKeys(id ContractID) (ContractKeys, error)
}

// =============================================================================

// MockClient is an in-process key manager. Key bundles are created on first
// use and held for the life of the process. This stands in for the real
// key management service in the single-node gateway.
type MockClient struct {
	mu   sync.Mutex
	keys map[ContractID]ContractKeys
}

// NewMockClient constructs a MockClient for use.
func NewMockClient() *MockClient {
	return &MockClient{
		keys: make(map[ContractID]ContractKeys),
	}
}

// GetOrCreateKeys returns the key bundle for the specified contract,
// generating a fresh bundle if the contract has never been seen.
func (mc *MockClient) GetOrCreateKeys(id ContractID) (ContractKeys, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if keys, exists := mc.keys[id]; exists {
		return keys, nil
	}

	var keys ContractKeys
	if _, err := rand.Read(keys.SecretKey[:]); err != nil {
		return ContractKeys{}, fmt.Errorf("generating contract secret key: %w", err)
	}
	if _, err := rand.Read(keys.StateKey[:]); err != nil {
		return ContractKeys{}, fmt.Errorf("generating contract state key: %w", err)
	}

	public, err := curve25519.X25519(keys.SecretKey[:], curve25519.Basepoint)
	if err != nil {
		return ContractKeys{}, fmt.Errorf("deriving contract public key: %w", err)
	}
	copy(keys.PublicKey[:], public)

	mc.keys[id] = keys

	return keys, nil
}
