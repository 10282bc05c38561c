// Package confidential implements the per-execution cryptographic context
// for confidential contracts. The context owns the encrypted session to the
// calling peer and the nonce state used to encrypt contract storage. It is
// constructed fresh for each mined block, mutated throughout the execution's
// call tree, and discarded with its secrets zeroed when the execution ends.
package confidential

import (
	"crypto/cipher"
	"errors"

	"github.com/cloakchain/gateway/foundation/chain/keymanager"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20poly1305"
)

// The confidential-state errors returned when an operation is invoked on a
// context missing the required material. Encryption never silently degrades
// to plaintext.
var (
	ErrNoSession = errors.New("confidential: must have key pair of a contract and peer and a next nonce")
	ErrNoCipher  = errors.New("confidential: must have an active contract to encrypt storage")
	ErrNoKeys    = errors.New("confidential: must have a contract key to open session payload")
	ErrTruncated = errors.New("confidential: truncated ciphertext")
)

// contract tracks the currently active contract and its key bundle.
type contract struct {
	address common.Address
	keys    keymanager.ContractKeys
}

// Ctx manages the confidential state for one execution: the encryption keys
// and nonces in use for a block. The contract pair may be swapped out and
// back to support cross-contract calls between confidential and
// non-confidential code for the same peer.
type Ctx struct {
	peerPublicKey    *[keymanager.KeySize]byte
	contract         *contract
	nextNonce        *Nonce
	activated        bool
	prevBlockHash    common.Hash
	storageCipher    cipher.AEAD
	nextStorageNonce *Nonce
	keyManager       keymanager.Client
}

// New constructs a Ctx seeded with the hash of the previous block, which
// anchors storage nonce derivation to this chain position.
func New(prevBlockHash common.Hash, keyManager keymanager.Client) *Ctx {
	return &Ctx{
		prevBlockHash: prevBlockHash,
		keyManager:    keyManager,
	}
}

// Activated reports whether a confidential contract has been executed at any
// point in the call hierarchy.
func (c *Ctx) Activated() bool {
	return c.activated
}

// IsEncrypting reports whether storage operations are currently encrypted.
// An activated context without a contract occurs when a confidential
// contract makes a cross-contract call into non-confidential code.
func (c *Ctx) IsEncrypting() bool {
	return c.activated && c.contract != nil
}

// Activate starts or switches the confidential context. A nil address is a
// cross-contract call into non-confidential code: the active contract is
// cleared. Otherwise the contract's key bundle is fetched (created on first
// use) and the storage cipher and nonce are derived. In both cases the
// previously active contract address is returned so the caller can restore
// it when the nested call returns.
func (c *Ctx) Activate(address *common.Address) (*common.Address, error) {
	c.activated = true

	if address == nil {
		return c.swapContract(nil), nil
	}

	var contractID keymanager.ContractID
	copy(contractID[:], crypto.Keccak256(address.Bytes()))

	keys, err := c.keyManager.GetOrCreateKeys(contractID)
	if err != nil {
		return nil, err
	}

	return c.swapContract(&contract{address: *address, keys: keys}), nil
}

// Deactivate returns the context to the inactive state, erasing all derived
// secrets. Key material is explicitly zeroed before the memory is released.
func (c *Ctx) Deactivate() {
	if c.contract != nil {
		zero(c.contract.keys.SecretKey[:])
		zero(c.contract.keys.StateKey[:])
	}

	c.peerPublicKey = nil
	c.contract = nil
	c.nextNonce = nil
	c.activated = false
	c.storageCipher = nil
	c.nextStorageNonce = nil
}

// Peer returns the currently established peer public key, or nil when no
// session has been opened.
func (c *Ctx) Peer() []byte {
	if c.peerPublicKey == nil {
		return nil
	}

	out := make([]byte, keymanager.KeySize)
	copy(out, c.peerPublicKey[:])

	return out
}

// EncryptSession authenticates-and-encrypts data to the established peer
// under the active contract's key pair and the current session nonce. The
// session nonce ratchets forward on success and is never reused.
func (c *Ctx) EncryptSession(data []byte) ([]byte, error) {
	if c.peerPublicKey == nil || c.contract == nil || c.nextNonce == nil {
		return nil, ErrNoSession
	}

	payload, err := SealSession(data, nil, *c.nextNonce, *c.peerPublicKey, c.contract.keys.PublicKey, c.contract.keys.SecretKey)
	if err != nil {
		return nil, err
	}

	if err := c.nextNonce.Increment(); err != nil {
		return nil, err
	}

	return payload, nil
}

// DecryptSession opens an inbound authenticated payload with the active
// contract's secret key. The sender's public key becomes the session peer
// and the nonce carried by the payload, plus one, becomes the next outgoing
// session nonce. This establishes the encrypted channel for the remainder
// of the execution.
func (c *Ctx) DecryptSession(payload []byte) (plaintext []byte, aad []byte, err error) {
	if c.contract == nil {
		return nil, nil, ErrNoKeys
	}

	plaintext, aad, peerPublic, nonce, err := OpenSession(payload, c.contract.keys.SecretKey)
	if err != nil {
		return nil, nil, err
	}

	c.peerPublicKey = &peerPublic

	if err := nonce.Increment(); err != nil {
		return nil, nil, err
	}
	c.nextNonce = &nonce

	return plaintext, aad, nil
}

// EncryptStorageKey encrypts a storage key with an all-zero nonce. The nonce
// reuse is intentional and scoped to this one purpose: encrypted keys must
// be deterministic so they remain lookup-stable across calls.
func (c *Ctx) EncryptStorageKey(data []byte) ([]byte, error) {
	if c.storageCipher == nil {
		return nil, ErrNoCipher
	}

	var nonce Nonce
	return c.storageCipher.Seal(nil, nonce[:], data, nil), nil
}

// EncryptStorageValue encrypts a storage value under the current storage
// nonce and appends the nonce to the ciphertext (ciphertext || tag || nonce)
// so the value is self-describing for later decryption. The storage nonce
// ratchets forward on success.
func (c *Ctx) EncryptStorageValue(data []byte) ([]byte, error) {
	if c.storageCipher == nil || c.nextStorageNonce == nil {
		return nil, ErrNoCipher
	}

	nonce := *c.nextStorageNonce
	ciphertext := c.storageCipher.Seal(nil, nonce[:], data, nil)
	ciphertext = append(ciphertext, nonce[:]...)

	if err := c.nextStorageNonce.Increment(); err != nil {
		return nil, err
	}

	return ciphertext, nil
}

// DecryptStorageValue splits the trailing nonce from the ciphertext and
// decrypts. Any previously written value can be opened regardless of the
// current storage nonce counter.
func (c *Ctx) DecryptStorageValue(data []byte) ([]byte, error) {
	if c.storageCipher == nil {
		return nil, ErrNoCipher
	}

	if len(data) < TagSize+NonceSize {
		return nil, ErrTruncated
	}

	nonceOffset := len(data) - NonceSize
	nonce := data[nonceOffset:]
	ciphertext := data[:nonceOffset]

	plaintext, err := c.storageCipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("confidential: invalid storage ciphertext")
	}

	return plaintext, nil
}

// =============================================================================

// swapContract replaces the active contract, deriving the storage cipher
// and the storage encryption nonce for the new contract:
//
//	storage nonce <- keccak(prev_block_hash || address)[:8] || 0x00000000
//
// The previously active contract address is returned.
func (c *Ctx) swapContract(next *contract) *common.Address {
	var previous *common.Address
	if c.contract != nil {
		address := c.contract.address
		previous = &address

		zero(c.contract.keys.SecretKey[:])
		zero(c.contract.keys.StateKey[:])
	}

	c.contract = next
	c.storageCipher = nil
	c.nextStorageNonce = nil

	if next == nil {
		return previous
	}

	key := make([]byte, chacha20poly1305.KeySize)
	copy(key, next.keys.StateKey[:])
	aead, err := chacha20poly1305.New(key)
	zero(key)
	if err != nil {
		// KeySize is fixed so construction cannot fail.
		panic(err)
	}
	c.storageCipher = aead

	hash := crypto.Keccak256(c.prevBlockHash.Bytes(), next.address.Bytes())

	var nonce Nonce
	copy(nonce[:NonceSeedSize], hash[:NonceSeedSize])
	c.nextStorageNonce = &nonce

	return previous
}
