package confidential_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/cloakchain/gateway/foundation/chain/confidential"
	"github.com/cloakchain/gateway/foundation/chain/keymanager"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/curve25519"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// peerKeyPair generates a curve25519 key pair standing in for the client
// talking to a confidential contract.
func peerKeyPair(t *testing.T) (public [keymanager.KeySize]byte, secret [keymanager.KeySize]byte) {
	t.Helper()

	if _, err := rand.Read(secret[:]); err != nil {
		t.Fatalf("\t%s\tShould be able to generate a peer secret key: %v", failed, err)
	}

	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive a peer public key: %v", failed, err)
	}
	copy(public[:], pub)

	return public, secret
}

// activate constructs a context and activates the specified contract.
func activate(t *testing.T, prevBlockHash common.Hash, address common.Address) *confidential.Ctx {
	t.Helper()

	ctx := confidential.New(prevBlockHash, keymanager.NewMockClient())
	if _, err := ctx.Activate(&address); err != nil {
		t.Fatalf("\t%s\tShould be able to activate the contract: %v", failed, err)
	}

	return ctx
}

func Test_Activation(t *testing.T) {
	contractA := common.HexToAddress("0x1100000000000000000000000000000000000011")
	contractB := common.HexToAddress("0x2200000000000000000000000000000000000022")

	t.Log("Given the need to manage the confidential contract life cycle.")
	{
		t.Logf("\tTest 0:\tWhen activating and swapping contracts.")
		{
			ctx := confidential.New(common.Hash{}, keymanager.NewMockClient())

			if ctx.Activated() {
				t.Fatalf("\t%s\tTest 0:\tShould start inactive.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould start inactive.", success)

			previous, err := ctx.Activate(&contractA)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to activate the first contract: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to activate the first contract.", success)

			if previous != nil {
				t.Fatalf("\t%s\tTest 0:\tShould have no previous contract on first activation, got %s.", failed, previous)
			}
			t.Logf("\t%s\tTest 0:\tShould have no previous contract on first activation.", success)

			if !ctx.Activated() || !ctx.IsEncrypting() {
				t.Fatalf("\t%s\tTest 0:\tShould be activated and encrypting.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be activated and encrypting.", success)

			previous, err = ctx.Activate(&contractB)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to swap to a second contract: %v", failed, err)
			}
			if previous == nil || *previous != contractA {
				t.Fatalf("\t%s\tTest 0:\tShould get the first contract back from the swap, got %v.", failed, previous)
			}
			t.Logf("\t%s\tTest 0:\tShould get the first contract back from the swap.", success)

			previous, err = ctx.Activate(nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to cross call into non confidential code: %v", failed, err)
			}
			if previous == nil || *previous != contractB {
				t.Fatalf("\t%s\tTest 0:\tShould get the second contract back from the cross call, got %v.", failed, previous)
			}
			t.Logf("\t%s\tTest 0:\tShould get the second contract back from the cross call.", success)

			if !ctx.Activated() || ctx.IsEncrypting() {
				t.Fatalf("\t%s\tTest 0:\tShould remain activated but stop encrypting.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould remain activated but stop encrypting.", success)

			ctx.Deactivate()
			if ctx.Activated() || ctx.IsEncrypting() {
				t.Fatalf("\t%s\tTest 0:\tShould be fully inactive after deactivation.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be fully inactive after deactivation.", success)
		}
	}
}

func Test_StorageEncryption(t *testing.T) {
	contract := common.HexToAddress("0x1100000000000000000000000000000000000011")
	prevBlockHash := common.HexToHash("0xaa00000000000000000000000000000000000000000000000000000000000000")

	t.Log("Given the need to encrypt contract storage.")
	{
		t.Logf("\tTest 0:\tWhen encrypting and decrypting a storage value.")
		{
			ctx := activate(t, prevBlockHash, contract)
			defer ctx.Deactivate()

			value := []byte("the storage value")

			ciphertext, err := ctx.EncryptStorageValue(value)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encrypt a storage value: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to encrypt a storage value.", success)

			if len(ciphertext) != len(value)+confidential.TagSize+confidential.NonceSize {
				t.Fatalf("\t%s\tTest 0:\tShould produce ciphertext, tag, and trailing nonce: got %d bytes.", failed, len(ciphertext))
			}
			t.Logf("\t%s\tTest 0:\tShould produce ciphertext, tag, and trailing nonce.", success)

			plaintext, err := ctx.DecryptStorageValue(ciphertext)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decrypt the storage value: %v", failed, err)
			}
			if !bytes.Equal(plaintext, value) {
				t.Fatalf("\t%s\tTest 0:\tShould round trip the storage value: got %q.", failed, plaintext)
			}
			t.Logf("\t%s\tTest 0:\tShould round trip the storage value.", success)
		}

		t.Logf("\tTest 1:\tWhen encrypting the same value twice.")
		{
			ctx := activate(t, prevBlockHash, contract)
			defer ctx.Deactivate()

			value := []byte("repeat")

			first, err := ctx.EncryptStorageValue(value)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encrypt: %v", failed, err)
			}
			second, err := ctx.EncryptStorageValue(value)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encrypt again: %v", failed, err)
			}

			if bytes.Equal(first, second) {
				t.Fatalf("\t%s\tTest 1:\tShould produce distinct ciphertexts as the nonce ratchets.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould produce distinct ciphertexts as the nonce ratchets.", success)

			firstNonce := first[len(first)-confidential.NonceSize:]
			secondNonce := second[len(second)-confidential.NonceSize:]
			if bytes.Equal(firstNonce, secondNonce) {
				t.Fatalf("\t%s\tTest 1:\tShould advance the storage nonce after each value.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould advance the storage nonce after each value.", success)
		}

		t.Logf("\tTest 2:\tWhen encrypting storage keys.")
		{
			ctx := activate(t, prevBlockHash, contract)
			defer ctx.Deactivate()

			key := []byte("the storage key")

			first, err := ctx.EncryptStorageKey(key)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to encrypt a storage key: %v", failed, err)
			}
			second, err := ctx.EncryptStorageKey(key)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to encrypt the key again: %v", failed, err)
			}

			if !bytes.Equal(first, second) {
				t.Fatalf("\t%s\tTest 2:\tShould encrypt keys deterministically for stable lookups.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould encrypt keys deterministically for stable lookups.", success)
		}

		t.Logf("\tTest 3:\tWhen handling invalid storage ciphertext.")
		{
			ctx := activate(t, prevBlockHash, contract)
			defer ctx.Deactivate()

			short := make([]byte, confidential.TagSize+confidential.NonceSize-1)
			if _, err := ctx.DecryptStorageValue(short); !errors.Is(err, confidential.ErrTruncated) {
				t.Fatalf("\t%s\tTest 3:\tShould reject ciphertext shorter than tag and nonce: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould reject ciphertext shorter than tag and nonce.", success)

			value, err := ctx.EncryptStorageValue([]byte("tamper me"))
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to encrypt: %v", failed, err)
			}
			value[0] ^= 0xff
			if _, err := ctx.DecryptStorageValue(value); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject tampered ciphertext.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould reject tampered ciphertext.", success)
		}

		t.Logf("\tTest 4:\tWhen no contract is active.")
		{
			ctx := confidential.New(prevBlockHash, keymanager.NewMockClient())

			if _, err := ctx.EncryptStorageValue([]byte("data")); !errors.Is(err, confidential.ErrNoCipher) {
				t.Fatalf("\t%s\tTest 4:\tShould refuse to encrypt without a cipher: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould refuse to encrypt without a cipher.", success)

			if _, err := ctx.EncryptStorageKey([]byte("key")); !errors.Is(err, confidential.ErrNoCipher) {
				t.Fatalf("\t%s\tTest 4:\tShould refuse to encrypt a key without a cipher: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould refuse to encrypt a key without a cipher.", success)
		}
	}
}

func Test_Session(t *testing.T) {
	contract := common.HexToAddress("0x1100000000000000000000000000000000000011")
	prevBlockHash := common.HexToHash("0xbb00000000000000000000000000000000000000000000000000000000000000")

	t.Log("Given the need to establish an encrypted session with a peer.")
	{
		t.Logf("\tTest 0:\tWhen a peer opens a session and the contract replies.")
		{
			km := keymanager.NewMockClient()

			ctx := confidential.New(prevBlockHash, km)
			if _, err := ctx.Activate(&contract); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to activate the contract: %v", failed, err)
			}
			defer ctx.Deactivate()

			// The peer needs the contract's public key to seal the request.
			var contractID keymanager.ContractID
			copy(contractID[:], crypto.Keccak256(contract.Bytes()))
			contractKeys, err := km.GetOrCreateKeys(contractID)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to look up the contract keys: %v", failed, err)
			}

			peerPublic, peerSecret := peerKeyPair(t)

			request := []byte("increment counter")
			var nonce confidential.Nonce
			payload, err := confidential.SealSession(request, []byte("aad"), nonce, contractKeys.PublicKey, peerPublic, peerSecret)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to seal the peer request: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to seal the peer request.", success)

			plaintext, aad, err := ctx.DecryptSession(payload)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to open the session payload: %v", failed, err)
			}
			if !bytes.Equal(plaintext, request) || !bytes.Equal(aad, []byte("aad")) {
				t.Fatalf("\t%s\tTest 0:\tShould recover the request and associated data.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould recover the request and associated data.", success)

			if !bytes.Equal(ctx.Peer(), peerPublic[:]) {
				t.Fatalf("\t%s\tTest 0:\tShould learn the peer public key from the payload.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould learn the peer public key from the payload.", success)

			response := []byte("counter is 1")
			sealed, err := ctx.EncryptSession(response)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to seal the response: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to seal the response.", success)

			opened, _, senderPublic, replyNonce, err := confidential.OpenSession(sealed, peerSecret)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould let the peer open the response: %v", failed, err)
			}
			if !bytes.Equal(opened, response) {
				t.Fatalf("\t%s\tTest 0:\tShould round trip the response: got %q.", failed, opened)
			}
			t.Logf("\t%s\tTest 0:\tShould round trip the response.", success)

			if senderPublic != contractKeys.PublicKey {
				t.Fatalf("\t%s\tTest 0:\tShould carry the contract public key on the response.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould carry the contract public key on the response.", success)

			// The peer sealed with nonce 0, so the contract must reply with
			// nonce 1.
			var want confidential.Nonce
			want.Increment()
			if replyNonce != want {
				t.Fatalf("\t%s\tTest 0:\tShould reply with the request nonce plus one: got %x.", failed, replyNonce)
			}
			t.Logf("\t%s\tTest 0:\tShould reply with the request nonce plus one.", success)
		}

		t.Logf("\tTest 1:\tWhen no session has been established.")
		{
			ctx := activate(t, prevBlockHash, contract)
			defer ctx.Deactivate()

			if _, err := ctx.EncryptSession([]byte("data")); !errors.Is(err, confidential.ErrNoSession) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to encrypt without a peer: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to encrypt without a peer.", success)

			inactive := confidential.New(prevBlockHash, keymanager.NewMockClient())
			if _, _, err := inactive.DecryptSession([]byte("payload")); !errors.Is(err, confidential.ErrNoKeys) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to decrypt without contract keys: got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to decrypt without contract keys.", success)
		}
	}
}

func Test_NonceIncrement(t *testing.T) {
	t.Log("Given the need to ratchet nonces without reuse.")
	{
		t.Logf("\tTest 0:\tWhen incrementing a nonce.")
		{
			var n confidential.Nonce
			if err := n.Increment(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to increment the zero nonce: %v", failed, err)
			}
			if n[confidential.NonceSize-1] != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould increment the low order byte: got %x.", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould increment the low order byte.", success)

			var carry confidential.Nonce
			carry[confidential.NonceSize-1] = 0xff
			if err := carry.Increment(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to carry: %v", failed, err)
			}
			if carry[confidential.NonceSize-1] != 0 || carry[confidential.NonceSize-2] != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould carry into the next byte: got %x.", failed, carry)
			}
			t.Logf("\t%s\tTest 0:\tShould carry into the next byte.", success)

			var overflow confidential.Nonce
			for i := range overflow {
				overflow[i] = 0xff
			}
			if err := overflow.Increment(); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould report overflow of the whole nonce space.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report overflow of the whole nonce space.", success)
		}
	}
}
