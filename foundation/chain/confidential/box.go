package confidential

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cloakchain/gateway/foundation/chain/keymanager"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// TagSize is the size of the AEAD authentication tag in bytes.
const TagSize = chacha20poly1305.Overhead

// sessionInfo is the HKDF info label binding derived session keys to this
// protocol.
var sessionInfo = []byte("cloakchain/session/v1")

// Session payload wire format:
//
//	sender public key (32) || nonce (12) || aad length (2, big endian) || aad || ciphertext+tag
const sessionHeaderSize = keymanager.KeySize + NonceSize + 2

// SealSession authenticates-and-encrypts data from the holder of ourSecret
// to peerPublic under the given nonce. The sender's public key, the nonce
// and the associated data travel with the payload so the receiving side can
// open it without prior state.
func SealSession(data []byte, aad []byte, nonce Nonce, peerPublic [keymanager.KeySize]byte, ourPublic [keymanager.KeySize]byte, ourSecret [keymanager.KeySize]byte) ([]byte, error) {
	if len(aad) > 0xffff {
		return nil, errors.New("confidential: associated data too large")
	}

	aead, err := sessionAEAD(ourSecret, peerPublic)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, sessionHeaderSize+len(aad)+len(data)+TagSize)
	payload = append(payload, ourPublic[:]...)
	payload = append(payload, nonce[:]...)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(aad)))
	payload = append(payload, aad...)

	return aead.Seal(payload, nonce[:], data, aad), nil
}

// OpenSession opens an inbound session payload using our secret key,
// recovering the sender's public key, the nonce the sender used, the
// plaintext and any associated authenticated data.
func OpenSession(payload []byte, ourSecret [keymanager.KeySize]byte) (plaintext []byte, aad []byte, peerPublic [keymanager.KeySize]byte, nonce Nonce, err error) {
	if len(payload) < sessionHeaderSize+TagSize {
		return nil, nil, peerPublic, nonce, errors.New("confidential: truncated session payload")
	}

	copy(peerPublic[:], payload[:keymanager.KeySize])
	copy(nonce[:], payload[keymanager.KeySize:keymanager.KeySize+NonceSize])
	aadLen := int(binary.BigEndian.Uint16(payload[keymanager.KeySize+NonceSize : sessionHeaderSize]))

	if len(payload) < sessionHeaderSize+aadLen+TagSize {
		return nil, nil, peerPublic, nonce, errors.New("confidential: truncated session payload")
	}
	aad = payload[sessionHeaderSize : sessionHeaderSize+aadLen]
	ciphertext := payload[sessionHeaderSize+aadLen:]

	aead, err := sessionAEAD(ourSecret, peerPublic)
	if err != nil {
		return nil, nil, peerPublic, nonce, err
	}

	plaintext, err = aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, nil, peerPublic, nonce, errors.New("confidential: invalid nonce or public key")
	}

	return plaintext, aad, peerPublic, nonce, nil
}

// sessionAEAD performs the X25519 key agreement between the two parties and
// derives the symmetric session cipher from the shared secret. The derived
// key material is zeroed once the cipher holds its own copy.
func sessionAEAD(ourSecret [keymanager.KeySize]byte, peerPublic [keymanager.KeySize]byte) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(ourSecret[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("confidential: key agreement: %w", err)
	}
	defer zero(shared)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, sessionInfo), key); err != nil {
		return nil, fmt.Errorf("confidential: session key derivation: %w", err)
	}
	defer zero(key)

	return chacha20poly1305.New(key)
}

// zero overwrites the slice with zeros so secret material does not linger
// in memory after release.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
