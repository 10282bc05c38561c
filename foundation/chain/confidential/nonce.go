package confidential

import "errors"

// NonceSize is the size of an AEAD nonce in bytes.
const NonceSize = 12

// NonceSeedSize is the number of hash bytes used when deriving a storage
// nonce. The remaining bytes form a zero-initialized counter.
const NonceSeedSize = 8

// Nonce is a ratcheting AEAD nonce. A nonce must never repeat for a given
// key, so after each use it is incremented deterministically.
type Nonce [NonceSize]byte

// Increment advances the nonce by one. The nonce is treated as a big-endian
// counter. An overflow of the entire nonce space is an error since continuing
// would reuse the zero nonce.
func (n *Nonce) Increment() error {
	for i := NonceSize - 1; i >= 0; i-- {
		n[i]++
		if n[i] != 0 {
			return nil
		}
	}

	return errors.New("confidential: nonce overflowed")
}
