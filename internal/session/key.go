package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// Iterations is the PBKDF2 round count for deriving the
// session-signing key from hardware identity.
const Iterations = 100_000

// keyLength matches the SHA-256 output size used for HMAC signing.
const keyLength = sha256.Size

// deriveKey implements PBKDF2-HMAC-SHA256 (RFC 8018 §5.2) directly
// over crypto/hmac and crypto/sha256. The algorithm is a handful of
// HMAC calls, so it is written out here rather than pulling in a
// dependency for it.
func deriveKey(password, salt []byte, iterations, keyLen int) []byte {
	prf := hmac.New(sha256.New, password)
	hashLen := prf.Size()
	numBlocks := (keyLen + hashLen - 1) / hashLen

	derived := make([]byte, 0, numBlocks*hashLen)
	for block := 1; block <= numBlocks; block++ {
		derived = append(derived, pbkdf2Block(prf, salt, iterations, uint32(block))...)
	}
	return derived[:keyLen]
}

func pbkdf2Block(prf hash.Hash, salt []byte, iterations int, blockIndex uint32) []byte {
	prf.Reset()
	prf.Write(salt)
	prf.Write([]byte{
		byte(blockIndex >> 24),
		byte(blockIndex >> 16),
		byte(blockIndex >> 8),
		byte(blockIndex),
	})
	u := prf.Sum(nil)
	result := make([]byte, len(u))
	copy(result, u)

	for i := 1; i < iterations; i++ {
		prf.Reset()
		prf.Write(u)
		u = prf.Sum(nil)
		for j := range result {
			result[j] ^= u[j]
		}
	}
	return result
}

// signingSalt is fixed: the key is already bound to per-machine
// hardware identity, so the salt only needs to separate this
// derivation from any other use of the same password, not add
// per-installation entropy.
var signingSalt = []byte("lockin-session-signing-key-v1")

// deriveSigningKey derives the HMAC key for session signatures from
// the machine's hardware UUID.
func deriveSigningKey(hardwareUUID string) []byte {
	return deriveKey([]byte(hardwareUUID), signingSalt, Iterations, keyLength)
}
