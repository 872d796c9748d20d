package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// Hash160Size is the size of a Hash160 digest in bytes.
const Hash160Size = 20

// SaltedHash computes the stored form of a password: the hex encoding of
// SHA-256 over the password concatenated with the hex-encoded salt. The salt
// participates in its hex string form, not as raw bytes, so hashes stay
// comparable with records written by earlier versions of the service.
func SaltedHash(password, saltHex string) string {
	sum := sha256.Sum256([]byte(password + saltHex))
	return hex.EncodeToString(sum[:])
}

// Hash160 computes RIPEMD160(SHA256(data)), the 160-bit digest bitcoin-family
// chains derive addresses from.
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)

	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}
