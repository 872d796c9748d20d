// Package sharding maps account identifiers into a fixed, totally ordered
// shard-key space and partitions that space into contiguous ranges, one per
// settlement worker.
//
// The key space is the set of 16-character lowercase-hex strings, i.e. the
// hex rendering of a uint64. Lexicographic order over these fixed-width
// strings coincides with numeric order, so store-level range scans over the
// string index partition exactly.
package sharding

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"sort"
)

// KeyWidth is the width of a shard key in hex characters.
const KeyWidth = 16

// RangeEndSentinel is the exclusive upper bound of the final shard range.
// "g" sorts after every 16-character hex string, so a half-open scan
// [start, "g") covers the tail of the key space.
const RangeEndSentinel = "g"

// Key derives the shard key for an account id: the first 8 bytes of
// SHA-256(accountID) rendered as fixed-width hex. Deterministic and uniform;
// every transaction an account owns carries the same key.
func Key(accountID string) string {
	sum := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(sum[:8])
}

// Range returns the half-open interval [start, end) of shard i out of n.
// Ranges are contiguous, disjoint, and cover the whole key space. The final
// shard's end is RangeEndSentinel.
func Range(i, n int) (start, end string, err error) {
	if n < 1 {
		return "", "", fmt.Errorf("shard count must be >= 1, got %d", n)
	}
	if i < 0 || i >= n {
		return "", "", fmt.Errorf("shard index %d out of range [0,%d)", i, n)
	}
	start = formatBoundary(boundary(uint64(i), uint64(n)))
	if i == n-1 {
		return start, RangeEndSentinel, nil
	}
	return start, formatBoundary(boundary(uint64(i+1), uint64(n))), nil
}

// IndexFor returns the index of the shard whose range contains
// Key(accountID). Membership is derived from the same boundaries Range uses,
// so Key(a) falls inside Range(IndexFor(a, n), n) by construction.
func IndexFor(accountID string, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("shard count must be >= 1, got %d", n)
	}
	raw, err := hex.DecodeString(Key(accountID))
	if err != nil {
		return 0, err
	}
	h := binary.BigEndian.Uint64(raw)
	// Smallest i with h < boundary(i+1).
	i := sort.Search(n-1, func(i int) bool {
		return h < boundary(uint64(i+1), uint64(n))
	})
	return i, nil
}

// boundary computes floor(i * 2^64 / n) without overflowing, via 128-bit
// division: the dividend i*2^64 is (hi=i, lo=0). Requires i < n so the
// quotient fits in a uint64.
func boundary(i, n uint64) uint64 {
	if i == 0 {
		return 0
	}
	q, _ := bits.Div64(i, 0, n)
	return q
}

func formatBoundary(b uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b)
	return hex.EncodeToString(buf[:])
}
