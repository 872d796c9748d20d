package ledger

import (
	"errors"
	"math/big"
	"strings"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
)

// ParseAmount parses a decimal amount string into a big integer. Amounts are
// non-negative base-10 integers of arbitrary precision; fractions, exponents,
// non-digit characters, and negative values are rejected. Floating point is
// never involved.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	if n.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return n, nil
}

// NormalizeAmount converts an externally supplied amount (integer or decimal
// string) to its canonical decimal string form: no sign, no leading zeros.
func NormalizeAmount(s string) (string, error) {
	n, err := ParseAmount(s)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// FormatAmount renders a big integer as a canonical decimal string. A nil
// value formats as "0".
func FormatAmount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
