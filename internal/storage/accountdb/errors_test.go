package accountdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreErrorMessage(t *testing.T) {
	err := NewQueryError("get_account", "scan failed", errors.New("bad column"))

	assert.Contains(t, err.Error(), "get_account")
	assert.Contains(t, err.Error(), "scan failed")
	assert.Contains(t, err.Error(), "bad column")
	assert.Equal(t, ErrorTypeQuery, err.Type)
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewConnectionError("open_store", "could not connect", cause)

	assert.ErrorIs(t, err, cause)
}

func TestNotFoundSentinels(t *testing.T) {
	tests := []struct {
		kind     string
		sentinel error
	}{
		{"account", ErrAccountNotFound},
		{"deposit", ErrDepositNotFound},
		{"transaction", ErrTransactionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			err := NewNotFoundError("get", tt.kind, "id-1")
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsNotFound(err))
			assert.False(t, IsUniqueViolation(err))
		})
	}
}

func TestNotFoundSentinelsDoNotCross(t *testing.T) {
	err := NewNotFoundError("get", "account", "id-1")
	assert.NotErrorIs(t, err, ErrDepositNotFound)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
}

func TestUniqueViolation(t *testing.T) {
	err := NewUniqueViolationError("insert_account", "username already exists", nil)

	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsConstraintError(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestWrappedSentinelSurvivesFmtErrorf(t *testing.T) {
	err := fmt.Errorf("signup: %w", NewNotFoundError("get_by_username", "account", "alice"))

	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewConnectionError("ping", "refused", nil)))
	assert.False(t, IsRetryable(NewDataError("get", "corrupt record", nil)))
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryable(errors.New("syntax error")))
	assert.False(t, IsRetryable(nil))
}

func TestWrapErrorClassifies(t *testing.T) {
	err := WrapError(errors.New("pq: connection refused"), "insert_deposit")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, ErrorTypeConnection, storeErr.Type)
	assert.Equal(t, "insert_deposit", storeErr.Operation)
	assert.True(t, storeErr.Retryable)
}

func TestWrapErrorPreservesStoreError(t *testing.T) {
	original := NewNotFoundError("get_by_id", "transaction", "tx-9")
	err := WrapError(original, "settle_one")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "settle_one", storeErr.Operation)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "noop"))
}
