// Package ledger defines the persistent entities of the account core:
// accounts, deposits, and ledger transactions, plus the canonical
// representation of monetary amounts.
package ledger

import (
	"time"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeCredit     TransactionType = "credit"
	TypeDebit      TransactionType = "debit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether t is one of the four known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeCredit, TypeDebit, TypeWithdrawal:
		return true
	}
	return false
}

// Sign returns +1 for balance-increasing types (deposit, credit) and -1 for
// balance-decreasing types (debit, withdrawal). Unknown types return 0.
func (t TransactionType) Sign() int {
	switch t {
	case TypeDeposit, TypeCredit:
		return 1
	case TypeDebit, TypeWithdrawal:
		return -1
	}
	return 0
}

// Account is a custodial user account. Username and DepositWalletAddress are
// unique across all accounts. An inactive account cannot log in but its
// ledger still settles.
type Account struct {
	ID                      string    `json:"id"`
	Username                string    `json:"username"`
	Password                string    `json:"-"` // hex SHA-256 over password || salt
	PasswordSalt            string    `json:"-"` // 32 random bytes, hex
	Active                  bool      `json:"active"`
	CreatedDate             time.Time `json:"createdDate"`
	DepositWalletAddress    string    `json:"depositWalletAddress"`
	DepositWalletPassphrase string    `json:"-"`
	DepositWalletPrivateKey string    `json:"-"`
	DepositWalletPublicKey  string    `json:"depositWalletPublicKey,omitempty"`
}

// Deposit records an observed on-chain credit. Its ID equals the originating
// blockchain transaction id and is the idempotency key: inserting the same
// deposit twice must fail with a unique violation.
//
// For every Deposit there must exist a Transaction with ID =
// Deposit.TransactionID; a Deposit without one is a recoverable
// inconsistency repaired by the ingestor.
type Deposit struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	TransactionID string    `json:"transactionId"`
	Height        uint64    `json:"height"`
	CreatedDate   time.Time `json:"createdDate"`
}

// Transaction is a ledger event. Amount and Balance are arbitrary-precision
// integers carried as canonical decimal strings; Balance is the running
// balance after this transaction was applied and is meaningful only when
// Settled.
//
// At rest, at most one settled transaction per account retains
// SettlementShardKey: the newest one. Older settled rows have the key
// cleared by settlement's prune phase.
type Transaction struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"accountId"`
	Type               TransactionType `json:"type"`
	Amount             string          `json:"amount"`
	CreatedDate        time.Time       `json:"createdDate"`
	Settled            bool            `json:"settled"`
	SettledDate        time.Time       `json:"settledDate,omitzero"`
	Balance            string          `json:"balance,omitempty"`
	Canceled           bool            `json:"canceled"`
	SettlementShardKey string          `json:"settlementShardKey,omitempty"`
}

// BlockchainTransaction is the observer-supplied input shape. SenderID is
// matched against Account.DepositWalletAddress to find the crediting
// account. Amount arrives as an integer or a decimal string and is
// normalized before storage.
type BlockchainTransaction struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Height   uint64 `json:"height"`
	Amount   string `json:"amount"`
}
