package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/account"
	"github.com/LeJamon/goCustodyd/internal/core/credential"
	"github.com/LeJamon/goCustodyd/internal/core/deposit"
	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/settlement"
)

// RPC method names served by the daemon.
const (
	MethodSignUp            = "sign_up"
	MethodLogIn             = "log_in"
	MethodAccountInfo       = "account_info"
	MethodAccountTx         = "account_tx"
	MethodSubmitDeposit     = "submit_deposit"
	MethodAppendTransaction = "append_transaction"
	MethodServerInfo        = "server_info"

	// MethodSettleTransaction is registered only when the server runs with
	// admin methods enabled.
	MethodSettleTransaction = "settle_transaction"
)

// Services groups the domain services the RPC methods dispatch into.
type Services struct {
	Credentials *credential.Service
	Accounts    *account.Service
	Ingestor    *deposit.Ingestor
	Settlement  *settlement.Engine

	// Health reports store reachability for server_info. Optional.
	Health HealthChecker

	// Descriptive fields surfaced by server_info.
	Backend    string
	Version    string
	ShardIndex int
	ShardCount int
}

// Methods implements the daemon's JSON-RPC method set.
type Methods struct {
	services Services
	registry *Registry
	started  time.Time
}

// NewMethods creates the method set over the given services.
func NewMethods(services Services) *Methods {
	return &Methods{services: services, started: time.Now()}
}

// Register binds every method into the registry. The settle_transaction
// method is administrative and is only exposed when admin is true.
func (m *Methods) Register(registry *Registry, admin bool) {
	m.registry = registry

	registry.Register(MethodSignUp, m.SignUp)
	registry.Register(MethodLogIn, m.LogIn)
	registry.Register(MethodAccountInfo, m.AccountInfo)
	registry.Register(MethodAccountTx, m.AccountTx)
	registry.Register(MethodSubmitDeposit, m.SubmitDeposit)
	registry.Register(MethodAppendTransaction, m.AppendTransaction)
	registry.Register(MethodServerInfo, m.ServerInfo)

	if admin {
		registry.Register(MethodSettleTransaction, m.SettleTransaction)
	}
}

// amountArg accepts an amount as either a JSON string or a bare number;
// upstream observers send both forms.
type amountArg string

func (a *amountArg) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountArg(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountArg(n.String())
	return nil
}

func decodeParams(params json.RawMessage, v interface{}) *Error {
	if len(params) == 0 {
		return errInvalidParams("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return errInvalidParams("invalid params: " + err.Error())
	}
	return nil
}

// SignUp creates an account from a username and password. The response
// carries the stored record, including the allocated deposit wallet address.
func (m *Methods) SignUp(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	creds := &ledger.Account{Username: p.Username, Password: p.Password}
	if err := m.services.Credentials.Signup(ctx, creds); err != nil {
		return nil, errInternal(err)
	}

	return map[string]interface{}{"account": creds}, nil
}

// LogIn verifies a username/password pair and returns the account record.
func (m *Methods) LogIn(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	acct, err := m.services.Credentials.VerifyLogin(ctx, p.Username, p.Password)
	if err != nil {
		return nil, errInternal(err)
	}

	return map[string]interface{}{"account": acct}, nil
}

// AccountInfo returns the account record together with its authoritative
// balance: the balance of the newest settled, non-canceled transaction.
func (m *Methods) AccountInfo(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Account string `json:"account"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	info, err := m.services.Accounts.GetInfo(ctx, p.Account)
	if err != nil {
		return nil, errInternal(err)
	}
	return info, nil
}

// AccountTx returns the account's ledger transactions ordered by
// (createdDate, id) ascending.
func (m *Methods) AccountTx(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Account string `json:"account"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	txns, err := m.services.Accounts.Transactions(ctx, p.Account)
	if err != nil {
		return nil, errInternal(err)
	}
	if txns == nil {
		txns = []*ledger.Transaction{}
	}

	return map[string]interface{}{
		"account":      p.Account,
		"transactions": txns,
	}, nil
}

// SubmitDeposit feeds one observed blockchain transaction to the ingestor.
// Transactions from addresses that are not deposit wallets are acknowledged
// as ignored.
func (m *Methods) SubmitDeposit(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		ID       string    `json:"id"`
		SenderID string    `json:"senderId"`
		Height   uint64    `json:"height"`
		Amount   amountArg `json:"amount"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	dep, txn, err := m.services.Ingestor.Ingest(ctx, ledger.BlockchainTransaction{
		ID:       p.ID,
		SenderID: p.SenderID,
		Height:   p.Height,
		Amount:   string(p.Amount),
	})
	if err != nil {
		return nil, errInternal(err)
	}
	if dep == nil {
		return map[string]interface{}{"ignored": true}, nil
	}

	return map[string]interface{}{
		"deposit":     dep,
		"transaction": txn,
	}, nil
}

// AppendTransaction appends a credit, debit, or withdrawal row for an
// account through the canonical exec path. The row starts unsettled; the
// settlement engine folds it into the balance on a later tick.
func (m *Methods) AppendTransaction(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Account string    `json:"account"`
		Type    string    `json:"type"`
		Amount  amountArg `json:"amount"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	txn, err := m.services.Accounts.ExecTransaction(ctx, p.Account, ledger.TransactionType(p.Type), string(p.Amount))
	if err != nil {
		return nil, errInternal(err)
	}

	return map[string]interface{}{"transaction": txn}, nil
}

// ServerInfo reports daemon identity, store health, the settlement shard
// assignment, and the available methods.
func (m *Methods) ServerInfo(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	healthy := true
	if m.services.Health != nil {
		healthy = m.services.Health.HealthCheck(ctx) == nil
	}

	var methods []string
	if m.registry != nil {
		methods = m.registry.Methods()
	}

	return map[string]interface{}{
		"name":           "custodyd",
		"version":        m.services.Version,
		"uptime_seconds": int64(time.Since(m.started).Seconds()),
		"store": map[string]interface{}{
			"backend": m.services.Backend,
			"healthy": healthy,
		},
		"settlement": map[string]interface{}{
			"enabled":    m.services.ShardIndex >= 0,
			"shardIndex": m.services.ShardIndex,
			"shardCount": m.services.ShardCount,
		},
		"methods": methods,
	}, nil
}

// SettleTransaction marks one transaction settled without folding a balance.
// Administrative repair surface.
func (m *Methods) SettleTransaction(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p struct {
		Transaction string `json:"transaction"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := m.services.Settlement.SettleOne(ctx, p.Transaction); err != nil {
		return nil, errInternal(err)
	}

	return map[string]interface{}{
		"transaction": p.Transaction,
		"settled":     true,
	}, nil
}
