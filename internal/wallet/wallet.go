// Package wallet generates and allocates the per-account deposit wallets at
// which inbound on-chain funds are received.
package wallet

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/LeJamon/goCustodyd/internal/crypto"
)

// ErrGeneration is returned when wallet key material could not be produced.
var ErrGeneration = errors.New("failed to generate wallet")

// Wallet is one allocated deposit wallet. Address is what the blockchain
// observer reports as a sender id; the key material is held in custody for
// sweeping.
type Wallet struct {
	Address    string `json:"address"`
	Passphrase string `json:"passphrase"`
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// Generator yields fresh wallets. Implementations do not check address
// uniqueness; that is the Allocator's job.
type Generator interface {
	Generate(ctx context.Context) (*Wallet, error)
}

// LocalGenerator derives wallets from locally generated secp256k1 keys.
// The address is hex(RIPEMD160(SHA256(compressed public key))), the same
// double-hash construction bitcoin-family chains use for theirs.
type LocalGenerator struct{}

var _ Generator = (*LocalGenerator)(nil)

// NewLocalGenerator creates a local secp256k1 wallet generator.
func NewLocalGenerator() *LocalGenerator {
	return &LocalGenerator{}
}

func (g *LocalGenerator) Generate(ctx context.Context) (*Wallet, error) {
	seed, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, ErrGeneration
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(seed)
	if privKey == nil {
		return nil, ErrGeneration
	}

	compressed := pubKey.SerializeCompressed()

	passphrase, err := crypto.RandomHex(16)
	if err != nil {
		return nil, ErrGeneration
	}

	return &Wallet{
		Address:    hex.EncodeToString(crypto.Hash160(compressed)),
		Passphrase: passphrase,
		PrivateKey: hex.EncodeToString(privKey.Serialize()),
		PublicKey:  hex.EncodeToString(compressed),
	}, nil
}
