// Package kvstore implements the account store on an embedded key-value
// engine (pebble or goleveldb). Rows are msgpack-encoded and optionally
// compressed; secondary indexes are composite keys whose lexicographic
// order makes the settlement shard scan a plain range iteration.
package kvstore

import (
	"errors"
)

var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("kv engine is closed")

	// ErrKeyNotFound is returned when a key doesn't exist in the engine.
	ErrKeyNotFound = errors.New("key not found")
)

// Engine defines the basic operations any embedded key-value backend must
// support.
type Engine interface {
	// Get returns the value stored at key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Batch applies all operations atomically.
	Batch(ops []BatchOperation) error

	// NewIterator iterates keys in [start, end) in ascending order.
	NewIterator(start, end []byte) (Iterator, error)

	Close() error
}

// Iterator allows traversing engine entries. Key and Value are valid until
// the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)
