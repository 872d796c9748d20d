package kvstore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// pebbleEngine implements Engine on cockroachdb/pebble.
type pebbleEngine struct {
	db   *pebble.DB
	open int64
}

// openPebble opens (creating if missing) a pebble database at path.
func openPebble(path string, cacheSize int64) (Engine, error) {
	opts := &pebble.Options{}
	if cacheSize > 0 {
		cache := pebble.NewCache(cacheSize)
		defer cache.Unref()
		opts.Cache = cache
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}

	e := &pebbleEngine{db: db}
	atomic.StoreInt64(&e.open, 1)
	return e, nil
}

func (e *pebbleEngine) isOpen() bool {
	return atomic.LoadInt64(&e.open) != 0
}

func (e *pebbleEngine) Get(key []byte) ([]byte, error) {
	if !e.isOpen() {
		return nil, ErrEngineClosed
	}

	value, closer, err := e.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// The slice is only valid until closer.Close.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (e *pebbleEngine) Set(key, value []byte) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}
	return e.db.Set(key, value, pebble.NoSync)
}

func (e *pebbleEngine) Delete(key []byte) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}
	return e.db.Delete(key, pebble.NoSync)
}

func (e *pebbleEngine) Batch(ops []BatchOperation) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}

	batch := e.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		var err error
		switch op.Type {
		case BatchPut:
			err = batch.Set(op.Key, op.Value, nil)
		case BatchDelete:
			err = batch.Delete(op.Key, nil)
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
		if err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}

func (e *pebbleEngine) NewIterator(start, end []byte) (Iterator, error) {
	if !e.isOpen() {
		return nil, ErrEngineClosed
	}

	iter, err := e.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}

	return &pebbleIterator{iter: iter}, nil
}

func (e *pebbleEngine) Close() error {
	if !atomic.CompareAndSwapInt64(&e.open, 1, 0) {
		return nil // Already closed
	}

	if err := e.db.Flush(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}

// pebbleIterator adapts pebble's positioned iterator to the Engine contract:
// the first Next seeks to the lower bound, subsequent calls advance.
type pebbleIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (it *pebbleIterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte   { return it.iter.Key() }
func (it *pebbleIterator) Value() []byte { return it.iter.Value() }
func (it *pebbleIterator) Error() error  { return it.iter.Error() }
func (it *pebbleIterator) Close() error  { return it.iter.Close() }
