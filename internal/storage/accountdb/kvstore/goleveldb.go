package kvstore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelEngine implements Engine on syndtr/goleveldb.
type levelEngine struct {
	db   *leveldb.DB
	open int64
}

// openGoLevelDB opens (creating if missing) a goleveldb database at path.
func openGoLevelDB(path string) (Engine, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open goleveldb at %s: %w", path, err)
	}

	e := &levelEngine{db: db}
	atomic.StoreInt64(&e.open, 1)
	return e, nil
}

func (e *levelEngine) isOpen() bool {
	return atomic.LoadInt64(&e.open) != 0
}

func (e *levelEngine) Get(key []byte) ([]byte, error) {
	if !e.isOpen() {
		return nil, ErrEngineClosed
	}

	value, err := e.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

func (e *levelEngine) Set(key, value []byte) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}
	return e.db.Put(key, value, nil)
}

func (e *levelEngine) Delete(key []byte) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}
	return e.db.Delete(key, nil)
}

func (e *levelEngine) Batch(ops []BatchOperation) error {
	if !e.isOpen() {
		return ErrEngineClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			batch.Put(op.Key, op.Value)
		case BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	return e.db.Write(batch, nil)
}

func (e *levelEngine) NewIterator(start, end []byte) (Iterator, error) {
	if !e.isOpen() {
		return nil, ErrEngineClosed
	}

	iter := e.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &levelIterator{iter: iter}, nil
}

func (e *levelEngine) Close() error {
	if !atomic.CompareAndSwapInt64(&e.open, 1, 0) {
		return nil // Already closed
	}
	return e.db.Close()
}

// levelIterator wraps goleveldb's iterator, which already matches the
// Next-then-read contract.
type levelIterator struct {
	iter iterator.Iterator
}

func (it *levelIterator) Next() bool    { return it.iter.Next() }
func (it *levelIterator) Key() []byte   { return it.iter.Key() }
func (it *levelIterator) Value() []byte { return it.iter.Value() }
func (it *levelIterator) Error() error  { return it.iter.Error() }

func (it *levelIterator) Close() error {
	it.iter.Release()
	return nil
}
