package operation

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/storage"
)

// insert stores the encoded entity under a key that must not exist yet,
// otherwise it fails with storage.ErrAlreadyExists.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var exists bool
		if err := check(key, &exists)(tx); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("key %x: %w", key, storage.ErrAlreadyExists)
		}
		return upsert(key, entity)(tx)
	}
}

// upsert stores the encoded entity under the key, replacing any previous value.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}
		if err := tx.Set(key, val); err != nil {
			return fmt.Errorf("could not store value: %w", err)
		}
		return nil
	}
}

// check sets exists to whether an entry with the key exists.
func check(key []byte, exists *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*exists = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check existence: %w", err)
		}
		*exists = true
		return nil
	}
}

// retrieve decodes the value under the key into the entity, which must be a
// pointer. It fails with storage.ErrNotFound if the key does not exist.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}

		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode entity: %w", err)
		}
		return nil
	}
}

// keysWithPrefix calls handle with the remainder of every key that starts
// with the prefix, in key order. Values are not loaded.
func keysWithPrefix(prefix []byte, handle func(suffix []byte)) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			handle(bytes.TrimPrefix(key, prefix))
		}
		return nil
	}
}
