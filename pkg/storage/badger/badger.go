// Package badger keeps the submission ledger in an embedded badger store.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/pkg/storage"
)

const (
	defaultDir = "./data/ledger"
	submissionPrefix = "submission:"
)

type repository struct {
	db *badger.DB
}

func NewRepository(dir string) (storage.SubmissionRepository, error) {
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrDBConnection, err)
	}

	return &repository{db: db}, nil
}

func (r *repository) Save(_ context.Context, s storage.Submission) error {
	if s.WeightsAddress == "" {
		return pkgerrors.ErrEmptyKey
	}

	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(s.Key()), val)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCreate, err)
	}

	return nil
}

func (r *repository) Get(_ context.Context, modelID uint64, weightsAddress string) (storage.Submission, error) {
	if weightsAddress == "" {
		return storage.Submission{}, pkgerrors.ErrEmptyKey
	}

	var val []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(storage.SubmissionKey(modelID, weightsAddress)))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.Submission{}, pkgerrors.ErrNotFound
		}

		return storage.Submission{}, fmt.Errorf("%w: %w", storage.ErrDBQuery, err)
	}

	var s storage.Submission
	if err := json.Unmarshal(val, &s); err != nil {
		return storage.Submission{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return s, nil
}

func (r *repository) List(_ context.Context, offset, limit uint64) (storage.SubmissionPage, error) {
	page := storage.SubmissionPage{
		Offset: offset,
		Limit:  limit,
	}
	prefix := []byte(submissionPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = int(max(min(limit, 100), 1))
		it := txn.NewIterator(opts)
		defer it.Close()

		var idx uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if idx >= offset && idx < offset+limit {
				val, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				var s storage.Submission
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("unmarshal error: %w", err)
				}
				page.Submissions = append(page.Submissions, s)
			}
			idx++
		}
		page.Total = idx

		return nil
	})
	if err != nil {
		return storage.SubmissionPage{}, fmt.Errorf("%w: %w", storage.ErrDBQuery, err)
	}

	return page, nil
}

func (r *repository) Close() error {
	return r.db.Close()
}
