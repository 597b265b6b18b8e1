package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/log"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

const (
	resultKeyPrefix = "result:"
	resultDBDir     = "results_db" // Subdirectory suffix within the store dir
)

// BadgerStore implements ResultStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64
}

// NewBadgerStore opens the result database for the crawl labelled label under
// storeDir. reset removes any previous database first. An empty storeDir
// opens an in-memory database.
func NewBadgerStore(storeDir, label string, reset bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	var opts badger.Options
	if storeDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		logger.Debug("Opening in-memory result database")
	} else {
		dbPath := filepath.Join(storeDir, utils.SanitizeFilename(label)+"_"+resultDBDir)
		if reset {
			if err := os.RemoveAll(dbPath); err != nil {
				logger.Errorf("Failed to remove existing result directory %s: %v", dbPath, err)
			}
		}
		if err := os.MkdirAll(dbPath, 0o755); err != nil {
			return nil, fmt.Errorf("%w: cannot create result directory %s: %w", utils.ErrFilesystem, dbPath, err)
		}
		opts = badger.DefaultOptions(dbPath)
		logger.Infof("Opening result database at: %s (reset: %v)", dbPath, reset)
	}
	opts = opts.WithLogger(log.NewBadgerLogrusAdapter(logger)).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger database: %w", utils.ErrDatabase, err)
	}
	store.db = db

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing result keys: %v", err)
	}
	store.keyCount.Store(int64(count))
	return store, nil
}

func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(resultKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on badger.ErrConflict, which concurrent
// transactions on the same key can raise.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// PutResult implements ResultWriter
func (s *BadgerStore) PutResult(url string, entry *models.ResultDBEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry for %s", utils.ErrDatabase, url)
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: JSON encoding result for %s: %w", utils.ErrParsing, url, err)
	}

	key := []byte(resultKeyPrefix + url)
	added := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			added = true
		case errGet != nil:
			return errGet
		}
		return txn.Set(key, val)
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in PutResult: %v", err)
		return fmt.Errorf("%w: writing result key '%s': %w", utils.ErrDatabase, key, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return nil
}

// GetResult implements ResultReader
func (s *BadgerStore) GetResult(url string) (models.ResultStatus, *models.ResultDBEntry, error) {
	key := []byte(resultKeyPrefix + url)
	var entry *models.ResultDBEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting result key '%s': %w", utils.ErrDatabase, key, errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.ResultDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				return fmt.Errorf("%w: JSON decoding result '%s': %w", utils.ErrParsing, key, errJSON)
			}
			entry = &decoded
			return nil
		})
	})
	if err != nil {
		return models.ResultStatusUnset, nil, err
	}
	if entry == nil {
		return models.ResultStatusUnset, nil, nil
	}
	return entry.Status, entry, nil
}

// ForEach implements ResultReader
func (s *BadgerStore) ForEach(ctx context.Context, fn func(url string, entry models.ResultDBEntry) error) error {
	prefix := []byte(resultKeyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			url := string(item.Key()[len(prefix):])
			var entry models.ResultDBEntry
			errValue := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if errValue != nil {
				s.log.Warnf("Skipping unreadable result for '%s': %v", url, errValue)
				continue
			}
			if err := fn(url, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count implements ResultReader
func (s *BadgerStore) Count() int {
	return int(s.keyCount.Load())
}

// WriteResultLog implements ResultStore. Each line is
// status, depth, error category and URL separated by tabs.
func (s *BadgerStore) WriteResultLog(ctx context.Context, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create result log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	written := 0
	iterErr := s.ForEach(ctx, func(url string, entry models.ResultDBEntry) error {
		errType := entry.ErrorType
		if errType == "" {
			errType = "-"
		}
		if _, err := fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n", entry.Status, entry.Depth, errType, url); err != nil {
			return err
		}
		written++
		return nil
	})
	if err := writer.Flush(); err != nil && iterErr == nil {
		iterErr = err
	}
	if err := file.Sync(); err != nil && iterErr == nil {
		iterErr = err
	}
	if iterErr != nil {
		s.log.Warnf("Finished writing result log with errors. Wrote %d entries to %s", written, filePath)
		if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
			return iterErr
		}
		return fmt.Errorf("%w: writing result log '%s': %w", utils.ErrFilesystem, filePath, iterErr)
	}
	s.log.Infof("Wrote %d results to %s", written, filePath)
	return nil
}

// RunGC runs value log garbage collection every interval until ctx is done
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db.IsClosed() {
				return
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements ResultStore. Closing twice is a no-op.
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing result DB: %v", err)
		return fmt.Errorf("%w: closing: %w", utils.ErrDatabase, err)
	}
	return nil
}
