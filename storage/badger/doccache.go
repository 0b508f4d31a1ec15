package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/curio/storage"
)

const docPrefix = "doc"

// DefaultTTL is how long a cached document stays valid. Origin pages change
// rarely, so a week avoids re-fetching across consecutive harvest runs.
const DefaultTTL = 7 * 24 * time.Hour

// DocumentCache is a BadgerDB-backed implementation of
// storage.DocumentCache. Entries expire through Badger's native TTL.
type DocumentCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.DocumentCache = (*DocumentCache)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenDocumentCache opens a BadgerDB document cache at the specified path.
// Creates the directory if it doesn't exist. A non-positive ttl falls back
// to DefaultTTL.
func OpenDocumentCache(filePath string, inMemory bool, ttl time.Duration) (*DocumentCache, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "doccache")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &DocumentCache{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// makeDocKey generates the cache key for an object id.
func makeDocKey(objectID int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", docPrefix, objectID))
}

// GetDocument retrieves the cached document for an object id.
func (c *DocumentCache) GetDocument(objectID int64) (*storage.CachedDocument, error) {
	var doc *storage.CachedDocument

	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocKey(objectID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalCachedDocument(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PutDocument stores a fetched document for an object id with the cache TTL.
func (c *DocumentCache) PutDocument(objectID int64, doc *storage.CachedDocument) error {
	data := storage.MarshalCachedDocument(doc)

	return c.db.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeDocKey(objectID), data).WithTTL(c.ttl)
		return tx.SetEntry(entry)
	})
}

// Close closes the underlying BadgerDB database.
func (c *DocumentCache) Close() error {
	return c.db.Close()
}
