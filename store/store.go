// Package store keeps navigation envelopes in an embedded BadgerDB, keyed by
// name, as an alternative to one file per envelope.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/o0olele/quadnav/builder"
)

const keyPrefix = "envelope/"

var (
	ErrNotFound   = errors.New("store: envelope not found")
	ErrInvalidKey = errors.New("store: invalid key")
	ErrNoPath     = errors.New("store: path is required for persistent database")
)

// Config holds configuration for the envelope store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is set.
	Path string `yaml:"path"`

	// InMemory keeps everything in RAM.
	InMemory bool `yaml:"in_memory"`

	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is how often value log GC runs. 0 disables it.
	GCInterval time.Duration `yaml:"gc_interval"`

	GCDiscardRatio float64 `yaml:"gc_discard_ratio"`

	// Logger receives BadgerDB's own logs. Nil silences them.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a BadgerDB of encoded envelopes. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens the store described by cfg, creating the directory if needed.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrNoPath
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite only means nothing was worth collecting
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("store value log GC failed", slog.String("error", err.Error()))
			}
		}
	}
}

func dbKey(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	return []byte(keyPrefix + key), nil
}

// Put encodes env and stores it under key, replacing any previous value.
func (s *Store) Put(key string, env *builder.Envelope) error {
	k, err := dbKey(key)
	if err != nil {
		return err
	}
	data, err := builder.Encode(env)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("failed to put envelope %q: %w", key, err)
	}
	return nil
}

// Get returns the envelope under key if it was built with expectedHash.
// A different hash gives (nil, false, nil), as builder.Load does. A missing
// key gives ErrNotFound.
func (s *Store) Get(key string, expectedHash uint64) (*builder.Envelope, bool, error) {
	k, err := dbKey(key)
	if err != nil {
		return nil, false, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get envelope %q: %w", key, err)
	}
	return builder.Decode(data, expectedHash)
}

// Hash returns the source hash recorded in the header of the envelope
// under key, without decoding it.
func (s *Store) Hash(key string) (uint64, error) {
	k, err := dbKey(key)
	if err != nil {
		return 0, err
	}

	var header builder.FileHeader
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			header, err = builder.ReadHeader(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return 0, err
	}
	return header.Hash, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	k, err := dbKey(key)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if err != nil {
		return fmt.Errorf("failed to delete envelope %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in byte order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	return keys, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
		s.stopCh = nil
	}
	return s.db.Close()
}
