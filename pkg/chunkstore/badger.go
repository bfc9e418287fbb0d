package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/shirou/gopsutil/disk"

	"github.com/i5heu/selfencrypt/pkg/logging"
)

// BadgerChunkStore is a persistent ChunkStore backed by dgraph-io/badger/v4,
// grounded on the teacher's internal/keyValStore package. Badger's own MVCC
// transactions satisfy the "concurrent Get/Put/Delete on distinct hashes
// must be safe" requirement without any additional locking here.
type BadgerChunkStore struct {
	db     *badger.DB
	path   string
	logger *slog.Logger
}

// BadgerOptions configures a BadgerChunkStore.
type BadgerOptions struct {
	// Path is the on-disk directory Badger will use.
	Path string

	// Logger receives Debug-level per-operation logs and Warn/Error logs
	// for failures. Defaults to a stderr tint handler when nil.
	Logger *slog.Logger
}

// OpenBadgerChunkStore opens (creating if necessary) a Badger-backed chunk
// store at opts.Path.
func OpenBadgerChunkStore(opts BadgerOptions) (*BadgerChunkStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open badger chunk store: path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("open badger chunk store: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	badgerOpts.ValueLogFileSize = 1024 * 1024 * 100
	badgerOpts.SyncWrites = false
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger chunk store: %w", err)
	}

	logger.Debug("opened badger chunk store", "path", opts.Path)
	return &BadgerChunkStore{db: db, path: opts.Path, logger: logger}, nil
}

// Get implements ChunkStore.
func (b *BadgerChunkStore) Get(_ context.Context, hash []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hash)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		b.logger.Error("badger get failed", "error", err)
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return value, nil
}

// Put implements ChunkStore.
func (b *BadgerChunkStore) Put(_ context.Context, hash []byte, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(hash); err == nil {
			return nil // already present, content addressing means identical
		}
		return txn.Set(hash, value)
	})
	if err != nil {
		b.logger.Error("badger put failed", "error", err)
		return fmt.Errorf("badger put: %w", err)
	}
	b.logger.Debug("stored chunk", "hash", fmt.Sprintf("%x", hash)[:16], "size", len(value))
	return nil
}

// Delete implements ChunkStore.
func (b *BadgerChunkStore) Delete(_ context.Context, hash []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(hash)
	})
	if err != nil {
		b.logger.Error("badger delete failed", "error", err)
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying Badger database, mirroring the
// teacher's Clean() method: sync, then a light value-log GC pass.
func (b *BadgerChunkStore) Close() error {
	if err := b.db.Sync(); err != nil {
		b.logger.Warn("badger sync failed during close", "error", err)
	}
	if err := b.db.RunValueLogGC(0.1); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		b.logger.Warn("badger value log gc failed during close", "error", err)
	}
	return b.db.Close()
}

// Stats reports free disk space on the store's base directory, mirroring
// the teacher's PrintSpaceLeftAndAllocatedFromDB.
type Stats struct {
	FreeBytes  uint64
	TotalBytes uint64
	UsedPct    float64
}

// Stats reports free disk space on the chunk store's base directory via
// gopsutil.
func (b *BadgerChunkStore) Stats() (Stats, error) {
	usage, err := disk.Usage(b.path)
	if err != nil {
		return Stats{}, fmt.Errorf("disk usage: %w", err)
	}
	return Stats{
		FreeBytes:  usage.Free,
		TotalBytes: usage.Total,
		UsedPct:    usage.UsedPercent,
	}, nil
}
