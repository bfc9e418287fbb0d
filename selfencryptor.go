// Package selfencrypt implements a convergent self-encryption engine: it
// takes an arbitrary byte stream and produces (a) a small DataMap
// describing the original content and (b) a set of content-addressed
// encrypted chunks persisted in a pluggable ChunkStore. Identical input
// always produces identical chunks, allowing cross-caller deduplication
// without revealing plaintext to the store.
package selfencrypt

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/i5heu/selfencrypt/internal/bytepool"
	"github.com/i5heu/selfencrypt/internal/sequencer"
	"github.com/i5heu/selfencrypt/pkg/chunkstore"
	"github.com/i5heu/selfencrypt/pkg/logging"
	"github.com/i5heu/selfencrypt/pkg/model"
	workerpool "github.com/i5heu/selfencrypt/pkg/workerPool"
)

// Default tuning constants, matching the source's defaults.
const (
	DefaultChunkSize    = 1 << 20 // 1 MiB
	DefaultMinChunkSize = 1 << 10 // 1 KiB
)

// Config tunes a SelfEncryptor. The zero value is valid: ChunkSize and
// MinChunkSize fall back to the defaults above, NumProcs is detected via
// runtime.NumCPU, and Logger falls back to logging.Default().
type Config struct {
	// ChunkSize is C, the default (non-final) chunk size in bytes.
	ChunkSize uint64

	// MinChunkSize is Cmin, the minimum chunk size in bytes.
	MinChunkSize uint64

	// NumProcs scales the worker pool used by ProcessMainQueue and
	// ReadDataMapChunks (three workers per proc) and sizes the main encrypt
	// queue and read cache. 0 means detect via runtime.NumCPU.
	NumProcs int

	// Logger receives Debug-level per-chunk encrypt/decrypt logs. Errors
	// are returned to the caller, not logged.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.NumProcs <= 0 {
		c.NumProcs = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// SelfEncryptor is a random-access Write/Read/Truncate/Flush state machine
// over a single DataMap and ChunkStore. It is single-owner: concurrent
// public calls on one instance are not supported, matching the
// shared-resource policy. The ChunkStore itself must be safe for
// concurrent use by multiple SelfEncryptor instances.
type SelfEncryptor struct {
	mu sync.Mutex

	cfg   Config
	store chunkstore.ChunkStore
	pool  *workerpool.Pool
	bytes bytepool.Pool

	dataMap *model.DataMap

	fileSize          uint64
	currentPosition   uint64
	normalChunkSize   uint64
	lastChunkPosition uint64

	chunk0Raw []byte
	chunk1Raw []byte

	chunk0Modified bool
	chunk1Modified bool

	mainQueue          []byte
	queueStartPosition uint64

	// staleHashes accumulates the hashes of chunks that existed before the
	// current writing session started (captured by prepareToWrite) and
	// have not reappeared in the rebuilt chunk list by the time Flush
	// completes. It is the mechanism behind both ordinary rewrite cleanup
	// and Truncate's "delete chunks beyond the truncation point": since
	// this engine always rebuilds the chunk list from scratch on Flush
	// (see prepare.go), a stale hash is simply one that didn't make it
	// into the new list.
	staleHashes [][]byte

	// prehashMu serializes lazy computation of chunk 0/1's pre-hash
	// (ensurePreHash), which is reached from every worker in a parallel
	// encryptRange/processMainQueue batch whenever a chunk's neighbour
	// wraps around to index 0 or 1.
	prehashMu sync.Mutex

	seq sequencer.Sequencer

	preparedForWriting bool
	preparedForReading bool

	readCache          []byte
	cacheStartPosition uint64

	runCtx context.Context
}

// New constructs a SelfEncryptor over an existing (possibly empty) data
// map. The data map is not mutated until the first Write or Truncate.
func New(dataMap *model.DataMap, store chunkstore.ChunkStore, cfg Config) (*SelfEncryptor, error) {
	if store == nil {
		return nil, fmt.Errorf("selfencrypt: chunk store is required")
	}
	if dataMap == nil {
		dataMap = &model.DataMap{}
	}
	cfg = cfg.withDefaults()

	e := &SelfEncryptor{
		cfg:     cfg,
		store:   store,
		pool:    workerpool.New(workerpool.Config{WorkerCount: cfg.NumProcs * 3}),
		dataMap: dataMap,
		runCtx:  context.Background(),
	}

	e.fileSize = currentDataMapSize(dataMap)
	e.normalChunkSize, e.lastChunkPosition = calculateSizes(e.fileSize, cfg.ChunkSize, cfg.MinChunkSize)
	e.currentPosition = 0
	e.queueStartPosition = 2 * cfg.ChunkSize

	return e, nil
}

// currentDataMapSize recomputes the logical file size described by an
// existing data map: either the inline content length, or the sum of all
// chunk sizes.
func currentDataMapSize(dm *model.DataMap) uint64 {
	if dm.IsTiny() {
		return uint64(len(dm.Content))
	}
	var total uint64
	for _, c := range dm.Chunks {
		total += uint64(c.Size)
	}
	return total
}

// DataMap returns the engine's current data map. The returned value is
// only the canonical, serializable state once Flush has returned
// successfully; reading it beforehand may miss in-flight writes.
func (e *SelfEncryptor) DataMap() *model.DataMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dataMap
}

// Size returns the engine's current logical file size.
func (e *SelfEncryptor) Size() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fileSize
}

// Close flushes any pending writes and reports the result. Unlike the
// source, which swallows a destructor-triggered Flush error, this engine
// has no implicit destructor-driven flush: callers must call Close, and
// its error return is not optional to ignore.
func (e *SelfEncryptor) Close() error {
	ok, err := e.Flush()
	if err != nil {
		return fmt.Errorf("selfencrypt: close: %w", err)
	}
	if !ok {
		return fmt.Errorf("selfencrypt: close: flush reported failure")
	}
	return nil
}

func (e *SelfEncryptor) ctx() context.Context {
	return e.runCtx
}
