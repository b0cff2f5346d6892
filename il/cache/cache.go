// Package cache holds the analysed tokens of every known file.
//
// A SymbolCache is sharded by path hash; each shard has its own lock, so
// updates to different paths never contend on a shared lock. An update
// reads, analyses and then swaps the entry in one step, so readers see
// either the previous token list or the new one in full.
package cache

import (
	"context"
	"os"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/logger"
)

// DefaultShards is used when no shard count is configured
const DefaultShards = 32

// Reader reads a file's contents
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(path string) ([]byte, error)

func (f ReaderFunc) ReadFile(path string) ([]byte, error) {
	return f(path)
}

// OSReader reads from the local file system
var OSReader Reader = ReaderFunc(os.ReadFile)

// Analyzer turns source text into tokens and diagnostics
type Analyzer interface {
	Analyze(src string) analysis.Result
}

// Entry is the cached state of one file
type Entry struct {
	Path    string
	Tokens  []analysis.Token
	Columns analysis.ColumnMap
	// Fingerprint is the xxhash of the analysed contents
	Fingerprint uint64
	// Version increases with every store across the whole cache
	Version   uint64
	UpdatedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// SymbolCache maps file paths to their token lists
type SymbolCache struct {
	shards []*shard
	reader Reader
	logger *zap.SugaredLogger

	analyzerMu sync.RWMutex
	analyzer   Analyzer

	version atomic.Uint64
}

// Option configures a SymbolCache
type Option func(*SymbolCache)

// WithReader replaces the file system reader
func WithReader(r Reader) Option {
	return func(c *SymbolCache) { c.reader = r }
}

// WithLogger sets the cache logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *SymbolCache) { c.logger = l }
}

// WithShards sets the number of shards; values below one are ignored
func WithShards(n int) Option {
	return func(c *SymbolCache) {
		if n > 0 {
			c.shards = newShards(n)
		}
	}
}

// New creates an empty cache that analyses files with analyzer
func New(analyzer Analyzer, opts ...Option) *SymbolCache {
	c := &SymbolCache{
		shards:   newShards(DefaultShards),
		reader:   OSReader,
		analyzer: analyzer,
		logger:   logger.ComponentLogger("il.cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return shards
}

func (c *SymbolCache) shardIndex(path string) int {
	return int(xxhash.Sum64String(path) % uint64(len(c.shards)))
}

func (c *SymbolCache) shardFor(path string) *shard {
	return c.shards[c.shardIndex(path)]
}

// Update reads path, analyses it and replaces the cached entry.
//
// A read failure evicts any previous entry and returns an error marked
// errors.ErrUnreadable, so callers can tell an empty file from one that
// could not be read.
func (c *SymbolCache) Update(ctx context.Context, path string) (analysis.Result, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Result{}, errors.Wrapf(err, "update %s", path)
	}

	data, err := c.reader.ReadFile(path)
	if err != nil {
		c.Evict(path)
		return analysis.Result{}, errors.WrapUnreadable(err, path)
	}
	return c.UpdateSource(ctx, path, data), nil
}

// UpdateSource analyses data as the contents of path and replaces the entry
func (c *SymbolCache) UpdateSource(ctx context.Context, path string, data []byte) analysis.Result {
	start := time.Now()
	res := c.Analyzer().Analyze(string(data))

	entry := &Entry{
		Path:        path,
		Tokens:      slices.Clone(res.Tokens),
		Columns:     res.Columns,
		Fingerprint: xxhash.Sum64(data),
		Version:     c.version.Add(1),
		UpdatedAt:   time.Now(),
	}

	s := c.shardFor(path)
	s.mu.Lock()
	prev := s.entries[path]
	s.entries[path] = entry
	s.mu.Unlock()

	logger.FromContext(ctx, c.logger).Debugw("Updated file",
		logger.FieldPath, path,
		logger.FieldSize, len(data),
		logger.FieldTokens, len(res.Tokens),
		logger.FieldDiags, len(res.Diagnostics),
		logger.FieldFingerprint, entry.Fingerprint,
		logger.FieldVersion, entry.Version,
		logger.FieldShard, c.shardIndex(path),
		"unchanged", prev != nil && prev.Fingerprint == entry.Fingerprint,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return res
}

// Analyzer returns the analyzer used by subsequent updates
func (c *SymbolCache) Analyzer() Analyzer {
	c.analyzerMu.RLock()
	defer c.analyzerMu.RUnlock()
	return c.analyzer
}

// SetAnalyzer swaps the analyzer. Cached entries keep their tokens until
// the next update of their path.
func (c *SymbolCache) SetAnalyzer(a Analyzer) {
	c.analyzerMu.Lock()
	c.analyzer = a
	c.analyzerMu.Unlock()
}

// Lookup returns a copy of the cached tokens for path
func (c *SymbolCache) Lookup(path string) ([]analysis.Token, bool) {
	s := c.shardFor(path)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.Tokens), true
}

// Contains reports whether path has been analysed
func (c *SymbolCache) Contains(path string) bool {
	s := c.shardFor(path)
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[path]
	return ok
}

// Entry returns a copy of the cached entry for path
func (c *SymbolCache) Entry(path string) (Entry, bool) {
	s := c.shardFor(path)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Tokens = slices.Clone(e.Tokens)
	return out, true
}

// Evict removes path and reports whether it was cached
func (c *SymbolCache) Evict(path string) bool {
	s := c.shardFor(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; !ok {
		return false
	}
	delete(s.entries, path)
	return true
}

// Len returns the number of cached files
func (c *SymbolCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Paths returns the cached paths in sorted order
func (c *SymbolCache) Paths() []string {
	var paths []string
	for _, s := range c.shards {
		s.mu.RLock()
		for p := range s.entries {
			paths = append(paths, p)
		}
		s.mu.RUnlock()
	}
	sort.Strings(paths)
	return paths
}
