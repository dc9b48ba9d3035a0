// Package cache provides the content-addressed response cache.
//
// Entries are keyed by a digest of (query, exact retrieved context) so the
// same question asked after the underlying index changed never returns an
// answer grounded in stale context. Expiry is lazy (checked on read) plus an
// explicit sweep; there is no background timer because the process may be a
// short-lived request handler.
//
// Cache faults never propagate: a corrupted record is deleted and reported
// as a miss, a failed write is logged and swallowed. Caching is an
// optimization, not a correctness requirement for the answer path.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/koopa0/recall/internal/index"
)

// Entry is one persisted cached answer. Created at cache-miss time right
// after generation succeeds; read-only thereafter.
type Entry struct {
	Answer    string          `json:"answer"`
	Context   []index.Passage `json:"context"`
	CreatedAt time.Time       `json:"createdAt"`
	Query     string          `json:"query"`
	Cached    bool            `json:"cached"`
}

// Statistics is a snapshot of the store's counters. Counters increment for
// the lifetime of one Store instance and reset only by constructing a new
// store; they are not persisted.
type Statistics struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Expired uint64 `json:"expired"`
	Errors  uint64 `json:"errors"`
}

// Store is the TTL-bound response cache. Safe for concurrent use: counters
// are atomic and record writes are atomic at the storage layer. Concurrent
// Get/Set on the same key are not serialized; last Set wins.
type Store struct {
	storage Storage
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
	errors  atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over file-per-key storage rooted at dir.
func New(dir string, ttl time.Duration, logger *slog.Logger, opts ...Option) (*Store, error) {
	storage, err := NewFileStorage(dir)
	if err != nil {
		return nil, err
	}
	return NewWithStorage(storage, ttl, logger, opts...), nil
}

// NewWithStorage creates a Store over any Storage implementation.
func NewWithStorage(storage Storage, ttl time.Duration, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		storage: storage,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key derives the cache key for a (query, passages) pair. The context digest
// hashes the canonical serialization of the full passage list, so any change
// in passage content, order, or count produces a different key, while equal
// inputs produce the same key across process restarts.
func Key(query string, passages []index.Passage) (string, error) {
	canonical, err := index.Canonical(passages)
	if err != nil {
		return "", err
	}
	contextDigest := sha256.Sum256(canonical)

	combined := sha256.Sum256([]byte(query + ":" + hex.EncodeToString(contextDigest[:])))
	return hex.EncodeToString(combined[:]), nil
}

// Get returns the cached entry for (query, passages) if present and fresh.
//
// Outcomes: not found counts a miss; found within TTL counts a hit and
// returns a copy with Cached set; found past TTL deletes the record and
// counts it expired; an unreadable or unparseable record is deleted, counts
// an error, and reads as absent. Get never returns an error to the caller.
func (s *Store) Get(query string, passages []index.Passage) (*Entry, bool) {
	key, err := Key(query, passages)
	if err != nil {
		s.errors.Add(1)
		s.logger.Warn("deriving cache key", "error", err)
		return nil, false
	}

	data, err := s.storage.Read(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.misses.Add(1)
			return nil, false
		}
		// Unreadable record: self-heal by removing it.
		s.discardCorrupt(key, err)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.CreatedAt.IsZero() {
		s.discardCorrupt(key, err)
		return nil, false
	}

	if s.now().Sub(entry.CreatedAt) > s.ttl {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Warn("deleting expired cache record", "key", key, "error", err)
		}
		s.expired.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	entry.Cached = true // marks the returned copy, never the stored record
	return &entry, true
}

// Set persists entry under the key derived from (query, passages),
// unconditionally overwriting any existing record. Failures increment the
// error counter and are logged, never returned: a lost cache write must not
// fail an otherwise successful answer.
func (s *Store) Set(query string, passages []index.Passage, entry Entry) {
	key, err := Key(query, passages)
	if err != nil {
		s.errors.Add(1)
		s.logger.Warn("deriving cache key", "error", err)
		return
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		s.errors.Add(1)
		s.logger.Warn("serializing cache entry", "error", err)
		return
	}

	if err := s.storage.Write(key, data); err != nil {
		s.errors.Add(1)
		s.logger.Warn("caching response failed", "key", key, "error", err)
	}
}

// ClearExpired scans every persisted record and deletes those past TTL or
// unparseable, incrementing expired or errors respectively. Returns the
// number of records removed. This is the only eager sweep; Get and Set never
// trigger it.
func (s *Store) ClearExpired() (int, error) {
	keys, err := s.storage.List()
	if err != nil {
		return 0, fmt.Errorf("listing cache records: %w", err)
	}

	cleared := 0
	for _, key := range keys {
		data, err := s.storage.Read(key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // raced with a lazy-expiry delete
			}
			s.discardCorrupt(key, err)
			cleared++
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.CreatedAt.IsZero() {
			s.discardCorrupt(key, err)
			cleared++
			continue
		}

		if s.now().Sub(entry.CreatedAt) > s.ttl {
			if err := s.storage.Delete(key); err != nil {
				s.logger.Warn("deleting expired cache record", "key", key, "error", err)
				continue
			}
			s.expired.Add(1)
			cleared++
		}
	}

	s.logger.Debug("cache sweep completed", "cleared", cleared, "scanned", len(keys))
	return cleared, nil
}

// Stats returns the counters as of the call.
func (s *Store) Stats() Statistics {
	return Statistics{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Expired: s.expired.Load(),
		Errors:  s.errors.Load(),
	}
}

// discardCorrupt removes a record that failed to read or parse and counts
// the corruption. Self-healing: the next Get for the key is a clean miss.
func (s *Store) discardCorrupt(key string, cause error) {
	if err := s.storage.Delete(key); err != nil {
		s.logger.Warn("deleting corrupt cache record", "key", key, "error", err)
	}
	s.errors.Add(1)
	s.logger.Warn("discarded corrupt cache record", "key", key, "cause", cause)
}
