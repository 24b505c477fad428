package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	CounterStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore writes article hashes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// KVItem is a single key/value pair for pipelined SET.
type KVItem struct {
	Key   string
	Value []byte
}

// KVStore provides pipelined key-value operations.
type KVStore interface {
	// MGet returns values in key order; a missing key yields a nil entry.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// SetMulti stores all items with one expiry. Zero ttl stores without expiry.
	SetMulti(ctx context.Context, items []KVItem, ttl time.Duration) error
}

// CounterStore provides atomic integer counters that start from a seed value.
// A missing key behaves as if it held initial.
type CounterStore interface {
	// CounterGet returns the counter value.
	CounterGet(ctx context.Context, key string, initial int64) (int64, error)
	// CounterTake subtracts amount only when the counter holds at least amount.
	// ok=false leaves the counter untouched.
	CounterTake(ctx context.Context, key string, amount, initial int64) (remaining int64, ok bool, err error)
	// CounterAdd adds amount and returns the new value.
	CounterAdd(ctx context.Context, key string, amount, initial int64) (int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; deleteDocs also removes the indexed hashes (FT.DROPINDEX DD).
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
