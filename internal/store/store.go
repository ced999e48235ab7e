// Package store defines the abstract document store the rest of the
// engine is built against (C2 in spec.md §4.2). Collections are typed
// records, not dynamic maps — per the Design Notes translation of
// "dynamic document maps", unknown fields are dropped at the boundary
// rather than passed through.
//
// postgres.go backs this interface with Postgres + pgx: each collection
// is a table with an id primary key plus a JSONB document column, with
// expression indexes over the document fields the engine queries, giving Firestore-shaped semantics (field-equality queries,
// IN-queries batched at the platform cap, ≤500-op atomic batches,
// transactions that retry on a transient-unavailable classification)
// without taking a dependency on a hosted document database for
// health-sensitive data. memory.go backs the same interface with an
// in-process map, for tests.
package store

import (
	"context"
	"encoding/json"
)

// Collection names exactly as in spec.md §3/§6.
type Collection string

const (
	Users         Collection = "users"
	Interactions  Collection = "interactions"
	Notifications Collection = "notifications"
	Reports       Collection = "reports"
	RateLimits    Collection = "rateLimits"
	CleanupLogs   Collection = "cleanupLogs"
)

// QueryInBatchCap is the platform limit on the number of values an
// IN-query may hold in a single request; QueryIn splits larger value
// sets into batches transparently.
const QueryInBatchCap = 30

// BatchCommitCap is the platform limit on the number of operations a
// single Batch may commit atomically.
const BatchCommitCap = 500

// Snapshot is one document as returned by a query: its id plus the raw
// encoded document, decoded on demand into a caller-supplied type.
type Snapshot struct {
	ID   string
	Data []byte
}

// Unmarshal decodes the snapshot's document into out.
func (s Snapshot) Unmarshal(out any) error {
	return json.Unmarshal(s.Data, out)
}

// QueryOptions controls ordering of a single-field-equality Query.
type QueryOptions struct {
	OrderBy string
	Desc    bool
}

// Reader is the read-only subset of operations, shared by Store and
// Transaction.
type Reader interface {
	// Get loads the document at collection/id into out. Returns a
	// NotFound error if absent.
	Get(ctx context.Context, coll Collection, id string, out any) error

	// Query returns every document in coll where field == value.
	Query(ctx context.Context, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error)

	// QueryIn returns every document in coll where field is one of
	// values, batching internally at QueryInBatchCap.
	QueryIn(ctx context.Context, coll Collection, field string, values []string) ([]Snapshot, error)

	// QueryArrayContains returns every document in coll whose field
	// (a JSON array) contains value. Used by the Report Processor's
	// chainPath array-contains scans (spec.md §4.9).
	QueryArrayContains(ctx context.Context, coll Collection, field string, value string) ([]Snapshot, error)

	// QueryBefore returns every document in coll where the numeric
	// field is strictly less than cutoff. Used by the Retention
	// Sweeper (spec.md §4.11) to find expired records; the abstract
	// store has no general range operator, so this is purpose-built
	// for the one range predicate the engine needs.
	QueryBefore(ctx context.Context, coll Collection, field string, cutoff int64) ([]Snapshot, error)
}

// Writer is the write subset, shared by Store and Transaction.
type Writer interface {
	// Set writes data at collection/id. When merge is true, an
	// existing document's fields are shallow-merged rather than
	// replaced.
	Set(ctx context.Context, coll Collection, id string, data any, merge bool) error

	// Update applies patch as a partial field update. Returns
	// NotFound if the document doesn't exist.
	Update(ctx context.Context, coll Collection, id string, patch map[string]any) error

	// Delete removes the document at collection/id. Deleting an
	// absent document is not an error.
	Delete(ctx context.Context, coll Collection, id string) error
}

// Transaction is the scope passed to RunTransaction's callback. All
// reads must precede all writes, matching Firestore/SQL snapshot-
// isolation transaction semantics.
type Transaction interface {
	Reader
	Writer
}

// Batch accumulates up to BatchCommitCap operations for one atomic
// commit. A Batch is single-use: Commit is terminal, and any Set/
// Update/Delete/Commit call after a successful Commit returns an
// error. A Set/Update/Delete that would queue more than
// BatchCommitCap operations returns InvalidArgument.
type Batch interface {
	Writer
	// Commit atomically applies every queued operation.
	Commit(ctx context.Context) error
}

// Store is the root handle the rest of the engine is constructed
// against.
type Store interface {
	Reader
	Writer

	// RunTransaction retries its callback on an Unavailable
	// classification up to an internal bound, per spec.md §4.2/§7.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error

	// Batch returns a new, empty Batch.
	Batch() Batch
}
