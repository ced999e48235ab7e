package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxTransactionRetries bounds the retry loop in RunTransaction for
// errors classified Unavailable, per spec.md §4.2 ("all transactions
// retry on Unavailable") and §5 ("rate-limit and store transactions
// retry on Unavailable up to an internal cap").
const maxTransactionRetries = 3

// PostgresStore backs Store with a Postgres connection pool. Each
// Collection is a table with an `id` primary key and a `doc JSONB`
// column; field-equality queries go through `doc->>'field'`, matching
// the teacher's direct-SQL style (internal/db/postgres.go) rather than
// an ORM.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and pings it, mirroring the teacher's
// db.Connect.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("Successfully connected to PostgreSQL for exposure-relay")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var allCollections = []Collection{Users, Interactions, Notifications, Reports, RateLimits, CleanupLogs}

func tableName(coll Collection) string {
	return "doc_" + string(coll)
}

// InitSchema creates one JSONB-backed table per collection plus the
// indexes the engine's access patterns rely on (partnerAnonymousId for
// interaction discovery, recipientId+reportId for the notification
// uniqueness invariant, chainPath for the array-contains propagation
// scans, status for the pending-report poll).
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	for _, coll := range allCollections {
		t := tableName(coll)
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id  TEXT PRIMARY KEY,
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS %s_gin ON %s USING GIN (doc);
		`, t, t, t)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("init schema for %s: %w", coll, err)
		}
	}
	// Supports the unidirectional discovery query (WHERE
	// partnerAnonymousId == X); the recordedAt window is applied by
	// the caller.
	_, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS doc_interactions_partner
			ON doc_interactions ((doc->>'partnerAnonymousId'), (doc->>'recordedAt'));
		CREATE INDEX IF NOT EXISTS doc_notifications_recipient_report
			ON doc_notifications ((doc->>'recipientId'), (doc->>'reportId'));
		CREATE INDEX IF NOT EXISTS doc_notifications_chainpath
			ON doc_notifications USING GIN ((doc->'chainPath'));
		CREATE INDEX IF NOT EXISTS doc_reports_status
			ON doc_reports ((doc->>'status'));
	`)
	if err != nil {
		return fmt.Errorf("init access-pattern indexes: %w", err)
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == pgx.ErrNoRows {
		return NewNotFound("document not found")
	}
	var pgErr *pgconn.PgError
	if isPgConnErr(err) {
		return NewUnavailable("transient store error", err)
	}
	_ = pgErr
	return NewInternal("store operation failed", err)
}

// isPgConnErr classifies connection-level failures (pool exhaustion,
// network reset, context deadline) as retryable, distinct from
// constraint violations and syntax errors which are not.
func isPgConnErr(err error) bool {
	msg := err.Error()
	for _, sub := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "pool", "deadline exceeded", "EOF"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func encode(data any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, NewInvalidArgument("document does not encode to JSON: " + err.Error())
	}
	return b, nil
}

func (s *PostgresStore) Get(ctx context.Context, coll Collection, id string, out any) error {
	return getRow(ctx, s.pool, coll, id, out)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func getRow(ctx context.Context, q querier, coll Collection, id string, out any) error {
	row := q.QueryRow(ctx, fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", tableName(coll)), id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return classify(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewInternal("failed to decode document", err)
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	return setRow(ctx, s.pool, coll, id, data, merge)
}

func setRow(ctx context.Context, q querier, coll Collection, id string, data any, merge bool) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t := tableName(coll)
	var sql string
	if merge {
		sql = fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO UPDATE SET doc = %s.doc || EXCLUDED.doc`, t, t)
	} else {
		sql = fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, t)
	}
	_, err = q.Exec(ctx, sql, id, raw)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	return updateRow(ctx, s.pool, coll, id, patch)
}

func updateRow(ctx context.Context, q querier, coll Collection, id string, patch map[string]any) error {
	raw, err := encode(patch)
	if err != nil {
		return err
	}
	t := tableName(coll)
	tag, err := q.Exec(ctx, fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb WHERE id = $1`, t), id, raw)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return NewNotFound("document not found: " + string(coll) + "/" + id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, coll Collection, id string) error {
	return deleteRow(ctx, s.pool, coll, id)
}

func deleteRow(ctx context.Context, q querier, coll Collection, id string) error {
	_, err := q.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", tableName(coll)), id)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	return queryRows(ctx, s.pool, coll, field, value, opts)
}

func queryRows(ctx context.Context, q querier, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	t := tableName(coll)
	sql := fmt.Sprintf("SELECT id, doc FROM %s WHERE doc->>'%s' = $1", t, field)
	if opts.OrderBy != "" {
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		sql += fmt.Sprintf(" ORDER BY doc->>'%s' %s", opts.OrderBy, dir)
	}
	rows, err := q.Query(ctx, sql, fmt.Sprintf("%v", value))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]Snapshot, error) {
	var out []Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classify(err)
		}
		out = append(out, Snapshot{ID: id, Data: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *PostgresStore) QueryIn(ctx context.Context, coll Collection, field string, values []string) ([]Snapshot, error) {
	return queryInRows(ctx, s.pool, coll, field, values)
}

func queryInRows(ctx context.Context, q querier, coll Collection, field string, values []string) ([]Snapshot, error) {
	if len(values) == 0 {
		return nil, nil
	}
	t := tableName(coll)
	var out []Snapshot
	for start := 0; start < len(values); start += QueryInBatchCap {
		end := start + QueryInBatchCap
		if end > len(values) {
			end = len(values)
		}
		batch := values[start:end]
		sql := fmt.Sprintf("SELECT id, doc FROM %s WHERE doc->>'%s' = ANY($1)", t, field)
		rows, err := q.Query(ctx, sql, batch)
		if err != nil {
			return nil, classify(err)
		}
		snaps, err := scanSnapshots(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

func (s *PostgresStore) QueryArrayContains(ctx context.Context, coll Collection, field string, value string) ([]Snapshot, error) {
	return queryArrayContainsRows(ctx, s.pool, coll, field, value)
}

// queryArrayContainsRows uses Postgres's jsonb `?` containment
// operator, which the GIN index created over chainPath in InitSchema
// serves directly.
func queryArrayContainsRows(ctx context.Context, q querier, coll Collection, field string, value string) ([]Snapshot, error) {
	t := tableName(coll)
	sql := fmt.Sprintf(`SELECT id, doc FROM %s WHERE doc->'%s' ? $1`, t, field)
	rows, err := q.Query(ctx, sql, value)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *PostgresStore) QueryBefore(ctx context.Context, coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	return queryBeforeRows(ctx, s.pool, coll, field, cutoff)
}

func queryBeforeRows(ctx context.Context, q querier, coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	t := tableName(coll)
	sql := fmt.Sprintf(`SELECT id, doc FROM %s WHERE (doc->>'%s')::bigint < $1`, t, field)
	rows, err := q.Query(ctx, sql, cutoff)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// pgTx adapts a pgx.Tx to the Transaction interface, so callback code
// written against store.Transaction runs unmodified whether it's
// inside RunTransaction or operating on the top-level Store.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, coll Collection, id string, out any) error {
	return getRow(ctx, t.tx, coll, id, out)
}
func (t *pgTx) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	return setRow(ctx, t.tx, coll, id, data, merge)
}
func (t *pgTx) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	return updateRow(ctx, t.tx, coll, id, patch)
}
func (t *pgTx) Delete(ctx context.Context, coll Collection, id string) error {
	return deleteRow(ctx, t.tx, coll, id)
}
func (t *pgTx) Query(ctx context.Context, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	return queryRows(ctx, t.tx, coll, field, value, opts)
}
func (t *pgTx) QueryIn(ctx context.Context, coll Collection, field string, values []string) ([]Snapshot, error) {
	return queryInRows(ctx, t.tx, coll, field, values)
}
func (t *pgTx) QueryArrayContains(ctx context.Context, coll Collection, field string, value string) ([]Snapshot, error) {
	return queryArrayContainsRows(ctx, t.tx, coll, field, value)
}
func (t *pgTx) QueryBefore(ctx context.Context, coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	return queryBeforeRows(ctx, t.tx, coll, field, cutoff)
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTransactionRetries; attempt++ {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			lastErr = classify(err)
			if se, ok := lastErr.(*Error); ok && se.Retryable() {
				time.Sleep(backoff(attempt))
				continue
			}
			return lastErr
		}
		err = fn(ctx, &pgTx{tx: tx})
		if err != nil {
			_ = tx.Rollback(ctx)
			if se, ok := err.(*Error); ok && se.Retryable() {
				lastErr = err
				time.Sleep(backoff(attempt))
				continue
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			lastErr = classify(err)
			if se, ok := lastErr.(*Error); ok && se.Retryable() {
				time.Sleep(backoff(attempt))
				continue
			}
			return lastErr
		}
		return nil
	}
	if lastErr == nil {
		lastErr = NewInternal("transaction retries exhausted", nil)
	}
	return NewInternal("transaction failed after retries", lastErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(25*(attempt+1)) * time.Millisecond
}

// pgBatch accumulates operations for one atomic commit via a single
// Postgres transaction, capped at BatchCommitCap per the platform
// limit in spec.md §4.2.
type pgBatch struct {
	pool      *pgxpool.Pool
	ops       []func(ctx context.Context, tx pgx.Tx) error
	committed bool
}

func (s *PostgresStore) Batch() Batch {
	return &pgBatch{pool: s.pool}
}

func (b *pgBatch) guard() error {
	if b.committed {
		return NewInvalidArgument("batch already committed")
	}
	if len(b.ops) >= BatchCommitCap {
		return NewInvalidArgument(fmt.Sprintf("batch exceeds %d operation cap", BatchCommitCap))
	}
	return nil
}

func (b *pgBatch) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	if err := b.guard(); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		return setRow(ctx, tx, coll, id, json.RawMessage(raw), merge)
	})
	return nil
}

func (b *pgBatch) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	if err := b.guard(); err != nil {
		return err
	}
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		return updateRow(ctx, tx, coll, id, patch)
	})
	return nil
}

func (b *pgBatch) Delete(ctx context.Context, coll Collection, id string) error {
	if err := b.guard(); err != nil {
		return err
	}
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		return deleteRow(ctx, tx, coll, id)
	})
	return nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if b.committed {
		return NewInvalidArgument("batch already committed")
	}
	b.committed = true
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, op := range b.ops {
		if err := op(ctx, tx); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
