package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is an in-process Store fake used by unit tests for C4-C9;
// it implements exactly the same field-equality query semantics as
// PostgresStore (string comparison on a decoded JSON field) without a
// database.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[Collection]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Collection]map[string][]byte)}
}

func (m *MemoryStore) table(coll Collection) map[string][]byte {
	t, ok := m.docs[coll]
	if !ok {
		t = make(map[string][]byte)
		m.docs[coll] = t
	}
	return t
}

func (m *MemoryStore) Get(ctx context.Context, coll Collection, id string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.table(coll)[id]
	if !ok {
		return NewNotFound("document not found: " + string(coll) + "/" + id)
	}
	return json.Unmarshal(raw, out)
}

func (m *MemoryStore) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(coll, id, data, merge)
}

func (m *MemoryStore) setLocked(coll Collection, id string, data any, merge bool) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t := m.table(coll)
	if merge {
		if existing, ok := t[id]; ok {
			merged, err := mergeJSON(existing, raw)
			if err != nil {
				return err
			}
			t[id] = merged
			return nil
		}
	}
	t[id] = raw
	return nil
}

func mergeJSON(existing, patch []byte) ([]byte, error) {
	var base, delta map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, NewInternal("merge decode failed", err)
	}
	if err := json.Unmarshal(patch, &delta); err != nil {
		return nil, NewInternal("merge decode failed", err)
	}
	for k, v := range delta {
		base[k] = v
	}
	out, err := json.Marshal(base)
	if err != nil {
		return nil, NewInternal("merge encode failed", err)
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(coll, id, patch)
}

func (m *MemoryStore) updateLocked(coll Collection, id string, patch map[string]any) error {
	t := m.table(coll)
	existing, ok := t[id]
	if !ok {
		return NewNotFound("document not found: " + string(coll) + "/" + id)
	}
	patchRaw, err := encode(patch)
	if err != nil {
		return err
	}
	merged, err := mergeJSON(existing, patchRaw)
	if err != nil {
		return err
	}
	t[id] = merged
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, coll Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table(coll), id)
	return nil
}

func fieldAsString(doc map[string]any, field string) (string, bool) {
	v, ok := doc[field]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		b, _ := json.Marshal(t)
		return string(b), true
	}
}

func (m *MemoryStore) Query(ctx context.Context, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(coll, field, value, opts)
}

func (m *MemoryStore) queryLocked(coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	target := toCompareString(value)
	var out []Snapshot
	for id, raw := range m.table(coll) {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		v, ok := fieldAsString(doc, field)
		if !ok || v != target {
			continue
		}
		out = append(out, Snapshot{ID: id, Data: raw})
	}
	if opts.OrderBy != "" {
		sort.Slice(out, func(i, j int) bool {
			var di, dj map[string]any
			_ = json.Unmarshal(out[i].Data, &di)
			_ = json.Unmarshal(out[j].Data, &dj)
			vi, _ := fieldAsString(di, opts.OrderBy)
			vj, _ := fieldAsString(dj, opts.OrderBy)
			if opts.Desc {
				return vi > vj
			}
			return vi < vj
		})
	}
	return out, nil
}

func toCompareString(value any) string {
	switch t := value.(type) {
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func (m *MemoryStore) QueryIn(ctx context.Context, coll Collection, field string, values []string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	var out []Snapshot
	for id, raw := range m.table(coll) {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		v, ok := fieldAsString(doc, field)
		if ok && set[v] {
			out = append(out, Snapshot{ID: id, Data: raw})
		}
	}
	return out, nil
}

func (m *MemoryStore) QueryArrayContains(ctx context.Context, coll Collection, field string, value string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryArrayContainsLocked(coll, field, value)
}

func (m *MemoryStore) queryArrayContainsLocked(coll Collection, field string, value string) ([]Snapshot, error) {
	var out []Snapshot
	for id, raw := range m.table(coll) {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		arr, ok := doc[field].([]any)
		if !ok {
			continue
		}
		for _, elem := range arr {
			if s, ok := elem.(string); ok && s == value {
				out = append(out, Snapshot{ID: id, Data: raw})
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) QueryBefore(ctx context.Context, coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryBeforeLocked(coll, field, cutoff)
}

func (m *MemoryStore) queryBeforeLocked(coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	var out []Snapshot
	for id, raw := range m.table(coll) {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		v, ok := doc[field].(float64)
		if !ok || v >= float64(cutoff) {
			continue
		}
		out = append(out, Snapshot{ID: id, Data: raw})
	}
	return out, nil
}

func (m *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &memTx{m: m})
}

// memTx runs directly against MemoryStore's already-held lock; callers
// never nest transactions.
type memTx struct {
	m *MemoryStore
}

func (t *memTx) Get(ctx context.Context, coll Collection, id string, out any) error {
	raw, ok := t.m.table(coll)[id]
	if !ok {
		return NewNotFound("document not found: " + string(coll) + "/" + id)
	}
	return json.Unmarshal(raw, out)
}
func (t *memTx) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	return t.m.setLocked(coll, id, data, merge)
}
func (t *memTx) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	return t.m.updateLocked(coll, id, patch)
}
func (t *memTx) Delete(ctx context.Context, coll Collection, id string) error {
	delete(t.m.table(coll), id)
	return nil
}
func (t *memTx) Query(ctx context.Context, coll Collection, field string, value any, opts QueryOptions) ([]Snapshot, error) {
	return t.m.queryLocked(coll, field, value, opts)
}
func (t *memTx) QueryIn(ctx context.Context, coll Collection, field string, values []string) ([]Snapshot, error) {
	seen := make(map[string]bool, len(values))
	var out []Snapshot
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		snaps, err := t.m.queryLocked(coll, field, v, QueryOptions{})
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}
func (t *memTx) QueryArrayContains(ctx context.Context, coll Collection, field string, value string) ([]Snapshot, error) {
	return t.m.queryArrayContainsLocked(coll, field, value)
}
func (t *memTx) QueryBefore(ctx context.Context, coll Collection, field string, cutoff int64) ([]Snapshot, error) {
	return t.m.queryBeforeLocked(coll, field, cutoff)
}

// memBatch mirrors pgBatch's terminal-commit semantics over MemoryStore.
type memBatch struct {
	m         *MemoryStore
	ops       []func() error
	committed bool
}

func (m *MemoryStore) Batch() Batch {
	return &memBatch{m: m}
}

func (b *memBatch) guard() error {
	if b.committed {
		return NewInvalidArgument("batch already committed")
	}
	if len(b.ops) >= BatchCommitCap {
		return NewInvalidArgument("batch exceeds operation cap")
	}
	return nil
}

func (b *memBatch) Set(ctx context.Context, coll Collection, id string, data any, merge bool) error {
	if err := b.guard(); err != nil {
		return err
	}
	b.ops = append(b.ops, func() error {
		b.m.mu.Lock()
		defer b.m.mu.Unlock()
		return b.m.setLocked(coll, id, data, merge)
	})
	return nil
}

func (b *memBatch) Update(ctx context.Context, coll Collection, id string, patch map[string]any) error {
	if err := b.guard(); err != nil {
		return err
	}
	b.ops = append(b.ops, func() error {
		b.m.mu.Lock()
		defer b.m.mu.Unlock()
		return b.m.updateLocked(coll, id, patch)
	})
	return nil
}

func (b *memBatch) Delete(ctx context.Context, coll Collection, id string) error {
	if err := b.guard(); err != nil {
		return err
	}
	b.ops = append(b.ops, func() error {
		b.m.mu.Lock()
		defer b.m.mu.Unlock()
		delete(b.m.table(coll), id)
		return nil
	})
	return nil
}

func (b *memBatch) Commit(ctx context.Context) error {
	if b.committed {
		return NewInvalidArgument("batch already committed")
	}
	b.committed = true
	for _, op := range b.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}
