package memory

import (
	"cmp"
	"slices"
)

// table keeps committed rows and the rows each open transaction has written but not committed.
// Rows are copied on the way in and out, so callers never alias stored state.
type table[K cmp.Ordered, T any] struct {
	rows   map[K]*T
	staged map[string]map[K]*T
	// deepen clones the pointer fields of a row copy, if T has any.
	deepen func(*T)
}

func newTable[K cmp.Ordered, T any]() *table[K, T] {
	return &table[K, T]{
		rows:   make(map[K]*T),
		staged: make(map[string]map[K]*T),
		deepen: nil,
	}
}

func (t *table[K, T]) copyOf(row *T) *T {
	c := *row
	if t.deepen != nil {
		t.deepen(&c)
	}

	return &c
}

func (t *table[K, T]) put(trxID string, key K, row *T) {
	staged, ok := t.staged[trxID]
	if !ok {
		staged = make(map[K]*T)
		t.staged[trxID] = staged
	}

	staged[key] = t.copyOf(row)
}

// get sees the transaction's own writes first, then committed rows. An empty trxID reads
// committed rows only.
func (t *table[K, T]) get(trxID string, key K) (*T, bool) {
	row, ok := t.staged[trxID][key]
	if !ok {
		row, ok = t.rows[key]
	}

	if !ok {
		return nil, false
	}

	return t.copyOf(row), true
}

// find returns matching rows ordered by key.
func (t *table[K, T]) find(trxID string, match func(*T) bool) []*T {
	merged := make(map[K]*T, len(t.rows))
	for k, row := range t.rows {
		merged[k] = row
	}

	for k, row := range t.staged[trxID] {
		merged[k] = row
	}

	keys := make([]K, 0, len(merged))
	for k, row := range merged {
		if match(row) {
			keys = append(keys, k)
		}
	}

	slices.Sort(keys)

	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.copyOf(merged[k]))
	}

	return out
}

func (t *table[K, T]) first(trxID string, match func(*T) bool) (*T, bool) {
	rows := t.find(trxID, match)
	if len(rows) == 0 {
		return nil, false
	}

	return rows[0], true
}

func (t *table[K, T]) commit(trxID string) {
	for k, row := range t.staged[trxID] {
		t.rows[k] = row
	}

	delete(t.staged, trxID)
}

func (t *table[K, T]) discard(trxID string) {
	delete(t.staged, trxID)
}
