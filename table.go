// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Table is a Lua table: an associative array keyed by any non-nil,
// non-NaN value, plus an optional metatable.
//
// Entries are kept sorted by key in a single slice and located with
// binary search, following
// [lua54.dev/core/internal/mylua]'s value.go representation — a table
// backed by a sorted slice of entries rather than separate array/hash
// parts, which keeps border-finding (the "#" operator, §3.4.7) a binary
// search instead of a linear scan.
type Table struct {
	entries []tableEntry
	meta    *Table
}

type tableEntry struct {
	key, value Value
}

// NewTable returns an empty table with room for capacity entries before
// its backing slice must grow.
func NewTable(capacity int) *Table {
	t := &Table{}
	if capacity > 0 {
		t.entries = make([]tableEntry, 0, capacity)
	}
	return t
}

// Metatable returns the table's metatable, or nil if it has none.
func (t *Table) Metatable() *Table {
	if t == nil {
		return nil
	}
	return t.meta
}

// SetMetatable replaces the table's metatable.
func (t *Table) SetMetatable(meta *Table) {
	t.meta = meta
}

// Get performs a raw lookup (no `__index` metamethod) of key in the
// table.
func (t *Table) Get(key Value) Value {
	if t == nil {
		return nil
	}
	i, found := findEntry(t.entries, normalizeKey(key))
	if !found {
		return nil
	}
	return t.entries[i].value
}

// Set performs a raw assignment (no `__newindex` metamethod). Setting a
// key's value to nil removes the entry. It returns an error if key is
// nil or NaN, per §3.3.6.
func (t *Table) Set(key, value Value) error {
	key = normalizeKey(key)
	switch k := key.(type) {
	case nil:
		return newRuntimeError("table index is nil")
	case float64:
		if math.IsNaN(k) {
			return newRuntimeError("table index is NaN")
		}
	}
	i, found := findEntry(t.entries, key)
	switch {
	case found && value != nil:
		t.entries[i].value = value
	case found && value == nil:
		t.entries = slices.Delete(t.entries, i, i+1)
	case !found && value != nil:
		t.entries = slices.Insert(t.entries, i, tableEntry{key: key, value: value})
	}
	return nil
}

// normalizeKey converts a float key with an integral value to an int64,
// so that t[1] and t[1.0] address the same entry, per §3.4.7.
func normalizeKey(key Value) Value {
	f, ok := key.(float64)
	if !ok {
		return key
	}
	if i, ok := floatToInteger(f); ok {
		return i
	}
	return key
}

// Len returns a border of the table (the result of the raw "#"
// operator), per §3.4.7.
func (t *Table) Len() int64 {
	if t == nil {
		return 0
	}
	start, ok := findEntry(t.entries, int64(1))
	if !ok {
		return 0
	}

	maxKey := len(t.entries) - start
	searchSpace := t.entries[start+1:]
	n := sort.Search(len(searchSpace), func(i int) bool {
		switch k := searchSpace[i].key.(type) {
		case int64:
			return k > int64(maxKey)
		case float64:
			return k > float64(maxKey)
		default:
			return true
		}
	})
	searchSpace = searchSpace[:n]
	maxKey = n + 1

	i := sort.Search(maxKey, func(i int) bool {
		_, found := findEntry(searchSpace, int64(i)+2)
		return !found
	})
	return int64(i) + 1
}

// Next implements the `next` built-in's iteration order: given a key
// previously returned by Next (or nil to start iterating), it returns
// the following key/value pair, or ok == false once iteration is
// exhausted.
func (t *Table) Next(key Value) (nextKey, value Value, ok bool) {
	if t == nil {
		return nil, nil, false
	}
	if key == nil {
		if len(t.entries) == 0 {
			return nil, nil, false
		}
		e := t.entries[0]
		return e.key, e.value, true
	}
	i, found := findEntry(t.entries, normalizeKey(key))
	if !found {
		return nil, nil, false
	}
	if i+1 >= len(t.entries) {
		return nil, nil, false
	}
	e := t.entries[i+1]
	return e.key, e.value, true
}

func findEntry(entries []tableEntry, key Value) (int, bool) {
	return slices.BinarySearchFunc(entries, key, func(e tableEntry, key Value) int {
		return compareKeys(e.key, key)
	})
}

// compareKeys imposes a total order over table keys so they can be
// kept sorted: values are ordered first by [TypeName], then by value
// within a type. This order is an implementation detail, never observed
// by Lua code (table iteration order is unspecified by the manual), so
// it need not (and does not) match the relational "<" operator's rules
// for types that aren't ordered by Lua itself.
func compareKeys(a, b Value) int {
	switch a := a.(type) {
	case nil:
		return cmp.Compare(typeRank(nil), typeRank(b))
	case bool:
		bb, ok := b.(bool)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return cmp.Compare(boolRank(a), boolRank(bb))
	case int64:
		switch b := b.(type) {
		case int64:
			return cmp.Compare(a, b)
		case float64:
			return cmp.Compare(float64(a), b)
		default:
			return cmp.Compare(typeRank(a), typeRank(b))
		}
	case float64:
		switch b := b.(type) {
		case int64:
			return cmp.Compare(a, float64(b))
		case float64:
			return cmp.Compare(a, b)
		default:
			return cmp.Compare(typeRank(a), typeRank(b))
		}
	case string:
		bs, ok := b.(string)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return cmp.Compare(a, bs)
	case *Table:
		bt, ok := b.(*Table)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return comparePointers(a, bt)
	case *Function:
		bf, ok := b.(*Function)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return comparePointers(a, bf)
	case *Userdata:
		bu, ok := b.(*Userdata)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return comparePointers(a, bu)
	case *Coroutine:
		bc, ok := b.(*Coroutine)
		if !ok {
			return cmp.Compare(typeRank(a), typeRank(b))
		}
		return comparePointers(a, bc)
	default:
		return cmp.Compare(typeRank(a), typeRank(b))
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// typeRank gives an arbitrary but fixed ordering across types, used only
// to keep compareKeys total.
func typeRank(v Value) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case *Table:
		return 4
	case *Function:
		return 5
	case *Userdata:
		return 6
	case *Coroutine:
		return 7
	default:
		return 8
	}
}

// comparePointers orders two pointers by their formatted address. This
// is only used to keep table keys in a stable total order for binary
// search; Lua itself leaves the relative order of non-comparable values
// unspecified.
func comparePointers[T any](a, b *T) int {
	return cmp.Compare(fmt.Sprintf("%p", a), fmt.Sprintf("%p", b))
}
