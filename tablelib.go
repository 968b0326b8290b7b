// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"sort"
	"strings"
)

// openTable installs the `table` library, grounded on
// [lua54.dev/core/internal/lua]'s tablelib.go: insert/remove/concat/
// sort/pack/unpack/move.
func openTable(s *State) {
	t := NewTable(0)
	reg := map[string]GoFunction{
		"insert": tableInsert,
		"remove": tableRemove,
		"concat": tableConcat,
		"sort":   tableSort,
		"pack":   tablePack,
		"unpack": tableUnpack,
		"move":   tableMove,
	}
	for name, fn := range reg {
		t.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("table", t)
}

func tableInsert(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "insert", "table", arg(args, 0))
	}
	n := t.Len()
	switch len(args) {
	case 2:
		t.Set(n+1, args[1])
	case 3:
		pos, ok := ToInteger(args[1])
		if !ok {
			return nil, argError(2, "insert", "number", args[1])
		}
		if pos < 1 || pos > n+1 {
			return nil, argErrorf(2, "insert", "position out of bounds")
		}
		for i := n + 1; i > pos; i-- {
			t.Set(i, t.Get(i-1))
		}
		t.Set(pos, args[2])
	default:
		return nil, newRuntimeError("wrong number of arguments to 'insert'")
	}
	return nil, nil
}

func tableRemove(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "remove", "table", arg(args, 0))
	}
	n := t.Len()
	pos := n
	if len(args) >= 2 {
		p, ok := ToInteger(args[1])
		if !ok {
			return nil, argError(2, "remove", "number", args[1])
		}
		pos = p
	}
	if n == 0 {
		return []Value{nil}, nil
	}
	if pos < 1 || pos > n+1 {
		return nil, argErrorf(2, "remove", "position out of bounds")
	}
	v := t.Get(pos)
	for i := pos; i < n; i++ {
		t.Set(i, t.Get(i+1))
	}
	t.Set(n, nil)
	return []Value{v}, nil
}

func tableConcat(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "concat", "table", arg(args, 0))
	}
	sep := ""
	if str, ok := arg(args, 1).(string); ok {
		sep = str
	}
	start := int64(1)
	stop := t.Len()
	if len(args) >= 3 {
		if i, ok := ToInteger(args[2]); ok {
			start = i
		}
	}
	if len(args) >= 4 {
		if i, ok := ToInteger(args[3]); ok {
			stop = i
		}
	}
	var b strings.Builder
	for i := start; i <= stop; i++ {
		v := t.Get(i)
		str, ok := concatOperand(v)
		if !ok {
			return nil, newRuntimeError("invalid value (%s) at index %d in table for 'concat'", TypeName(v), i)
		}
		b.WriteString(str)
		if i < stop {
			b.WriteString(sep)
		}
	}
	return []Value{b.String()}, nil
}

func tableSort(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "sort", "table", arg(args, 0))
	}
	n := int(t.Len())
	vals := make([]Value, n)
	for i := range vals {
		vals[i] = t.Get(int64(i + 1))
	}

	var less func(a, b Value) (bool, error)
	if cmp := arg(args, 1); cmp != nil {
		less = func(a, b Value) (bool, error) {
			r, err := s.call1(cmp, a, b)
			return Truthy(r), err
		}
	} else {
		less = s.less
	}

	var sortErr error
	sort.SliceStable(vals, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		ok, err := less(vals[i], vals[j])
		if err != nil {
			sortErr = err
			return false
		}
		return ok
	})
	if sortErr != nil {
		return nil, sortErr
	}
	for i, v := range vals {
		t.Set(int64(i+1), v)
	}
	return nil, nil
}

func tablePack(s *State, args []Value) ([]Value, error) {
	t := NewTable(len(args))
	for i, v := range args {
		t.Set(int64(i+1), v)
	}
	t.Set("n", int64(len(args)))
	return []Value{t}, nil
}

func tableUnpack(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "unpack", "table", arg(args, 0))
	}
	start := int64(1)
	stop := t.Len()
	if len(args) >= 2 {
		if i, ok := ToInteger(args[1]); ok {
			start = i
		}
	}
	if len(args) >= 3 {
		if i, ok := ToInteger(args[2]); ok {
			stop = i
		}
	}
	if start > stop {
		return nil, nil
	}
	out := make([]Value, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, t.Get(i))
	}
	return out, nil
}

func tableMove(s *State, args []Value) ([]Value, error) {
	a1, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "move", "table", arg(args, 0))
	}
	f, _ := ToInteger(arg(args, 1))
	e, _ := ToInteger(arg(args, 2))
	tpos, _ := ToInteger(arg(args, 3))
	a2 := a1
	if len(args) >= 5 {
		if t2, ok := args[4].(*Table); ok {
			a2 = t2
		}
	}
	if e >= f {
		if tpos > f || tpos > e || a1 != a2 {
			for i := int64(0); i <= e-f; i++ {
				a2.Set(tpos+i, a1.Get(f+i))
			}
		} else {
			for i := e - f; i >= 0; i-- {
				a2.Set(tpos+i, a1.Get(f+i))
			}
		}
	}
	return []Value{a2}, nil
}
