// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// Metamethod event names, per SPEC_FULL.md §3.4.5/§3.4.6.
const (
	metaIndex    = "__index"
	metaNewIndex = "__newindex"
	metaCall     = "__call"
	metaToString = "__tostring"
	metaName     = "__name"
	metaLen      = "__len"
	metaEq       = "__eq"
	metaLt       = "__lt"
	metaLe       = "__le"
	metaConcat   = "__concat"
	metaUnm      = "__unm"
	metaClose    = "__close"
	metaAdd      = "__add"
	metaSub      = "__sub"
	metaMul      = "__mul"
	metaDiv      = "__div"
	metaMod      = "__mod"
	metaPow      = "__pow"
	metaIDiv     = "__idiv"
	metaBAnd     = "__band"
	metaBOr      = "__bor"
	metaBXor     = "__bxor"
	metaBNot     = "__bnot"
	metaShl      = "__shl"
	metaShr      = "__shr"
)

// metatableOf returns the metatable associated with v, if any: tables
// and userdata carry their own, and strings share a single metatable
// installed by the string library (so that `("x"):upper()` works).
func (s *State) metatableOf(v Value) *Table {
	switch v := v.(type) {
	case *Table:
		return v.Metatable()
	case *Userdata:
		return v.Meta
	case string:
		return s.stringMeta
	default:
		return nil
	}
}

// getMetamethod looks up event in v's metatable, if any.
func (s *State) getMetamethod(v Value, event string) Value {
	meta := s.metatableOf(v)
	if meta == nil {
		return nil
	}
	return meta.Get(event)
}

// index implements indexing (`t[k]`), including the `__index` chain:
// a table `__index` is itself indexed (recursively), and a function
// `__index` is called with (t, k).
func (s *State) index(obj, key Value) (Value, error) {
	for range maxMetaChain {
		t, isTable := obj.(*Table)
		if isTable {
			if v := t.Get(key); v != nil {
				return v, nil
			}
		}
		mm := s.getMetamethod(obj, metaIndex)
		if mm == nil {
			if isTable {
				return nil, nil
			}
			return nil, newRuntimeError("attempt to index a %s value", TypeName(obj))
		}
		if fn, ok := mm.(*Function); ok {
			results, err := s.Call(fn, []Value{obj, key})
			if err != nil {
				return nil, err
			}
			return first(results), nil
		}
		obj = mm
	}
	return nil, newRuntimeError("'__index' chain too long; possible loop")
}

// newIndex implements assignment (`t[k] = v`), including the
// `__newindex` chain.
func (s *State) newIndex(obj, key, value Value) error {
	for range maxMetaChain {
		t, isTable := obj.(*Table)
		if isTable && t.Get(key) != nil {
			return t.Set(key, value)
		}
		mm := s.getMetamethod(obj, metaNewIndex)
		if mm == nil {
			if isTable {
				return t.Set(key, value)
			}
			return newRuntimeError("attempt to index a %s value", TypeName(obj))
		}
		if fn, ok := mm.(*Function); ok {
			_, err := s.Call(fn, []Value{obj, key, value})
			return err
		}
		obj = mm
	}
	return newRuntimeError("'__newindex' chain too long; possible loop")
}

// maxMetaChain bounds __index/__newindex chains, mirroring lvm.c's
// MAXTAGLOOP.
const maxMetaChain = 2000

// length implements the "#" operator: raw length for strings/tables
// unless a `__len` metamethod overrides it.
func (s *State) length(v Value) (Value, error) {
	if str, ok := v.(string); ok {
		return int64(len(str)), nil
	}
	if mm := s.getMetamethod(v, metaLen); mm != nil {
		return s.call1(mm, v)
	}
	if t, ok := v.(*Table); ok {
		return t.Len(), nil
	}
	return nil, newRuntimeError("attempt to get length of a %s value", TypeName(v))
}

// tostring implements the `tostring` built-in: a `__tostring`
// metamethod takes priority, then a `__name` entry is used as a label,
// then [ToStringValue]'s default formatting applies.
func (s *State) tostring(v Value) (string, error) {
	if mm := s.getMetamethod(v, metaToString); mm != nil {
		result, err := s.call1(mm, v)
		if err != nil {
			return "", err
		}
		str, ok := result.(string)
		if !ok {
			return "", newRuntimeError("'__tostring' must return a string")
		}
		return str, nil
	}
	if name, ok := s.getMetamethod(v, metaName).(string); ok {
		switch v.(type) {
		case *Table, *Userdata:
			return fmt.Sprintf("%s: %p", name, v), nil
		}
	}
	return ToStringValue(v), nil
}

// call1 invokes fn (which must be callable) with args and returns only
// its first result, the common case for metamethods.
func (s *State) call1(fn Value, args ...Value) (Value, error) {
	results, err := s.Call(fn, args)
	if err != nil {
		return nil, err
	}
	return first(results), nil
}

func first(vs []Value) Value {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// equals implements "==", including the `__eq` metamethod, which Lua
// only consults when both operands are tables or both are userdata and
// raw equality already failed.
func (s *State) equals(a, b Value) (bool, error) {
	if RawEqual(a, b) {
		return true, nil
	}
	_, aIsTable := a.(*Table)
	_, bIsTable := b.(*Table)
	_, aIsUserdata := a.(*Userdata)
	_, bIsUserdata := b.(*Userdata)
	if !(aIsTable && bIsTable) && !(aIsUserdata && bIsUserdata) {
		return false, nil
	}
	mm := s.getMetamethod(a, metaEq)
	if mm == nil {
		mm = s.getMetamethod(b, metaEq)
	}
	if mm == nil {
		return false, nil
	}
	result, err := s.call1(mm, a, b)
	if err != nil {
		return false, err
	}
	return Truthy(result), nil
}
