// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// openBase installs the base library functions, grounded on
// [lua54.dev/core/internal/lua]'s baselib.go function set: assert,
// error, pcall/xpcall, the raw* family, pairs/ipairs/next,
// get/setmetatable, select, to*, type, print, and load.
func openBase(s *State) {
	s.Globals.Set("_G", s.Globals)
	s.Globals.Set("_VERSION", "Lua 5.4")
	reg := map[string]GoFunction{
		"assert":       baseAssert,
		"error":        baseError,
		"getmetatable": baseGetMetatable,
		"ipairs":       baseIPairs,
		"load":         baseLoad,
		"next":         baseNext,
		"pairs":        basePairs,
		"pcall":        basePCall,
		"print":        basePrint,
		"rawequal":     baseRawEqual,
		"rawget":       baseRawGet,
		"rawlen":       baseRawLen,
		"rawset":       baseRawSet,
		"select":       baseSelect,
		"setmetatable": baseSetMetatable,
		"tonumber":     baseToNumber,
		"tostring":     baseToString,
		"type":         baseType,
		"unpack":       tableUnpack,
		"xpcall":       baseXPCall,
	}
	for name, fn := range reg {
		s.Globals.Set(name, NewGoFunction(name, fn))
	}
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func baseAssert(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 || !Truthy(args[0]) {
		if len(args) >= 2 {
			return nil, NewError(args[1])
		}
		return nil, newRuntimeError("assertion failed!")
	}
	return args, nil
}

func baseError(s *State, args []Value) ([]Value, error) {
	v := arg(args, 0)
	level := int64(1)
	if len(args) >= 2 {
		if l, ok := ToInteger(args[1]); ok {
			level = l
		}
	}
	_ = level // position-prefixing errors per `level` is not implemented
	return nil, NewError(v)
}

func baseGetMetatable(s *State, args []Value) ([]Value, error) {
	meta := s.metatableOf(arg(args, 0))
	if meta == nil {
		return []Value{nil}, nil
	}
	if protected := meta.Get("__metatable"); protected != nil {
		return []Value{protected}, nil
	}
	return []Value{meta}, nil
}

func baseSetMetatable(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "setmetatable", "table", arg(args, 0))
	}
	if t.Metatable() != nil && t.Metatable().Get("__metatable") != nil {
		return nil, newRuntimeError("cannot change a protected metatable")
	}
	switch meta := arg(args, 1).(type) {
	case nil:
		t.SetMetatable(nil)
	case *Table:
		t.SetMetatable(meta)
	default:
		return nil, argError(2, "setmetatable", "nil or table", meta)
	}
	return []Value{t}, nil
}

func baseRawEqual(s *State, args []Value) ([]Value, error) {
	return []Value{RawEqual(arg(args, 0), arg(args, 1))}, nil
}

func baseRawGet(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "rawget", "table", arg(args, 0))
	}
	return []Value{t.Get(arg(args, 1))}, nil
}

func baseRawSet(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "rawset", "table", arg(args, 0))
	}
	if err := t.Set(arg(args, 1), arg(args, 2)); err != nil {
		return nil, err
	}
	return []Value{t}, nil
}

func baseRawLen(s *State, args []Value) ([]Value, error) {
	switch v := arg(args, 0).(type) {
	case *Table:
		return []Value{v.Len()}, nil
	case string:
		return []Value{int64(len(v))}, nil
	default:
		return nil, argErrorf(1, "rawlen", "table or string expected")
	}
}

func baseNext(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "next", "table", arg(args, 0))
	}
	k, v, ok := t.Next(arg(args, 1))
	if !ok {
		return []Value{nil}, nil
	}
	return []Value{k, v}, nil
}

func basePairs(s *State, args []Value) ([]Value, error) {
	v := arg(args, 0)
	if mm := s.getMetamethod(v, "__pairs"); mm != nil {
		return s.Call(mm, []Value{v})
	}
	return []Value{NewGoFunction("next", baseNext), v, nil}, nil
}

func baseIPairs(s *State, args []Value) ([]Value, error) {
	t := arg(args, 0)
	iter := NewGoFunction("inext", func(s *State, args []Value) ([]Value, error) {
		i, _ := ToInteger(arg(args, 1))
		i++
		v, err := s.index(arg(args, 0), i)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return []Value{nil}, nil
		}
		return []Value{i, v}, nil
	})
	return []Value{iter, t, int64(0)}, nil
}

func baseToNumber(s *State, args []Value) ([]Value, error) {
	if len(args) >= 2 {
		str, ok := arg(args, 0).(string)
		if !ok {
			return nil, argError(1, "tonumber", "string", arg(args, 0))
		}
		base, _ := ToInteger(args[1])
		n, err := strconv.ParseInt(strings.TrimSpace(str), int(base), 64)
		if err != nil {
			return []Value{nil}, nil
		}
		return []Value{n}, nil
	}
	switch v := arg(args, 0).(type) {
	case int64, float64:
		return []Value{v}, nil
	case string:
		if i, ok := ToInteger(v); ok {
			return []Value{i}, nil
		}
		if f, ok := ToNumber(v); ok {
			return []Value{f}, nil
		}
		return []Value{nil}, nil
	default:
		return []Value{nil}, nil
	}
}

func baseToString(s *State, args []Value) ([]Value, error) {
	str, err := s.tostring(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return []Value{str}, nil
}

func baseType(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, argErrorf(1, "type", "value expected")
	}
	return []Value{TypeName(args[0])}, nil
}

func baseSelect(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, argErrorf(1, "select", "number expected, got no value")
	}
	if n, ok := args[0].(string); ok && n == "#" {
		return []Value{int64(len(args) - 1)}, nil
	}
	n, ok := ToInteger(args[0])
	if !ok {
		return nil, argError(1, "select", "number", args[0])
	}
	rest := args[1:]
	if n < 0 {
		n += int64(len(rest)) + 1
	}
	if n < 1 {
		return nil, argErrorf(1, "select", "index out of range")
	}
	if int(n) > len(rest) {
		return nil, nil
	}
	return rest[n-1:], nil
}

func basePrint(s *State, args []Value) ([]Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		str, err := s.tostring(a)
		if err != nil {
			return nil, err
		}
		parts[i] = str
	}
	fmt.Fprintln(os.Stdout, strings.Join(parts, "\t"))
	return nil, nil
}

func basePCall(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, argErrorf(1, "pcall", "value expected")
	}
	results, err := s.Call(args[0], args[1:])
	if err != nil {
		return []Value{false, ErrorValue(err)}, nil
	}
	return append([]Value{true}, results...), nil
}

func baseXPCall(s *State, args []Value) ([]Value, error) {
	if len(args) < 2 {
		return nil, argErrorf(2, "xpcall", "value expected")
	}
	handler := args[1]
	results, err := s.Call(args[0], args[2:])
	if err != nil {
		handled, herr := s.call1(handler, ErrorValue(err))
		if herr != nil {
			return []Value{false, ErrorValue(herr)}, nil
		}
		return []Value{false, handled}, nil
	}
	return append([]Value{true}, results...), nil
}

func baseLoad(s *State, args []Value) ([]Value, error) {
	src, ok := arg(args, 0).(string)
	if !ok {
		return []Value{nil, "load: only string chunks are supported"}, nil
	}
	name := "=(load)"
	if n, ok := arg(args, 1).(string); ok {
		name = n
	}
	fn, err := s.Load([]byte(src), name)
	if err != nil {
		return []Value{nil, err.Error()}, nil
	}
	return []Value{fn}, nil
}
