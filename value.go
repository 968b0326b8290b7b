// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package lua implements a tree-walking evaluator for the core of the
// Lua 5.4 language: values, tables, environments, operators, the
// standard library, and cooperative coroutines.
//
// Unlike [lua54.dev/core/internal/mylua]'s register-based virtual
// machine (compiled from [lua54.dev/core/internal/luacode] bytecode),
// this package evaluates the AST produced by
// [lua54.dev/core/internal/parser] directly. Values are represented as
// plain Go values switched over by type, rather than through an
// interface hierarchy, since a tree-walker has no register file to
// make that hierarchy pay for itself.
package lua

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"lua54.dev/core/internal/ast"
	"lua54.dev/core/internal/lualex"
)

// Value is a Lua value. The dynamic type is one of:
//
//   - nil
//   - bool
//   - int64 (a Lua integer)
//   - float64 (a Lua float)
//   - string
//   - *Table
//   - *Function
//   - *Userdata
//   - *Coroutine
type Value = any

// TypeName returns the Lua type name of v, as returned by the `type`
// built-in.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case *Table:
		return "table"
	case *Function:
		return "function"
	case *Userdata:
		return "userdata"
	case *Coroutine:
		return "thread"
	default:
		return fmt.Sprintf("lua.Value(%T)", v)
	}
}

// Truthy reports whether v is anything other than nil or false, per
// SPEC_FULL.md §3.2.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// ToNumber coerces v to a float64 following the rules of §3.4.3: numbers
// convert trivially, strings are parsed as Lua numerals.
func ToNumber(v Value) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := lualex.ParseNumber(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToInteger coerces v to an int64 following §3.4.3, failing if v is a
// float or numeric string with a non-zero fractional part.
func ToInteger(v Value) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case float64:
		return floatToInteger(v)
	case string:
		s := strings.TrimSpace(v)
		if i, err := lualex.ParseInt(s); err == nil {
			return i, true
		}
		f, err := lualex.ParseNumber(s)
		if err != nil {
			return 0, false
		}
		return floatToInteger(f)
	default:
		return 0, false
	}
}

func floatToInteger(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ToStringValue renders v the way `tostring` does for values that have
// no `__tostring`/`__name` metamethod: numbers print per §3.4.3's
// formatting rules, and every other primitive type prints as
// "type: 0x...".
func ToStringValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case string:
		return v
	case *Table:
		return fmt.Sprintf("table: %p", v)
	case *Function:
		return fmt.Sprintf("function: %p", v)
	case *Userdata:
		return fmt.Sprintf("userdata: %p", v)
	case *Coroutine:
		return fmt.Sprintf("thread: %p", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFloat renders a float the way Lua's default "%.14g" format
// does, including the ".0" suffix Lua adds to integral floats so they
// remain visibly distinct from integers.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', 14, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// RawEqual reports whether two values are equal without invoking any
// `__eq` metamethod, per §3.4.4's "raw equality".
func RawEqual(a, b Value) bool {
	switch a := a.(type) {
	case int64:
		switch b := b.(type) {
		case int64:
			return a == b
		case float64:
			return float64(a) == b
		default:
			return false
		}
	case float64:
		switch b := b.(type) {
		case int64:
			return a == float64(b)
		case float64:
			return a == b
		default:
			return false
		}
	default:
		return a == b
	}
}

// Function is a callable Lua value: either a closure over a Lua
// function literal or a host function implemented in Go.
type Function struct {
	Name string

	// Lua closure fields; Go is nil for these.
	Params   []string
	IsVararg bool
	Body     ast.Block
	Env      *Environment

	// Go is set for host functions registered via [NewGoFunction].
	Go GoFunction
}

// GoFunction is a function implemented in Go and exposed to Lua code,
// following the (*State, args) -> (results, error) shape used
// throughout the standard library.
type GoFunction func(s *State, args []Value) ([]Value, error)

// NewGoFunction wraps fn as a callable [Value] named name (stored in
// [Function].Name).
func NewGoFunction(name string, fn GoFunction) *Function {
	return &Function{Name: name, Go: fn}
}

// Userdata is a host value exposed to Lua with an optional metatable,
// available to embedders. The io library does not create userdata.
type Userdata struct {
	Data any
	Meta *Table
}
