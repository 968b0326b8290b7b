// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"strconv"
	"strings"

	"lua54.dev/core/internal/luapattern"
)

// openString installs the `string` library, grounded on
// [lua54.dev/core/internal/lua]'s stringlib.go for the non-pattern
// functions (byte/char/len/sub/upper/lower/rep/reverse/format). The
// pattern-matching functions (find/match/gmatch/gsub) are backed by
// [lua54.dev/core/internal/luapattern] instead of the teacher's
// [lua54.dev/core/internal/lua]'s NFA-based pattern.go, since that
// engine explicitly cannot express `%b` balanced-match or `%1`-style
// backreferences (see DESIGN.md) — this library is the new engine's
// only caller.
//
// A shared metatable with `__index` pointing at this table is
// installed so that string values support method-call syntax, e.g.
// `("hi"):upper()`.
func openString(s *State) {
	str := NewTable(0)
	reg := map[string]GoFunction{
		"byte":    stringByte,
		"char":    stringChar,
		"len":     stringLen,
		"sub":     stringSub,
		"upper":   stringUpper,
		"lower":   stringLower,
		"rep":     stringRep,
		"reverse": stringReverse,
		"format":  stringFormat,
		"find":    stringFind,
		"match":   stringMatch,
		"gmatch":  stringGmatch,
		"gsub":    stringGsub,
	}
	for name, fn := range reg {
		str.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("string", str)

	meta := NewTable(1)
	meta.Set(metaIndex, str)
	s.stringMeta = meta
}

// strArg checks that args[i] is a string (or a number, which coerces),
// following the reference library's acceptance of numbers wherever a
// string is expected.
func strArg(args []Value, i int, fname string) (string, error) {
	v := arg(args, i)
	if str, ok := v.(string); ok {
		return str, nil
	}
	if _, isNum := v.(int64); isNum {
		return ToStringValue(v), nil
	}
	if _, isNum := v.(float64); isNum {
		return ToStringValue(v), nil
	}
	return "", argError(i+1, fname, "string", v)
}

// strIndex converts a Lua 1-based, possibly-negative string index to a
// 0-based Go byte offset. Negative indices are clamped at 0; positive
// indices past the end are returned unclamped, for callers to check.
func strIndex(i, length int64) int64 {
	switch {
	case i > 0:
		return i - 1
	case i == 0:
		return 0
	case -i > length:
		return 0
	default:
		return length + i
	}
}

func stringLen(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "len")
	if err != nil {
		return nil, err
	}
	return []Value{int64(len(str))}, nil
}

func stringSub(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "sub")
	if err != nil {
		return nil, err
	}
	n := int64(len(str))
	i := int64(1)
	if len(args) >= 2 {
		if v, ok := ToInteger(args[1]); ok {
			i = v
		}
	}
	j := int64(-1)
	if len(args) >= 3 {
		if v, ok := ToInteger(args[2]); ok {
			j = v
		}
	}
	start := strIndex(i, n)
	var stop int64
	if j < 0 {
		stop = n + j + 1
	} else if j > n {
		stop = n
	} else {
		stop = j
	}
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return []Value{""}, nil
	}
	return []Value{str[start:stop]}, nil
}

func stringUpper(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "upper")
	if err != nil {
		return nil, err
	}
	return []Value{strings.ToUpper(str)}, nil
}

func stringLower(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "lower")
	if err != nil {
		return nil, err
	}
	return []Value{strings.ToLower(str)}, nil
}

func stringRep(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "rep")
	if err != nil {
		return nil, err
	}
	n, ok := ToInteger(arg(args, 1))
	if !ok {
		return nil, argError(2, "rep", "number", arg(args, 1))
	}
	sep := ""
	if len(args) >= 3 {
		sep, _ = strArg(args, 2, "rep")
	}
	if n <= 0 {
		return []Value{""}, nil
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = str
	}
	return []Value{strings.Join(parts, sep)}, nil
}

func stringReverse(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "reverse")
	if err != nil {
		return nil, err
	}
	b := []byte(str)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return []Value{string(b)}, nil
}

func stringByte(s *State, args []Value) ([]Value, error) {
	str, err := strArg(args, 0, "byte")
	if err != nil {
		return nil, err
	}
	n := int64(len(str))
	i := int64(1)
	if len(args) >= 2 {
		if v, ok := ToInteger(args[1]); ok {
			i = v
		}
	}
	j := i
	if len(args) >= 3 {
		if v, ok := ToInteger(args[2]); ok {
			j = v
		}
	}
	start := strIndex(i, n)
	stop := strIndex(j, n) + 1
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return nil, nil
	}
	out := make([]Value, 0, stop-start)
	for k := start; k < stop; k++ {
		out = append(out, int64(str[k]))
	}
	return out, nil
}

func stringChar(s *State, args []Value) ([]Value, error) {
	b := make([]byte, len(args))
	for i, v := range args {
		n, ok := ToInteger(v)
		if !ok || n < 0 || n > 255 {
			return nil, argError(i+1, "char", "value in [0, 255]", v)
		}
		b[i] = byte(n)
	}
	return []Value{string(b)}, nil
}

// stringFormat implements `string.format`, supporting the directives
// commonly used in Lua scripts: %d/%i, %u, %x/%X, %o, %c, %f/%g/%e
// (and uppercase variants), %s, %q, and %%. Field width, precision,
// and the -0+ # flags are delegated to Go's fmt verbs, which accept
// the same syntax for these conversions.
func stringFormat(s *State, args []Value) ([]Value, error) {
	format, err := strArg(args, 0, "format")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	argi := 1
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		start := i
		i++
		for i < len(format) && strings.ContainsRune("-+ #0", rune(format[i])) {
			i++
		}
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		if i < len(format) && format[i] == '.' {
			i++
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
		}
		if i >= len(format) {
			return nil, newRuntimeError("invalid conversion to 'format'")
		}
		verb := format[i]
		spec := format[start : i+1]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		v := arg(args, argi)
		argi++
		switch verb {
		case 'd', 'i':
			n, ok := ToInteger(v)
			if !ok {
				return nil, argErrorf(argi, "format", "number expected, got %s", TypeName(v))
			}
			fmt.Fprintf(&b, spec[:len(spec)-1]+"d", n)
		case 'u':
			n, _ := ToInteger(v)
			fmt.Fprintf(&b, spec[:len(spec)-1]+"d", uint64(n))
		case 'x', 'X', 'o':
			n, _ := ToInteger(v)
			fmt.Fprintf(&b, spec, uint64(n))
		case 'c':
			n, _ := ToInteger(v)
			b.WriteByte(byte(n))
		case 'f', 'F', 'e', 'E', 'g', 'G':
			n, ok := ToNumber(v)
			if !ok {
				return nil, argErrorf(argi, "format", "number expected, got %s", TypeName(v))
			}
			fmt.Fprintf(&b, spec, n)
		case 's':
			str, serr := s.tostring(v)
			if serr != nil {
				return nil, serr
			}
			fmt.Fprintf(&b, spec, str)
		case 'q':
			b.WriteString(quoteLuaString(v))
		default:
			return nil, newRuntimeError("invalid conversion '%s' to 'format'", spec)
		}
	}
	return []Value{b.String()}, nil
}

func quoteLuaString(v Value) string {
	str, ok := v.(string)
	if !ok {
		return ToStringValue(v)
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%d`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// captureValues converts a [luapattern.Match] into the Lua values
// find/match return for it: explicit captures if the pattern declared
// any, or the whole match substring otherwise, per lstrlib.c's
// push_captures.
func captureValues(src string, m *luapattern.Match) []Value {
	if len(m.Captures) == 0 {
		return []Value{src[m.Start:m.End]}
	}
	out := make([]Value, len(m.Captures))
	for i, c := range m.Captures {
		if c.Position {
			out[i] = int64(c.Start + 1)
		} else {
			out[i] = src[c.Start:c.End]
		}
	}
	return out
}

func stringFind(s *State, args []Value) ([]Value, error) {
	src, err := strArg(args, 0, "find")
	if err != nil {
		return nil, err
	}
	pat, err := strArg(args, 1, "find")
	if err != nil {
		return nil, err
	}
	init := 1
	if len(args) >= 3 {
		if i, ok := ToInteger(args[2]); ok {
			init = int(i)
		}
	}
	plain := len(args) >= 4 && Truthy(args[3])
	if plain || !strings.ContainsAny(pat, "^$*+?.([%-") {
		start := int(strIndex(int64(init), int64(len(src))))
		if start < 0 {
			start = 0
		}
		if start > len(src) {
			return []Value{nil}, nil
		}
		idx := strings.Index(src[start:], pat)
		if idx < 0 {
			return []Value{nil}, nil
		}
		return []Value{int64(start + idx + 1), int64(start + idx + len(pat))}, nil
	}
	m, err := luapattern.Find(src, pat, init)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []Value{nil}, nil
	}
	result := []Value{int64(m.Start + 1), int64(m.End)}
	if len(m.Captures) > 0 {
		result = append(result, captureValues(src, m)...)
	}
	return result, nil
}

func stringMatch(s *State, args []Value) ([]Value, error) {
	src, err := strArg(args, 0, "match")
	if err != nil {
		return nil, err
	}
	pat, err := strArg(args, 1, "match")
	if err != nil {
		return nil, err
	}
	init := 1
	if len(args) >= 3 {
		if i, ok := ToInteger(args[2]); ok {
			init = int(i)
		}
	}
	m, err := luapattern.Find(src, pat, init)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []Value{nil}, nil
	}
	return captureValues(src, m), nil
}

func stringGmatch(s *State, args []Value) ([]Value, error) {
	src, err := strArg(args, 0, "gmatch")
	if err != nil {
		return nil, err
	}
	pat, err := strArg(args, 1, "gmatch")
	if err != nil {
		return nil, err
	}
	pos := 0
	iter := NewGoFunction("gmatch_iterator", func(s *State, args []Value) ([]Value, error) {
		for pos <= len(src) {
			m, err := luapattern.Find(src, pat, pos+1)
			if err != nil {
				return nil, err
			}
			if m == nil {
				return nil, nil
			}
			if m.End == m.Start {
				pos = m.End + 1
			} else {
				pos = m.End
			}
			return captureValues(src, m), nil
		}
		return nil, nil
	})
	return []Value{iter}, nil
}

func stringGsub(s *State, args []Value) ([]Value, error) {
	src, err := strArg(args, 0, "gsub")
	if err != nil {
		return nil, err
	}
	pat, err := strArg(args, 1, "gsub")
	if err != nil {
		return nil, err
	}
	repl := arg(args, 2)
	maxN := int64(-1)
	if len(args) >= 4 {
		if n, ok := ToInteger(args[3]); ok {
			maxN = n
		}
	}

	var b strings.Builder
	pos := 0
	count := int64(0)
	for pos <= len(src) {
		if maxN >= 0 && count >= maxN {
			break
		}
		m, err := luapattern.Find(src, pat, pos+1)
		if err != nil {
			return nil, err
		}
		if m == nil {
			break
		}
		b.WriteString(src[pos:m.Start])
		caps := captureValues(src, m)
		whole := src[m.Start:m.End]
		replacement, err := gsubReplacement(s, repl, whole, caps)
		if err != nil {
			return nil, err
		}
		b.WriteString(replacement)
		count++
		if m.End > m.Start {
			pos = m.End
		} else {
			if m.End < len(src) {
				b.WriteByte(src[m.End])
			}
			pos = m.End + 1
		}
	}
	if pos < len(src) {
		b.WriteString(src[pos:])
	}
	return []Value{b.String(), count}, nil
}

// gsubReplacement computes the replacement text for one gsub match,
// per lstrlib.c's str_gsub: a string replacement expands %0-%9
// references, a table is indexed by the first capture, and a function
// is called with the captures.
func gsubReplacement(s *State, repl Value, whole string, caps []Value) (string, error) {
	switch repl := repl.(type) {
	case string:
		return expandGsubTemplate(repl, whole, caps)
	case *Table:
		v := repl.Get(caps[0])
		if v == nil || v == false {
			return whole, nil
		}
		str, ok := v.(string)
		if !ok {
			return ToStringValue(v), nil
		}
		return str, nil
	default:
		v, err := s.Call(repl, caps)
		if err != nil {
			return "", err
		}
		result := first(v)
		if result == nil || result == false {
			return whole, nil
		}
		str, ok := result.(string)
		if !ok {
			return ToStringValue(result), nil
		}
		return str, nil
	}
}

func expandGsubTemplate(tmpl, whole string, caps []Value) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i == len(tmpl)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		d := tmpl[i]
		switch {
		case d == '%':
			b.WriteByte('%')
		case d == '0':
			b.WriteString(whole)
		case d >= '1' && d <= '9':
			idx, _ := strconv.Atoi(string(d))
			if idx > len(caps) {
				return "", newRuntimeError("invalid capture index %%%d in replacement string", idx)
			}
			b.WriteString(ToStringValue(caps[idx-1]))
		default:
			return "", newRuntimeError("invalid use of '%%' in replacement string")
		}
	}
	return b.String(), nil
}
