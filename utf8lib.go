// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "unicode/utf8"

// openUTF8 installs the `utf8` library, grounded on
// [lua54.dev/core/internal/lua]'s utf8lib.go, implemented directly
// atop Go's unicode/utf8 since Lua's UTF-8 support is just a thin
// wrapper over the same encoding.
func openUTF8(s *State) {
	t := NewTable(0)
	t.Set("charpattern", "[\x00-\x7F\xC2-\xFD][\x80-\xBF]*")
	reg := map[string]GoFunction{
		"char":      utf8Char,
		"codepoint": utf8Codepoint,
		"len":       utf8Len,
		"offset":    utf8Offset,
		"codes":     utf8Codes,
	}
	for name, fn := range reg {
		t.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("utf8", t)
}

func utf8Char(s *State, args []Value) ([]Value, error) {
	buf := make([]byte, 0, len(args)*4)
	for i, v := range args {
		n, ok := ToInteger(v)
		if !ok {
			return nil, argError(i+1, "char", "number", v)
		}
		var tmp [utf8.UTFMax]byte
		w := utf8.EncodeRune(tmp[:], rune(n))
		buf = append(buf, tmp[:w]...)
	}
	return []Value{string(buf)}, nil
}

func utf8Codepoint(s *State, args []Value) ([]Value, error) {
	str, ok := arg(args, 0).(string)
	if !ok {
		return nil, argError(1, "codepoint", "string", arg(args, 0))
	}
	i := int64(1)
	if len(args) >= 2 {
		i, _ = ToInteger(args[1])
	}
	j := i
	if len(args) >= 3 {
		j, _ = ToInteger(args[2])
	}
	start := strIndex(i, int64(len(str)))
	stop := strIndex(j, int64(len(str))) + 1
	var out []Value
	for pos := int(start); pos < int(stop) && pos < len(str); {
		r, w := utf8.DecodeRuneInString(str[pos:])
		if r == utf8.RuneError && w <= 1 {
			return nil, newRuntimeError("invalid UTF-8 code")
		}
		out = append(out, int64(r))
		pos += w
	}
	return out, nil
}

func utf8Len(s *State, args []Value) ([]Value, error) {
	str, ok := arg(args, 0).(string)
	if !ok {
		return nil, argError(1, "len", "string", arg(args, 0))
	}
	n := int64(0)
	pos := 0
	for pos < len(str) {
		r, w := utf8.DecodeRuneInString(str[pos:])
		if r == utf8.RuneError && w <= 1 {
			return []Value{nil, int64(pos + 1)}, nil
		}
		n++
		pos += w
	}
	return []Value{n}, nil
}

func utf8Offset(s *State, args []Value) ([]Value, error) {
	str, ok := arg(args, 0).(string)
	if !ok {
		return nil, argError(1, "offset", "string", arg(args, 0))
	}
	n, _ := ToInteger(arg(args, 1))
	pos := int64(1)
	if n >= 0 {
		pos = 1
	} else {
		pos = int64(len(str)) + 1
	}
	if len(args) >= 3 {
		pos, _ = ToInteger(args[2])
	}
	p := int(strIndex(pos, int64(len(str))))
	if n > 0 {
		n--
		for n > 0 && p < len(str) {
			p++
			for p < len(str) && isUTF8Continuation(str[p]) {
				p++
			}
			n--
		}
	} else if n < 0 {
		for n < 0 && p > 0 {
			p--
			for p > 0 && isUTF8Continuation(str[p]) {
				p--
			}
			n++
		}
	}
	return []Value{int64(p + 1)}, nil
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}

func utf8Codes(s *State, args []Value) ([]Value, error) {
	str, ok := arg(args, 0).(string)
	if !ok {
		return nil, argError(1, "codes", "string", arg(args, 0))
	}
	iter := NewGoFunction("utf8_codes_iterator", func(s *State, args []Value) ([]Value, error) {
		i, _ := ToInteger(arg(args, 1))
		pos := int(i)
		if pos > 0 {
			_, w := utf8.DecodeRuneInString(str[pos-1:])
			pos += w - 1
		}
		if pos >= len(str) {
			return nil, nil
		}
		r, _ := utf8.DecodeRuneInString(str[pos:])
		return []Value{int64(pos + 1), int64(r)}, nil
	})
	return []Value{iter, str, int64(0)}, nil
}
