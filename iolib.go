// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// openIO installs a minimal `io` library: io.write/io.read against the
// process's stdout/stdin, grounded on
// [lua54.dev/core/internal/lua]'s iolib.go file-handle model but
// narrowed to the two streams every host process already has, rather
// than exposing arbitrary filesystem access.
func openIO(s *State) {
	t := NewTable(0)
	t.Set("write", NewGoFunction("write", ioWrite))
	t.Set("read", NewGoFunction("read", ioRead))
	s.Globals.Set("io", t)
}

func ioWrite(s *State, args []Value) ([]Value, error) {
	for _, v := range args {
		str, ok := concatOperand(v)
		if !ok {
			return nil, argErrorf(1, "write", "string expected, got %s", TypeName(v))
		}
		if _, err := io.WriteString(os.Stdout, str); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

var stdinReader = bufio.NewReader(os.Stdin)

func ioRead(s *State, args []Value) ([]Value, error) {
	format := "l"
	if str, ok := arg(args, 0).(string); ok {
		format = str
		for len(format) > 0 && format[0] == '*' {
			format = format[1:]
		}
	}
	switch format {
	case "l", "L":
		line, err := stdinReader.ReadString('\n')
		if err != nil && line == "" {
			return []Value{nil}, nil
		}
		if format == "l" {
			line = trimNewline(line)
		}
		return []Value{line}, nil
	case "n":
		var f float64
		if _, err := fmt.Fscan(stdinReader, &f); err != nil {
			return []Value{nil}, nil
		}
		return []Value{f}, nil
	case "a":
		data, _ := io.ReadAll(stdinReader)
		return []Value{string(data)}, nil
	default:
		return nil, argErrorf(1, "read", "invalid format")
	}
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
