// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"os"
	"time"
)

// openOS installs the `os` library, grounded on
// [lua54.dev/core/internal/lua]'s oslib.go. `os.execute` and
// `os.remove`/`os.rename` are intentionally omitted: this package has
// no trust-level gating for host side effects, and shipping them
// unconditionally would let any loaded chunk touch the host
// filesystem or process table.
func openOS(s *State) {
	t := NewTable(0)
	reg := map[string]GoFunction{
		"time":    osTime,
		"clock":   osClock,
		"date":    osDate,
		"difftime": osDifftime,
		"getenv":  osGetenv,
		"exit":    osExit,
	}
	for name, fn := range reg {
		t.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("os", t)
}

var processStart = time.Now()

func osTime(s *State, args []Value) ([]Value, error) {
	return []Value{int64(time.Now().Unix())}, nil
}

func osClock(s *State, args []Value) ([]Value, error) {
	return []Value{time.Since(processStart).Seconds()}, nil
}

func osDifftime(s *State, args []Value) ([]Value, error) {
	t2, _ := ToNumber(arg(args, 0))
	t1, _ := ToNumber(arg(args, 1))
	return []Value{t2 - t1}, nil
}

func osDate(s *State, args []Value) ([]Value, error) {
	format := "%c"
	if str, ok := arg(args, 0).(string); ok {
		format = str
	}
	when := time.Now()
	if len(args) >= 2 {
		if n, ok := ToInteger(args[1]); ok {
			when = time.Unix(n, 0)
		}
	}
	utc := false
	if len(format) > 0 && format[0] == '!' {
		utc = true
		format = format[1:]
	}
	if utc {
		when = when.UTC()
	}
	if format == "*t" || format == "!*t" {
		t := NewTable(0)
		t.Set("year", int64(when.Year()))
		t.Set("month", int64(when.Month()))
		t.Set("day", int64(when.Day()))
		t.Set("hour", int64(when.Hour()))
		t.Set("min", int64(when.Minute()))
		t.Set("sec", int64(when.Second()))
		t.Set("wday", int64(when.Weekday())+1)
		t.Set("yday", int64(when.YearDay()))
		t.Set("isdst", false)
		return []Value{t}, nil
	}
	return []Value{when.Format(strftimeToGo(format))}, nil
}

// strftimeToGo maps the handful of strftime directives Lua scripts
// commonly pass to os.date into Go's reference-time layout.
func strftimeToGo(format string) string {
	replacer := map[byte]string{
		'Y': "2006", 'y': "06", 'm': "01", 'd': "02",
		'H': "15", 'M': "04", 'S': "05",
		'c': "Mon Jan  2 15:04:05 2006",
		'x': "01/02/06", 'X': "15:04:05",
	}
	out := make([]byte, 0, len(format))
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if layout, ok := replacer[format[i+1]]; ok {
				out = append(out, layout...)
				i++
				continue
			}
		}
		out = append(out, format[i])
	}
	return string(out)
}

func osGetenv(s *State, args []Value) ([]Value, error) {
	name, ok := arg(args, 0).(string)
	if !ok {
		return nil, argError(1, "getenv", "string", arg(args, 0))
	}
	if v, ok := os.LookupEnv(name); ok {
		return []Value{v}, nil
	}
	return []Value{nil}, nil
}

func osExit(s *State, args []Value) ([]Value, error) {
	code := 0
	switch v := arg(args, 0).(type) {
	case nil:
	case bool:
		if !v {
			code = 1
		}
	default:
		if n, ok := ToInteger(v); ok {
			code = int(n)
		}
	}
	os.Exit(code)
	return nil, nil
}
