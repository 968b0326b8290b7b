// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"math"
	"math/rand"
)

// openMath installs the `math` library, grounded on
// [lua54.dev/core/internal/lua]'s mathlib.go: the full §6.7 surface
// except the `math.random` reproducible-state variant, which needs no
// host-level source object here since math/rand's top-level functions
// already carry a shared, reseedable generator.
func openMath(s *State) {
	m := NewTable(0)
	m.Set("pi", math.Pi)
	m.Set("huge", math.Inf(1))
	m.Set("maxinteger", int64(math.MaxInt64))
	m.Set("mininteger", int64(math.MinInt64))

	reg := map[string]GoFunction{
		"abs":        mathAbs,
		"ceil":       math1Int(math.Ceil),
		"floor":      math1Int(math.Floor),
		"sqrt":       math1(math.Sqrt),
		"sin":        math1(math.Sin),
		"cos":        math1(math.Cos),
		"tan":        math1(math.Tan),
		"asin":       math1(math.Asin),
		"acos":       math1(math.Acos),
		"atan":       mathAtan,
		"deg":        math1(func(x float64) float64 { return x * 180 / math.Pi }),
		"rad":        math1(func(x float64) float64 { return x * math.Pi / 180 }),
		"exp":        math1(math.Exp),
		"log":        mathLog,
		"fmod":       mathFmod,
		"modf":       mathModf,
		"max":        mathMax,
		"min":        mathMin,
		"random":     mathRandom,
		"randomseed": mathRandomSeed,
		"tointeger":  mathToInteger,
		"type":       mathType,
		"ult":        mathUlt,
	}
	for name, fn := range reg {
		m.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("math", m)
}

func math1(f func(float64) float64) GoFunction {
	return func(s *State, args []Value) ([]Value, error) {
		n, ok := ToNumber(arg(args, 0))
		if !ok {
			return nil, argError(1, "math", "number", arg(args, 0))
		}
		return []Value{f(n)}, nil
	}
}

func math1Int(f func(float64) float64) GoFunction {
	return func(s *State, args []Value) ([]Value, error) {
		if i, ok := arg(args, 0).(int64); ok {
			return []Value{i}, nil
		}
		n, ok := ToNumber(arg(args, 0))
		if !ok {
			return nil, argError(1, "math", "number", arg(args, 0))
		}
		r := f(n)
		if i, ok := floatToInteger(r); ok {
			return []Value{i}, nil
		}
		return []Value{r}, nil
	}
}

func mathAbs(s *State, args []Value) ([]Value, error) {
	switch v := arg(args, 0).(type) {
	case int64:
		if v < 0 {
			return []Value{-v}, nil
		}
		return []Value{v}, nil
	default:
		n, ok := ToNumber(v)
		if !ok {
			return nil, argError(1, "abs", "number", v)
		}
		return []Value{math.Abs(n)}, nil
	}
}

func mathAtan(s *State, args []Value) ([]Value, error) {
	y, ok := ToNumber(arg(args, 0))
	if !ok {
		return nil, argError(1, "atan", "number", arg(args, 0))
	}
	x := 1.0
	if len(args) >= 2 {
		x, ok = ToNumber(args[1])
		if !ok {
			return nil, argError(2, "atan", "number", args[1])
		}
	}
	return []Value{math.Atan2(y, x)}, nil
}

func mathLog(s *State, args []Value) ([]Value, error) {
	x, ok := ToNumber(arg(args, 0))
	if !ok {
		return nil, argError(1, "log", "number", arg(args, 0))
	}
	if len(args) < 2 {
		return []Value{math.Log(x)}, nil
	}
	base, ok := ToNumber(args[1])
	if !ok {
		return nil, argError(2, "log", "number", args[1])
	}
	switch base {
	case 2:
		return []Value{math.Log2(x)}, nil
	case 10:
		return []Value{math.Log10(x)}, nil
	default:
		return []Value{math.Log(x) / math.Log(base)}, nil
	}
}

func mathFmod(s *State, args []Value) ([]Value, error) {
	if ai, aok := arg(args, 0).(int64); aok {
		if bi, bok := arg(args, 1).(int64); bok {
			if bi == 0 {
				return nil, argErrorf(2, "fmod", "zero")
			}
			return []Value{ai % bi}, nil
		}
	}
	a, ok := ToNumber(arg(args, 0))
	if !ok {
		return nil, argError(1, "fmod", "number", arg(args, 0))
	}
	b, ok := ToNumber(arg(args, 1))
	if !ok {
		return nil, argError(2, "fmod", "number", arg(args, 1))
	}
	return []Value{math.Mod(a, b)}, nil
}

func mathModf(s *State, args []Value) ([]Value, error) {
	x, ok := ToNumber(arg(args, 0))
	if !ok {
		return nil, argError(1, "modf", "number", arg(args, 0))
	}
	i, f := math.Modf(x)
	return []Value{i, f}, nil
}

func mathMax(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, argErrorf(1, "max", "value expected")
	}
	best := args[0]
	for _, v := range args[1:] {
		less, err := s.less(best, v)
		if err != nil {
			return nil, err
		}
		if less {
			best = v
		}
	}
	return []Value{best}, nil
}

func mathMin(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, argErrorf(1, "min", "value expected")
	}
	best := args[0]
	for _, v := range args[1:] {
		less, err := s.less(v, best)
		if err != nil {
			return nil, err
		}
		if less {
			best = v
		}
	}
	return []Value{best}, nil
}

func mathRandom(s *State, args []Value) ([]Value, error) {
	switch len(args) {
	case 0:
		return []Value{rand.Float64()}, nil
	case 1:
		m, ok := ToInteger(args[0])
		if !ok {
			return nil, argError(1, "random", "number", args[0])
		}
		if m < 1 {
			return nil, argErrorf(1, "random", "interval is empty")
		}
		return []Value{1 + rand.Int63n(m)}, nil
	default:
		lo, ok1 := ToInteger(args[0])
		hi, ok2 := ToInteger(args[1])
		if !ok1 || !ok2 {
			return nil, argErrorf(1, "random", "number expected")
		}
		if lo > hi {
			return nil, argErrorf(2, "random", "interval is empty")
		}
		return []Value{lo + rand.Int63n(hi-lo+1)}, nil
	}
}

func mathRandomSeed(s *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, nil
	}
	seed, _ := ToInteger(args[0])
	rand.Seed(seed)
	return nil, nil
}

func mathToInteger(s *State, args []Value) ([]Value, error) {
	switch v := arg(args, 0).(type) {
	case int64:
		return []Value{v}, nil
	case float64:
		if i, ok := floatToInteger(v); ok {
			return []Value{i}, nil
		}
	}
	return []Value{nil}, nil
}

func mathType(s *State, args []Value) ([]Value, error) {
	switch arg(args, 0).(type) {
	case int64:
		return []Value{"integer"}, nil
	case float64:
		return []Value{"float"}, nil
	default:
		return []Value{nil}, nil
	}
}

func mathUlt(s *State, args []Value) ([]Value, error) {
	a, ok1 := ToInteger(arg(args, 0))
	b, ok2 := ToInteger(arg(args, 1))
	if !ok1 || !ok2 {
		return nil, argErrorf(1, "ult", "number expected")
	}
	return []Value{uint64(a) < uint64(b)}, nil
}
