// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

// openCoroutine installs the `coroutine` library atop [Coroutine]/
// [State.Resume]/[State.Yield]: create/resume/yield/status/wrap/
// isyieldable/running, per §3.6.1.
func openCoroutine(s *State) {
	t := NewTable(0)
	reg := map[string]GoFunction{
		"create":      coroutineCreate,
		"resume":      coroutineResume,
		"yield":       coroutineYield,
		"status":      coroutineStatusFn,
		"wrap":        coroutineWrap,
		"isyieldable": coroutineIsYieldable,
		"running":     coroutineRunningFn,
	}
	for name, fn := range reg {
		t.Set(name, NewGoFunction(name, fn))
	}
	s.Globals.Set("coroutine", t)
}

func coroutineCreate(s *State, args []Value) ([]Value, error) {
	fn, ok := arg(args, 0).(*Function)
	if !ok {
		return nil, argError(1, "create", "function", arg(args, 0))
	}
	return []Value{s.NewCoroutine(fn)}, nil
}

func coroutineResume(s *State, args []Value) ([]Value, error) {
	co, ok := arg(args, 0).(*Coroutine)
	if !ok {
		return nil, argError(1, "resume", "coroutine", arg(args, 0))
	}
	results, _, err := s.Resume(co, args[1:])
	if err != nil {
		return []Value{false, ErrorValue(err)}, nil
	}
	return append([]Value{true}, results...), nil
}

func coroutineYield(s *State, args []Value) ([]Value, error) {
	return s.Yield(args)
}

func coroutineStatusFn(s *State, args []Value) ([]Value, error) {
	co, ok := arg(args, 0).(*Coroutine)
	if !ok {
		return nil, argError(1, "status", "coroutine", arg(args, 0))
	}
	return []Value{co.Status().String()}, nil
}

func coroutineWrap(s *State, args []Value) ([]Value, error) {
	fn, ok := arg(args, 0).(*Function)
	if !ok {
		return nil, argError(1, "wrap", "function", arg(args, 0))
	}
	co := s.NewCoroutine(fn)
	wrapped := NewGoFunction("wrapped coroutine", func(s *State, args []Value) ([]Value, error) {
		results, _, err := s.Resume(co, args)
		if err != nil {
			return nil, err
		}
		return results, nil
	})
	return []Value{wrapped}, nil
}

func coroutineIsYieldable(s *State, args []Value) ([]Value, error) {
	return []Value{s.IsYieldable()}, nil
}

func coroutineRunningFn(s *State, args []Value) ([]Value, error) {
	co, isMain := s.Running()
	return []Value{co, isMain}, nil
}
