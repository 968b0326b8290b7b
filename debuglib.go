// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

// openDebug installs a minimal `debug` library: just getmetatable/
// setmetatable, which bypass the `__metatable` protection check that
// the base library's versions respect, per §6.10. A tree-walker has no
// call-stack introspection to back `debug.traceback`/`debug.getinfo`
// with meaningful data, so those are left unimplemented rather than
// faked.
func openDebug(s *State) {
	t := NewTable(0)
	t.Set("getmetatable", NewGoFunction("getmetatable", debugGetMetatable))
	t.Set("setmetatable", NewGoFunction("setmetatable", debugSetMetatable))
	s.Globals.Set("debug", t)
}

func debugGetMetatable(s *State, args []Value) ([]Value, error) {
	meta := s.metatableOf(arg(args, 0))
	if meta == nil {
		return []Value{nil}, nil
	}
	return []Value{meta}, nil
}

func debugSetMetatable(s *State, args []Value) ([]Value, error) {
	t, ok := arg(args, 0).(*Table)
	if !ok {
		return nil, argError(1, "setmetatable", "table", arg(args, 0))
	}
	switch meta := arg(args, 1).(type) {
	case nil:
		t.SetMetatable(nil)
	case *Table:
		t.SetMetatable(meta)
	}
	return []Value{t}, nil
}
