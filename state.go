// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"lua54.dev/core/internal/parser"
)

// maxCallDepth bounds recursive [State.Call] nesting, the tree-walking
// equivalent of [lua54.dev/core/internal/mylua]'s stack-overflow check
// on its register stack (that VM counts register slots; a tree-walker
// has no register stack, so it counts Go call frames instead).
const maxCallDepth = 200

// State is one Lua universe: its global table, registered metatables,
// and running coroutines. The zero value is not usable; construct one
// with [NewState].
type State struct {
	// Globals is the `_G` table: the environment every chunk's free
	// variables resolve against.
	Globals *Table

	// stringMeta is the shared metatable installed by the string
	// library so that `("x"):upper()` dispatches through `__index`.
	stringMeta *Table

	callDepth int

	// current is the coroutine presently executing on this state's
	// call stack, or main while running on the main thread.
	current *Coroutine
	main    *Coroutine

	// runGate enforces that at most one coroutine body runs at a time,
	// mirroring Lua's single-threaded cooperative coroutine semantics.
	runGate *semaphore.Weighted
}

// NewState returns a fresh Lua universe with the standard library
// loaded, mirroring [lua54.dev/core/internal/mylua]'s OpenLibraries
// convenience but without an opt-out: this package's standard library
// is small enough that callers needing a bare environment can simply
// not call [State.DoString] with library-dependent code.
func NewState() *State {
	s := &State{Globals: NewTable(0), runGate: semaphore.NewWeighted(1)}
	s.main = &Coroutine{status: coroutineRunning, state: s}
	s.current = s.main
	openBase(s)
	openMath(s)
	openString(s)
	openTable(s)
	openOS(s)
	openIO(s)
	openUTF8(s)
	openCoroutine(s)
	openDebug(s)
	return s
}

// Load parses source into a callable chunk, named chunkName for error
// messages (conventionally "@filename" for files, as in the reference
// implementation's `luaL_loadfile`/`luaL_loadstring`).
func (s *State) Load(source []byte, chunkName string) (*Function, error) {
	chunk, err := parser.Parse(source, chunkName)
	if err != nil {
		return nil, err
	}
	return &Function{
		Name:     chunkName,
		IsVararg: true,
		Body:     chunk.Body,
		Env:      newEnvironment(nil),
	}, nil
}

// DoString parses and runs source as a chunk, returning its results.
func (s *State) DoString(source, chunkName string) ([]Value, error) {
	fn, err := s.Load([]byte(source), chunkName)
	if err != nil {
		return nil, err
	}
	return s.Call(fn, nil)
}

// Call invokes fn with args, dispatching to a Go host function or
// executing a Lua closure's body, and following the `__call`
// metamethod for any other callable value.
func (s *State) Call(fn Value, args []Value) ([]Value, error) {
	s.callDepth++
	defer func() { s.callDepth-- }()
	if s.callDepth > maxCallDepth {
		return nil, newRuntimeError("stack overflow")
	}

	f, ok := fn.(*Function)
	if !ok {
		mm := s.getMetamethod(fn, metaCall)
		if mm == nil {
			return nil, newRuntimeError("attempt to call a %s value", TypeName(fn))
		}
		return s.Call(mm, append([]Value{fn}, args...))
	}
	if f.Go != nil {
		return f.Go(s, args)
	}

	var varargs []Value
	if f.IsVararg && len(args) > len(f.Params) {
		varargs = args[len(f.Params):]
	}
	paramEnv := newFunctionScope(f.Env, f.IsVararg, varargs)
	for i, name := range f.Params {
		var v Value
		if i < len(args) {
			v = args[i]
		}
		paramEnv.define(name, v, 0)
	}

	c, err := s.execBlock(paramEnv, f.Body)
	if err != nil {
		return nil, err
	}
	if c.signal == signalReturn {
		return c.returnValue, nil
	}
	return nil, nil
}

// String renders a Lua value for diagnostic purposes (panics,
// default %v formatting), equivalent to `tostring` but without the
// ability to fail: if `__tostring` errors, it returns an
// "<error formatting TYPE: ERR>" placeholder instead.
func (s *State) String(v Value) string {
	str, err := s.tostring(v)
	if err != nil {
		return fmt.Sprintf("<error formatting %s: %v>", TypeName(v), err)
	}
	return str
}
