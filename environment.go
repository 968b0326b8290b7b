// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import "lua54.dev/core/internal/ast"

// Environment is one lexical scope: a set of local variable bindings
// plus a link to the enclosing scope. A [Function] closes over the
// Environment active at the point it was defined, which is how
// upvalues arise naturally from Go's own closure semantics instead of
// needing an explicit upvalue-index table the way a register VM does.
type Environment struct {
	parent *Environment
	vars   map[string]*variable

	// funcBoundary marks the parameter scope created for a function
	// call: the point where `...` resolution (and, eventually, upvalue
	// capture analysis) stops walking outward past the call site into
	// the closure's defining scope.
	funcBoundary bool
	isVararg     bool
	varargs      []Value
}

type variable struct {
	value  Value
	attrib ast.Attrib
}

// newEnvironment returns a scope nested inside parent. parent may be
// nil for the top-level (global) scope.
func newEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]*variable)}
}

// newFunctionScope returns the parameter scope for a call to a closure
// defined in parent's chain, with its own `...` bound to varargs if
// isVararg is set.
func newFunctionScope(parent *Environment, isVararg bool, varargs []Value) *Environment {
	e := newEnvironment(parent)
	e.funcBoundary = true
	e.isVararg = isVararg
	e.varargs = varargs
	return e
}

// resolveVarargs returns the nearest enclosing function's `...` binding.
// ok is false if that function is not a vararg function.
func (e *Environment) resolveVarargs() ([]Value, bool) {
	for s := e; s != nil; s = s.parent {
		if s.funcBoundary {
			if !s.isVararg {
				return nil, false
			}
			return s.varargs, true
		}
	}
	return nil, false
}

// define introduces a new local binding in this scope, shadowing any
// binding of the same name in an enclosing scope.
func (e *Environment) define(name string, v Value, attrib ast.Attrib) {
	e.vars[name] = &variable{value: v, attrib: attrib}
}

// resolve walks the scope chain outward looking for name, returning the
// variable slot if found.
func (e *Environment) resolve(name string) (*variable, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}
