// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"

	"lua54.dev/core/internal/ast"
)

// execBlock runs a sequence of statements in their own nested scope,
// handling `goto`/label resolution local to the block (per §3.3.4, a
// `goto` can only jump to a label visible in the same or an enclosing
// block) and closing any to-be-closed (`<close>`) locals declared in
// it, in reverse declaration order, when the block exits for any
// reason (§3.3.8).
func (s *State) execBlock(parent *Environment, block ast.Block) (ctrl control, err error) {
	env := newEnvironment(parent)
	var tbc []Value
	defer func() {
		if closeErr := s.closeTBC(tbc, err); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	idx := 0
	for idx < len(block.Stmts) {
		stmt := block.Stmts[idx]
		c, e := s.execStmt(env, stmt, &tbc)
		if e != nil {
			return noControl, e
		}
		if c.signal == signalGoto {
			target := findLabel(block.Stmts, c.gotoLabel)
			if target >= 0 {
				idx = target + 1
				continue
			}
			return c, nil
		}
		if c.signal != signalNone {
			return c, nil
		}
		idx++
	}
	return noControl, nil
}

func findLabel(stmts []ast.Stmt, name string) int {
	for i, st := range stmts {
		if lbl, ok := st.(*ast.LabelStmt); ok && lbl.Name == name {
			return i
		}
	}
	return -1
}

// closeTBC closes to-be-closed values in reverse order, per §3.3.8. If
// bodyErr is non-nil, it is passed to each `__close` call as Lua's
// "errorobj". It returns the first error raised by a `__close` call, in
// closing order; execBlock reports that error only when the block body
// finished without error, so a `__close` error raised while another
// error is propagating is discarded.
func (s *State) closeTBC(tbc []Value, bodyErr error) error {
	var firstErr error
	for i := len(tbc) - 1; i >= 0; i-- {
		v := tbc[i]
		if v == nil || v == false {
			continue
		}
		mm := s.getMetamethod(v, metaClose)
		if mm == nil {
			continue
		}
		errVal := Value(nil)
		if bodyErr != nil {
			errVal = ErrorValue(bodyErr)
		}
		if _, err := s.Call(mm, []Value{v, errVal}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// execStmt executes one statement, returning the control-flow signal
// (if any) it produced. tbc accumulates to-be-closed locals declared by
// a LocalStmt for the enclosing execBlock to close on exit.
func (s *State) execStmt(env *Environment, stmt ast.Stmt, tbc *[]Value) (control, error) {
	switch stmt := stmt.(type) {
	case *ast.EmptyStmt:
		return noControl, nil

	case *ast.LocalStmt:
		values, err := s.evalExprList(env, stmt.Exprs, len(stmt.Names))
		if err != nil {
			return noControl, err
		}
		for i, name := range stmt.Names {
			v := values[i]
			attrib := stmt.Attribs[i]
			if attrib == ast.AttribClose {
				if !closable(v) || (Truthy(v) && s.getMetamethod(v, metaClose) == nil) {
					return noControl, newRuntimeErrorAt(stmt.Pos, "variable '%s' got a non-closable value", name)
				}
				*tbc = append(*tbc, v)
			}
			env.define(name, v, attrib)
		}
		return noControl, nil

	case *ast.AssignStmt:
		values, err := s.evalExprList(env, stmt.RHS, len(stmt.LHS))
		if err != nil {
			return noControl, err
		}
		for i, target := range stmt.LHS {
			if err := s.assign(env, target, values[i]); err != nil {
				return noControl, err
			}
		}
		return noControl, nil

	case *ast.CallStmt:
		_, err := s.evalCall(env, stmt.Call)
		return noControl, err

	case *ast.DoStmt:
		return s.execBlock(env, stmt.Body)

	case *ast.WhileStmt:
		for {
			cond, err := s.evalExpr(env, stmt.Cond)
			if err != nil {
				return noControl, err
			}
			if !Truthy(cond) {
				return noControl, nil
			}
			c, err := s.execBlock(env, stmt.Body)
			if err != nil {
				return noControl, err
			}
			if c.signal == signalBreak {
				return noControl, nil
			}
			if c.signal != signalNone {
				return c, nil
			}
		}

	case *ast.RepeatStmt:
		for {
			// The until condition is evaluated in the scope of the body
			// (§3.3.4), so this loop manages the body's scope itself
			// instead of delegating to execBlock.
			bodyEnv := newEnvironment(env)
			var tbcInner []Value
			c, err := s.execRepeatBody(bodyEnv, stmt.Body, &tbcInner)
			if err != nil {
				_ = s.closeTBC(tbcInner, err)
				return noControl, err
			}
			if c.signal == signalBreak {
				_ = s.closeTBC(tbcInner, nil)
				return noControl, nil
			}
			if c.signal != signalNone {
				_ = s.closeTBC(tbcInner, nil)
				return c, nil
			}
			cond, err := s.evalExpr(bodyEnv, stmt.Cond)
			closeErr := s.closeTBC(tbcInner, err)
			if err == nil {
				err = closeErr
			}
			if err != nil {
				return noControl, err
			}
			if Truthy(cond) {
				return noControl, nil
			}
		}

	case *ast.IfStmt:
		for _, clause := range stmt.Clauses {
			cond, err := s.evalExpr(env, clause.Cond)
			if err != nil {
				return noControl, err
			}
			if Truthy(cond) {
				return s.execBlock(env, clause.Body)
			}
		}
		if stmt.Else != nil {
			return s.execBlock(env, *stmt.Else)
		}
		return noControl, nil

	case *ast.NumericForStmt:
		return s.execNumericFor(env, stmt)

	case *ast.GenericForStmt:
		return s.execGenericFor(env, stmt)

	case *ast.FunctionStmt:
		return noControl, s.execFunctionStmt(env, stmt)

	case *ast.ReturnStmt:
		values, err := s.evalExprList(env, stmt.Exprs, -1)
		if err != nil {
			return noControl, err
		}
		return control{signal: signalReturn, returnValue: values}, nil

	case *ast.BreakStmt:
		return control{signal: signalBreak}, nil

	case *ast.GotoStmt:
		return control{signal: signalGoto, gotoLabel: stmt.Label}, nil

	case *ast.LabelStmt:
		return noControl, nil

	default:
		return noControl, fmt.Errorf("lua: unhandled statement %T", stmt)
	}
}

// execRepeatBody is execBlock without creating a fresh child scope,
// since the repeat statement's caller already created the scope that
// the until-condition needs to see.
func (s *State) execRepeatBody(env *Environment, block ast.Block, tbc *[]Value) (control, error) {
	idx := 0
	for idx < len(block.Stmts) {
		stmt := block.Stmts[idx]
		c, err := s.execStmt(env, stmt, tbc)
		if err != nil {
			return noControl, err
		}
		if c.signal == signalGoto {
			target := findLabel(block.Stmts, c.gotoLabel)
			if target >= 0 {
				idx = target + 1
				continue
			}
			return c, nil
		}
		if c.signal != signalNone {
			return c, nil
		}
		idx++
	}
	return noControl, nil
}

func closable(v Value) bool {
	if v == nil || v == false {
		return true
	}
	switch v.(type) {
	case *Table, *Userdata:
		return true
	}
	return false
}

func (s *State) execFunctionStmt(env *Environment, stmt *ast.FunctionStmt) error {
	fn := &Function{
		Name:     stmt.Func.Name,
		Params:   stmt.Func.Params,
		IsVararg: stmt.Func.IsVararg,
		Body:     stmt.Func.Body,
		Env:      env,
	}
	if stmt.IsLocal {
		env.define(stmt.LocalName, nil, ast.AttribNone)
		fn.Env = env // allows recursive local functions to see themselves
		env.vars[stmt.LocalName].value = fn
		return nil
	}
	return s.assign(env, stmt.Target, fn)
}

func (s *State) execNumericFor(env *Environment, stmt *ast.NumericForStmt) (control, error) {
	startV, err := s.evalExpr(env, stmt.Start)
	if err != nil {
		return noControl, err
	}
	stopV, err := s.evalExpr(env, stmt.Stop)
	if err != nil {
		return noControl, err
	}
	var stepV Value = int64(1)
	if stmt.Step != nil {
		stepV, err = s.evalExpr(env, stmt.Step)
		if err != nil {
			return noControl, err
		}
	}

	start, startIsInt := startV.(int64)
	stop, stopIsInt := stopV.(int64)
	step, stepIsInt := stepV.(int64)
	if startIsInt && stopIsInt && stepIsInt {
		if step == 0 {
			return noControl, newRuntimeErrorAt(stmt.Pos, "'for' step is zero")
		}
		for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
			loopEnv := newEnvironment(env)
			loopEnv.define(stmt.Name, i, ast.AttribNone)
			c, err := s.execBlock(loopEnv, stmt.Body)
			if err != nil {
				return noControl, err
			}
			if c.signal == signalBreak {
				return noControl, nil
			}
			if c.signal != signalNone {
				return c, nil
			}
			// Detect overflow wraparound for the loop counter.
			if step > 0 && i+step < i {
				break
			}
			if step < 0 && i+step > i {
				break
			}
		}
		return noControl, nil
	}

	startF, ok1 := ToNumber(startV)
	stopF, ok2 := ToNumber(stopV)
	stepF, ok3 := ToNumber(stepV)
	if !ok1 || !ok2 || !ok3 {
		return noControl, newRuntimeErrorAt(stmt.Pos, "'for' initial value must be a number")
	}
	if stepF == 0 {
		return noControl, newRuntimeErrorAt(stmt.Pos, "'for' step is zero")
	}
	for i := startF; (stepF > 0 && i <= stopF) || (stepF < 0 && i >= stopF); i += stepF {
		loopEnv := newEnvironment(env)
		loopEnv.define(stmt.Name, i, ast.AttribNone)
		c, err := s.execBlock(loopEnv, stmt.Body)
		if err != nil {
			return noControl, err
		}
		if c.signal == signalBreak {
			return noControl, nil
		}
		if c.signal != signalNone {
			return c, nil
		}
	}
	return noControl, nil
}

func (s *State) execGenericFor(env *Environment, stmt *ast.GenericForStmt) (control, error) {
	ctrl, err := s.evalExprList(env, stmt.Exprs, 3)
	if err != nil {
		return noControl, err
	}
	iterFn, state, control0 := ctrl[0], ctrl[1], ctrl[2]
	for {
		results, err := s.Call(iterFn, []Value{state, control0})
		if err != nil {
			return noControl, err
		}
		if len(results) == 0 || results[0] == nil {
			return noControl, nil
		}
		control0 = results[0]
		for len(results) < len(stmt.Names) {
			results = append(results, nil)
		}

		loopEnv := newEnvironment(env)
		for i, name := range stmt.Names {
			loopEnv.define(name, results[i], ast.AttribNone)
		}
		c, err := s.execBlock(loopEnv, stmt.Body)
		if err != nil {
			return noControl, err
		}
		if c.signal == signalBreak {
			return noControl, nil
		}
		if c.signal != signalNone {
			return c, nil
		}
	}
}

// assign stores value into the variable or table slot described by
// target, which must be a NameExpr or IndexExpr (the only valid
// assignment targets per the grammar).
func (s *State) assign(env *Environment, target ast.Expr, value Value) error {
	switch target := target.(type) {
	case *ast.NameExpr:
		if v, ok := env.resolve(target.Name); ok {
			if v.attrib == ast.AttribConst || v.attrib == ast.AttribClose {
				return newRuntimeErrorAt(target.Pos, "attempt to assign to const variable '%s'", target.Name)
			}
			v.value = value
			return nil
		}
		return s.Globals.Set(target.Name, value)
	case *ast.IndexExpr:
		obj, err := s.evalExpr(env, target.Obj)
		if err != nil {
			return err
		}
		key, err := s.evalExpr(env, target.Key)
		if err != nil {
			return err
		}
		return s.newIndex(obj, key, value)
	default:
		return newRuntimeError("cannot assign to expression")
	}
}

// evalExprList evaluates a comma-separated expression list, expanding
// only the final expression to multiple values (if it is a call or
// `...`), per §3.4's adjustment rules. If want >= 0, the result is
// padded with nils or truncated to exactly that many values; want < 0
// requests every produced value (used for `return` and for the last
// argument of a call).
func (s *State) evalExprList(env *Environment, exprs []ast.Expr, want int) ([]Value, error) {
	var values []Value
	for i, expr := range exprs {
		if i == len(exprs)-1 {
			vs, err := s.evalMulti(env, expr)
			if err != nil {
				return nil, err
			}
			values = append(values, vs...)
		} else {
			v, err := s.evalExpr(env, expr)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}
	if want < 0 {
		return values, nil
	}
	for len(values) < want {
		values = append(values, nil)
	}
	return values[:want], nil
}

// evalMulti evaluates expr in a context where it may produce more than
// one value: a call or `...`. Any other expression produces exactly
// one value.
func (s *State) evalMulti(env *Environment, expr ast.Expr) ([]Value, error) {
	switch expr := expr.(type) {
	case *ast.CallExpr:
		return s.evalCall(env, expr)
	case *ast.VarargExpr:
		va, ok := env.resolveVarargs()
		if !ok {
			return nil, newRuntimeErrorAt(expr.Pos, "cannot use '...' outside a vararg function")
		}
		return va, nil
	default:
		v, err := s.evalExpr(env, expr)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}
}

// evalExpr evaluates expr to exactly one value.
func (s *State) evalExpr(env *Environment, expr ast.Expr) (Value, error) {
	switch expr := expr.(type) {
	case *ast.NilExpr:
		return nil, nil
	case *ast.TrueExpr:
		return true, nil
	case *ast.FalseExpr:
		return false, nil
	case *ast.VarargExpr:
		va, ok := env.resolveVarargs()
		if !ok {
			return nil, newRuntimeErrorAt(expr.Pos, "cannot use '...' outside a vararg function")
		}
		return first(va), nil
	case *ast.IntExpr:
		return expr.Value, nil
	case *ast.FloatExpr:
		return expr.Value, nil
	case *ast.StringExpr:
		return expr.Value, nil
	case *ast.NameExpr:
		if v, ok := env.resolve(expr.Name); ok {
			return v.value, nil
		}
		return s.Globals.Get(expr.Name), nil
	case *ast.ParenExpr:
		return s.evalExpr(env, expr.Inner)
	case *ast.IndexExpr:
		obj, err := s.evalExpr(env, expr.Obj)
		if err != nil {
			return nil, err
		}
		key, err := s.evalExpr(env, expr.Key)
		if err != nil {
			return nil, err
		}
		v, err := s.index(obj, key)
		if err != nil {
			return nil, annotateIndexError(err, expr)
		}
		return v, nil
	case *ast.CallExpr:
		results, err := s.evalCall(env, expr)
		if err != nil {
			return nil, err
		}
		return first(results), nil
	case *ast.FunctionExpr:
		return &Function{
			Name:     expr.Name,
			Params:   expr.Params,
			IsVararg: expr.IsVararg,
			Body:     expr.Body,
			Env:      env,
		}, nil
	case *ast.TableExpr:
		return s.evalTable(env, expr)
	case *ast.BinaryExpr:
		return s.evalBinary(env, expr)
	case *ast.UnaryExpr:
		return s.evalUnary(env, expr)
	default:
		return nil, fmt.Errorf("lua: unhandled expression %T", expr)
	}
}

func annotateIndexError(err error, expr *ast.IndexExpr) error {
	re, ok := err.(*runtimeError)
	if !ok || re.pos.Line != 0 {
		return err
	}
	if name, ok := expr.Obj.(*ast.NameExpr); ok {
		return newRuntimeErrorAt(expr.Pos, "%s (global '%s')", re.message, name.Name)
	}
	return newRuntimeErrorAt(expr.Pos, "%s", re.message)
}

func (s *State) evalTable(env *Environment, expr *ast.TableExpr) (Value, error) {
	t := NewTable(len(expr.Fields))
	arrayIndex := int64(1)
	for i, field := range expr.Fields {
		if field.Key != nil {
			key, err := s.evalExpr(env, field.Key)
			if err != nil {
				return nil, err
			}
			value, err := s.evalExpr(env, field.Value)
			if err != nil {
				return nil, err
			}
			if err := t.Set(key, value); err != nil {
				return nil, err
			}
			continue
		}
		if i == len(expr.Fields)-1 {
			values, err := s.evalMulti(env, field.Value)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				t.Set(arrayIndex, v)
				arrayIndex++
			}
			continue
		}
		value, err := s.evalExpr(env, field.Value)
		if err != nil {
			return nil, err
		}
		t.Set(arrayIndex, value)
		arrayIndex++
	}
	return t, nil
}

func (s *State) evalBinary(env *Environment, expr *ast.BinaryExpr) (Value, error) {
	switch expr.Op {
	case ast.OpAnd:
		l, err := s.evalExpr(env, expr.LHS)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return s.evalExpr(env, expr.RHS)
	case ast.OpOr:
		l, err := s.evalExpr(env, expr.LHS)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return s.evalExpr(env, expr.RHS)
	}

	l, err := s.evalExpr(env, expr.LHS)
	if err != nil {
		return nil, err
	}
	r, err := s.evalExpr(env, expr.RHS)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpPow, ast.OpIDiv,
		ast.OpBAnd, ast.OpBOr, ast.OpBXor, ast.OpShl, ast.OpShr:
		return s.arith(expr.Op, l, r)
	case ast.OpConcat:
		return s.concat(l, r)
	case ast.OpEq:
		eq, err := s.equals(l, r)
		return eq, err
	case ast.OpNotEq:
		eq, err := s.equals(l, r)
		return !eq, err
	case ast.OpLess:
		return s.less(l, r)
	case ast.OpLessEq:
		return s.lessEqual(l, r)
	case ast.OpGreater:
		return s.less(r, l)
	case ast.OpGreaterEq:
		return s.lessEqual(r, l)
	default:
		return nil, fmt.Errorf("lua: unhandled binary operator %v", expr.Op)
	}
}

func (s *State) evalUnary(env *Environment, expr *ast.UnaryExpr) (Value, error) {
	v, err := s.evalExpr(env, expr.Operand)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case ast.OpNeg:
		return s.unaryMinus(v)
	case ast.OpNot:
		return !Truthy(v), nil
	case ast.OpLen:
		return s.length(v)
	case ast.OpBNot:
		return s.bitwiseNot(v)
	default:
		return nil, fmt.Errorf("lua: unhandled unary operator %v", expr.Op)
	}
}

// evalCall evaluates a function or method call expression to its full
// result list.
func (s *State) evalCall(env *Environment, expr *ast.CallExpr) ([]Value, error) {
	fnVal, err := s.evalExpr(env, expr.Fn)
	if err != nil {
		return nil, err
	}
	var args []Value
	if expr.Method != "" {
		method, err := s.index(fnVal, expr.Method)
		if err != nil {
			return nil, err
		}
		args = append(args, fnVal)
		fnVal = method
	}
	argValues, err := s.evalExprList(env, expr.Args, -1)
	if err != nil {
		return nil, err
	}
	args = append(args, argValues...)
	results, err := s.Call(fnVal, args)
	if err != nil {
		return nil, annotateCallError(err, expr)
	}
	return results, nil
}

func annotateCallError(err error, expr *ast.CallExpr) error {
	re, ok := err.(*runtimeError)
	if !ok || re.pos.Line != 0 {
		return err
	}
	return newRuntimeErrorAt(expr.Pos, "%s", re.message)
}
