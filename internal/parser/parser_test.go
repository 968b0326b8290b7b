// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lua54.dev/core/internal/ast"
)

func TestParseAssignment(t *testing.T) {
	chunk, err := Parse([]byte("x = 1 + 2 * 3"), "test")
	require.NoError(t, err)
	require.Len(t, chunk.Body.Stmts, 1)

	assign, ok := chunk.Body.Stmts[0].(*ast.AssignStmt)
	require.True(t, ok, "expected *ast.AssignStmt, got %T", chunk.Body.Stmts[0])
	require.Len(t, assign.LHS, 1)
	require.Len(t, assign.RHS, 1)

	name, ok := assign.LHS[0].(*ast.NameExpr)
	require.True(t, ok)
	assert.Equal(t, "x", name.Name)

	// "+" binds looser than "*", so the top-level node must be the "+".
	bin, ok := assign.RHS[0].(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)

	mul, ok := bin.RHS.(*ast.BinaryExpr)
	require.True(t, ok, "expected the right-hand side of + to be the * node")
	assert.Equal(t, ast.OpMul, mul.Op)
}

func TestParseLocalWithAttribs(t *testing.T) {
	chunk, err := Parse([]byte(`local x <const>, y <close> = 1, f()`), "test")
	require.NoError(t, err)
	require.Len(t, chunk.Body.Stmts, 1)

	local, ok := chunk.Body.Stmts[0].(*ast.LocalStmt)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, local.Names)
	require.Equal(t, []ast.Attrib{ast.AttribConst, ast.AttribClose}, local.Attribs)
}

func TestParseFunctionStmt(t *testing.T) {
	chunk, err := Parse([]byte(`function t.obj:method(a, ...) return a end`), "test")
	require.NoError(t, err)
	require.Len(t, chunk.Body.Stmts, 1)

	fs, ok := chunk.Body.Stmts[0].(*ast.FunctionStmt)
	require.True(t, ok)
	assert.True(t, fs.IsMethod)
	require.NotNil(t, fs.Func)
	// Method definitions implicitly bind "self" as the first parameter.
	require.Equal(t, []string{"self", "a"}, fs.Func.Params)
	assert.True(t, fs.Func.IsVararg)
}

func TestParseTableConstructor(t *testing.T) {
	chunk, err := Parse([]byte(`t = {1, 2, x = 3, [4+1] = "five", ...}`), "test")
	require.NoError(t, err)
	assign := chunk.Body.Stmts[0].(*ast.AssignStmt)
	table := assign.RHS[0].(*ast.TableExpr)
	require.Len(t, table.Fields, 5)

	assert.Nil(t, table.Fields[0].Key)
	assert.Nil(t, table.Fields[1].Key)

	keyField, ok := table.Fields[2].Key.(*ast.StringExpr)
	require.True(t, ok)
	assert.Equal(t, "x", keyField.Value)

	_, ok = table.Fields[3].Key.(*ast.BinaryExpr)
	require.True(t, ok, "expected [4+1] key to parse as a binary expression")

	_, ok = table.Fields[4].Value.(*ast.VarargExpr)
	require.True(t, ok, "expected trailing field to be the vararg expression")
}

func TestParseControlFlow(t *testing.T) {
	src := `
		for i = 1, 10, 2 do
			if i == 5 then
				break
			elseif i == 3 then
				goto continue
			end
			::continue::
		end
	`
	chunk, err := Parse([]byte(src), "test")
	require.NoError(t, err)
	require.Len(t, chunk.Body.Stmts, 1)

	forStmt, ok := chunk.Body.Stmts[0].(*ast.NumericForStmt)
	require.True(t, ok)
	assert.Equal(t, "i", forStmt.Name)
	require.NotNil(t, forStmt.Step)

	require.Len(t, forStmt.Body.Stmts, 2)
	ifStmt, ok := forStmt.Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, ifStmt.Clauses, 2)

	_, ok = forStmt.Body.Stmts[1].(*ast.LabelStmt)
	require.True(t, ok)
}

func TestParseGenericFor(t *testing.T) {
	chunk, err := Parse([]byte(`for k, v in pairs(t) do print(k, v) end`), "test")
	require.NoError(t, err)
	gf, ok := chunk.Body.Stmts[0].(*ast.GenericForStmt)
	require.True(t, ok)
	assert.Equal(t, []string{"k", "v"}, gf.Names)
	require.Len(t, gf.Exprs, 1)
	_, ok = gf.Exprs[0].(*ast.CallExpr)
	require.True(t, ok)
}

func TestParseMethodCall(t *testing.T) {
	chunk, err := Parse([]byte(`obj:method(1, 2)`), "test")
	require.NoError(t, err)
	cs, ok := chunk.Body.Stmts[0].(*ast.CallStmt)
	require.True(t, ok)
	assert.Equal(t, "method", cs.Call.Method)
	require.Len(t, cs.Call.Args, 2)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte(`x = `), "test")
	assert.Error(t, err)
}

func TestSkipShebang(t *testing.T) {
	chunk, err := Parse([]byte("#!/usr/bin/env lua\nx = 1\n"), "test")
	require.NoError(t, err)
	require.Len(t, chunk.Body.Stmts, 1)
}
