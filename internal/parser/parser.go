// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package parser implements a recursive-descent, operator-precedence parser
// that turns Lua 5.4 source into the AST defined by
// [lua54.dev/core/internal/ast].
//
// The grammar and precedence table follow the Lua 5.4 reference manual
// exactly (and mirror the decomposition of
// zb.256lights.llc/pkg/internal/luacode's single-pass parser, one method per
// production), but this parser builds an AST instead of emitting bytecode.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"lua54.dev/core/internal/ast"
	"lua54.dev/core/internal/lualex"
)

// Severity classifies a [Diagnostic].
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Diagnostic is a located parse error, per SPEC_FULL.md §6.1.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	File     string
	Line     int
	Column   int
	Help     string
}

func (d *Diagnostic) Error() string {
	if d.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
}

func (p *Parser) errorf(pos lualex.Position, code, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		File:     p.chunkName,
		Line:     pos.Line,
		Column:   pos.Column,
	}
}

// Parse parses a complete Lua chunk from source, which may begin with a
// shebang line (`#!...`), per SPEC_FULL.md §4.1.
func Parse(source []byte, chunkName string) (*ast.Chunk, error) {
	source = skipShebang(source)
	p := &Parser{
		sc:        lualex.NewScanner(bytes.NewReader(source)),
		chunkName: chunkName,
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lualex.ErrorToken {
		return nil, p.errorf(p.tok.Position, "PARSE-001", "unexpected %v (want <eof>)", p.tok)
	}
	return &ast.Chunk{Name: chunkName, Body: body, Pos: lualex.Pos(1, 1)}, nil
}

// skipShebang blanks out a leading "#...\n" line (preserving line numbers
// for subsequent diagnostics) so the scanner never sees it.
func skipShebang(source []byte) []byte {
	if len(source) == 0 || source[0] != '#' {
		return source
	}
	i := bytes.IndexByte(source, '\n')
	out := bytes.Clone(source)
	end := len(out)
	if i >= 0 {
		end = i
	}
	for j := 0; j < end; j++ {
		out[j] = ' '
	}
	return out
}

// Parser is the parsing state for one chunk.
type Parser struct {
	sc        *lualex.Scanner
	tok       lualex.Token
	peeked    *lualex.Token
	chunkName string
}

func (p *Parser) advance() error {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.scan()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// peek returns the token following the current one without consuming it,
// mirroring lparser.c's luaX_lookahead (needed only to disambiguate
// `{ name = value }` record fields from `{ name }` positional fields in
// table constructors).
func (p *Parser) peek() (lualex.Token, error) {
	if p.peeked == nil {
		tok, err := p.scan()
		if err != nil {
			return lualex.Token{}, err
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *Parser) scan() (lualex.Token, error) {
	tok, err := p.sc.Scan()
	if err == nil {
		return tok, nil
	}
	if err == io.EOF {
		return lualex.Token{Kind: lualex.ErrorToken, Position: tok.Position}, nil
	}
	pos := tok.Position
	if !pos.IsValid() {
		pos = lualex.Pos(1, 1)
	}
	return lualex.Token{}, p.errorf(pos, "PARSE-000", "%v", err)
}

func (p *Parser) at(kind lualex.TokenKind) bool {
	return p.tok.Kind == kind
}

func (p *Parser) accept(kind lualex.TokenKind) (bool, error) {
	if p.tok.Kind != kind {
		return false, nil
	}
	if err := p.advance(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Parser) expect(kind lualex.TokenKind, want string) (lualex.Token, error) {
	if p.tok.Kind != kind {
		return lualex.Token{}, p.errorf(p.tok.Position, "PARSE-002", "unexpected %v (want %s)", p.tok, want)
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return lualex.Token{}, err
	}
	return tok, nil
}

func (p *Parser) expectName() (string, lualex.Position, error) {
	tok, err := p.expect(lualex.IdentifierToken, "<name>")
	if err != nil {
		return "", lualex.Position{}, err
	}
	return tok.Value, tok.Position, nil
}

var blockEnd = map[lualex.TokenKind]bool{
	lualex.ErrorToken:  true,
	lualex.EndToken:    true,
	lualex.ElseToken:   true,
	lualex.ElseifToken: true,
	lualex.UntilToken:  true,
}

func (p *Parser) block() (ast.Block, error) {
	var b ast.Block
	for !blockEnd[p.tok.Kind] {
		if p.tok.Kind == lualex.ReturnToken {
			stmt, err := p.returnStmt()
			if err != nil {
				return b, err
			}
			b.Stmts = append(b.Stmts, stmt)
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return b, err
		}
		if stmt != nil {
			b.Stmts = append(b.Stmts, stmt)
		}
	}
	return b, nil
}

func (p *Parser) statement() (ast.Stmt, error) {
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.SemiToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nil, nil
	case lualex.IfToken:
		return p.ifStmt()
	case lualex.WhileToken:
		return p.whileStmt()
	case lualex.DoToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.EndToken, "end"); err != nil {
			return nil, err
		}
		return &ast.DoStmt{ast.S(pos), body}, nil
	case lualex.ForToken:
		return p.forStmt()
	case lualex.RepeatToken:
		return p.repeatStmt()
	case lualex.FunctionToken:
		return p.funcStmt()
	case lualex.LocalToken:
		return p.localStmt()
	case lualex.LabelToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.LabelToken, "::"); err != nil {
			return nil, err
		}
		return &ast.LabelStmt{ast.S(pos), name}, nil
	case lualex.BreakToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{ast.S(pos)}, nil
	case lualex.GotoToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &ast.GotoStmt{ast.S(pos), name}, nil
	default:
		return p.exprStmt()
	}
}

func (p *Parser) ifStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	var clauses []ast.IfClause
	for {
		cond, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.ThenToken, "then"); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.IfClause{Cond: cond, Body: body})
		if p.tok.Kind != lualex.ElseifToken {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var elseBlock *ast.Block
	if ok, err := p.accept(lualex.ElseToken); err != nil {
		return nil, err
	} else if ok {
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		elseBlock = &body
	}
	if _, err := p.expect(lualex.EndToken, "end"); err != nil {
		return nil, err
	}
	return &ast.IfStmt{ast.S(pos), clauses, elseBlock}, nil
}

func (p *Parser) whileStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken, "do"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken, "end"); err != nil {
		return nil, err
	}
	return &ast.WhileStmt{ast.S(pos), cond, body}, nil
}

func (p *Parser) repeatStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.UntilToken, "until"); err != nil {
		return nil, err
	}
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStmt{ast.S(pos), body, cond}, nil
}

func (p *Parser) forStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	firstName, _, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lualex.AssignToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		start, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.CommaToken, ","); err != nil {
			return nil, err
		}
		stop, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		var step ast.Expr
		if ok, err := p.accept(lualex.CommaToken); err != nil {
			return nil, err
		} else if ok {
			step, err = p.expr(0)
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lualex.DoToken, "do"); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.EndToken, "end"); err != nil {
			return nil, err
		}
		return &ast.NumericForStmt{ast.S(pos), firstName, start, stop, step, body}, nil
	}

	names := []string{firstName}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if _, err := p.expect(lualex.InToken, "in"); err != nil {
		return nil, err
	}
	exprs, err := p.explist()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken, "do"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken, "end"); err != nil {
		return nil, err
	}
	return &ast.GenericForStmt{ast.S(pos), names, exprs, body}, nil
}

func (p *Parser) funcStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, namePos, err := p.expectName()
	if err != nil {
		return nil, err
	}
	var target ast.Expr = &ast.NameExpr{ast.E(namePos), name}
	fullName := name
	isMethod := false
	for p.tok.Kind == lualex.DotToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, fieldPos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		target = &ast.IndexExpr{ast.E(fieldPos), target, &ast.StringExpr{ast.E(fieldPos), field}, true}
		fullName += "." + field
	}
	if p.tok.Kind == lualex.ColonToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, fieldPos, err := p.expectName()
		if err != nil {
			return nil, err
		}
		target = &ast.IndexExpr{ast.E(fieldPos), target, &ast.StringExpr{ast.E(fieldPos), field}, true}
		fullName += ":" + field
		isMethod = true
	}
	fn, err := p.funcBody(fullName, isMethod)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionStmt{StmtPos: ast.S(pos), Target: target, IsMethod: isMethod, Func: fn}, nil
}

func (p *Parser) localStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	if ok, err := p.accept(lualex.FunctionToken); err != nil {
		return nil, err
	} else if ok {
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fn, err := p.funcBody(name, false)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionStmt{StmtPos: ast.S(pos), IsLocal: true, LocalName: name, Func: fn}, nil
	}

	var names []string
	var attribs []ast.Attrib
	for {
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		attrib := ast.AttribNone
		if ok, err := p.accept(lualex.LessToken); err != nil {
			return nil, err
		} else if ok {
			attribName, attribPos, err := p.expectName()
			if err != nil {
				return nil, err
			}
			switch attribName {
			case "const":
				attrib = ast.AttribConst
			case "close":
				attrib = ast.AttribClose
			default:
				return nil, p.errorf(attribPos, "PARSE-003", "unknown attribute %q", attribName)
			}
			if _, err := p.expect(lualex.GreaterToken, ">"); err != nil {
				return nil, err
			}
		}
		names = append(names, name)
		attribs = append(attribs, attrib)
		if ok, err := p.accept(lualex.CommaToken); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	var exprs []ast.Expr
	if ok, err := p.accept(lualex.AssignToken); err != nil {
		return nil, err
	} else if ok {
		exprs, err = p.explist()
		if err != nil {
			return nil, err
		}
	}
	return &ast.LocalStmt{ast.S(pos), names, attribs, exprs}, nil
}

func (p *Parser) returnStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	var exprs []ast.Expr
	if !blockEnd[p.tok.Kind] && p.tok.Kind != lualex.SemiToken {
		var err error
		exprs, err = p.explist()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.accept(lualex.SemiToken); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{ast.S(pos), exprs}, nil
}

// exprStmt parses either an assignment or a bare call used as a statement.
func (p *Parser) exprStmt() (ast.Stmt, error) {
	pos := p.tok.Position
	first, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lualex.AssignToken && p.tok.Kind != lualex.CommaToken {
		call, ok := first.(*ast.CallExpr)
		if !ok {
			return nil, p.errorf(pos, "PARSE-004", "syntax error (expression used as statement)")
		}
		return &ast.CallStmt{ast.S(pos), call}, nil
	}
	lhs := []ast.Expr{first}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.suffixedExpr()
		if err != nil {
			return nil, err
		}
		lhs = append(lhs, next)
	}
	if _, err := p.expect(lualex.AssignToken, "="); err != nil {
		return nil, err
	}
	rhs, err := p.explist()
	if err != nil {
		return nil, err
	}
	return &ast.AssignStmt{ast.S(pos), lhs, rhs}, nil
}

func (p *Parser) explist() ([]ast.Expr, error) {
	first, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expr{first}
	for p.tok.Kind == lualex.CommaToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	return exprs, nil
}

// binPriority follows zb.256lights.llc/pkg/internal/luacode's precedence
// table, which itself follows lparser.c's `priority` array.
type binPriority struct {
	left, right int
}

var binPriorities = map[lualex.TokenKind]binPriority{
	lualex.AddToken:          {10, 10},
	lualex.SubToken:          {10, 10},
	lualex.MulToken:          {11, 11},
	lualex.ModToken:          {11, 11},
	lualex.PowToken:          {14, 13},
	lualex.DivToken:          {11, 11},
	lualex.IntDivToken:       {11, 11},
	lualex.BitAndToken:       {6, 6},
	lualex.BitOrToken:        {4, 4},
	lualex.BitXorToken:       {5, 5},
	lualex.LShiftToken:       {7, 7},
	lualex.RShiftToken:       {7, 7},
	lualex.ConcatToken:       {9, 8},
	lualex.EqualToken:        {3, 3},
	lualex.LessToken:         {3, 3},
	lualex.LessEqualToken:    {3, 3},
	lualex.NotEqualToken:     {3, 3},
	lualex.GreaterToken:      {3, 3},
	lualex.GreaterEqualToken: {3, 3},
	lualex.AndToken:          {2, 2},
	lualex.OrToken:           {1, 1},
}

const unaryPriority = 12

var binOps = map[lualex.TokenKind]ast.BinOp{
	lualex.AddToken:          ast.OpAdd,
	lualex.SubToken:          ast.OpSub,
	lualex.MulToken:          ast.OpMul,
	lualex.DivToken:          ast.OpDiv,
	lualex.IntDivToken:       ast.OpIDiv,
	lualex.ModToken:          ast.OpMod,
	lualex.PowToken:          ast.OpPow,
	lualex.ConcatToken:       ast.OpConcat,
	lualex.EqualToken:        ast.OpEq,
	lualex.NotEqualToken:     ast.OpNotEq,
	lualex.LessToken:         ast.OpLess,
	lualex.LessEqualToken:    ast.OpLessEq,
	lualex.GreaterToken:      ast.OpGreater,
	lualex.GreaterEqualToken: ast.OpGreaterEq,
	lualex.AndToken:          ast.OpAnd,
	lualex.OrToken:           ast.OpOr,
	lualex.BitAndToken:       ast.OpBAnd,
	lualex.BitOrToken:        ast.OpBOr,
	lualex.BitXorToken:       ast.OpBXor,
	lualex.LShiftToken:       ast.OpShl,
	lualex.RShiftToken:       ast.OpShr,
}

// expr parses an expression, stopping at the first binary operator whose
// left priority is <= limit. This is the standard precedence-climbing
// algorithm used by lparser.c's subexpr.
func (p *Parser) expr(limit int) (ast.Expr, error) {
	var left ast.Expr
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.NotToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.expr(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{ast.E(pos), ast.OpNot, operand}
	case lualex.SubToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.expr(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{ast.E(pos), ast.OpNeg, operand}
	case lualex.LenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.expr(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{ast.E(pos), ast.OpLen, operand}
	case lualex.BitXorToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.expr(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{ast.E(pos), ast.OpBNot, operand}
	default:
		var err error
		left, err = p.simpleExpr()
		if err != nil {
			return nil, err
		}
	}

	for {
		prio, ok := binPriorities[p.tok.Kind]
		if !ok || prio.left <= limit {
			break
		}
		op := binOps[p.tok.Kind]
		opPos := p.tok.Position
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.expr(prio.right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{ast.E(opPos), op, left, right}
	}
	return left, nil
}

func (p *Parser) simpleExpr() (ast.Expr, error) {
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.NumeralToken:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return parseNumeral(tok)
	case lualex.StringToken:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringExpr{ast.E(pos), tok.Value}, nil
	case lualex.NilToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NilExpr{ast.E(pos)}, nil
	case lualex.TrueToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.TrueExpr{ast.E(pos)}, nil
	case lualex.FalseToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FalseExpr{ast.E(pos)}, nil
	case lualex.VarargToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.VarargExpr{ast.E(pos)}, nil
	case lualex.FunctionToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.funcBody("", false)
	case lualex.LBraceToken:
		return p.tableConstructor()
	default:
		return p.suffixedExpr()
	}
}

func parseNumeral(tok lualex.Token) (ast.Expr, error) {
	if !strings.ContainsAny(tok.Value, ".eEpP") || strings.HasPrefix(tok.Value, "0x") || strings.HasPrefix(tok.Value, "0X") {
		if i, err := lualex.ParseInt(tok.Value); err == nil {
			return &ast.IntExpr{ast.E(tok.Position), i}, nil
		}
	}
	f, err := lualex.ParseNumber(tok.Value)
	if err != nil {
		return nil, fmt.Errorf("%v: malformed number %q", tok.Position, tok.Value)
	}
	return &ast.FloatExpr{ast.E(tok.Position), f}, nil
}

// primaryExpr parses a name or a parenthesized expression.
func (p *Parser) primaryExpr() (ast.Expr, error) {
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.LParenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken, ")"); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{ast.E(pos), inner}, nil
	case lualex.IdentifierToken:
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &ast.NameExpr{ast.E(pos), name}, nil
	default:
		return nil, p.errorf(pos, "PARSE-005", "unexpected %v", p.tok)
	}
}

// suffixedExpr parses a primary expression followed by any number of
// `.name`, `[expr]`, `:name(args)`, or `(args)` suffixes.
func (p *Parser) suffixedExpr() (ast.Expr, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.tok.Position
		switch p.tok.Kind {
		case lualex.DotToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			field, fieldPos, err := p.expectName()
			if err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{ast.E(pos), e, &ast.StringExpr{ast.E(fieldPos), field}, true}
		case lualex.LBracketToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken, "]"); err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{ast.E(pos), e, key, false}
		case lualex.ColonToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			method, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.CallExpr{ast.E(pos), e, method, args}
		case lualex.LParenToken, lualex.StringToken, lualex.LBraceToken:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.CallExpr{ast.E(pos), e, "", args}
		default:
			return e, nil
		}
	}
}

// callArgs parses `(explist)`, a single string literal, or a single table
// constructor, per SPEC_FULL.md §4.1's call-as-expression grammar.
func (p *Parser) callArgs() ([]ast.Expr, error) {
	switch p.tok.Kind {
	case lualex.StringToken:
		pos := p.tok.Position
		s := p.tok.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []ast.Expr{&ast.StringExpr{ast.E(pos), s}}, nil
	case lualex.LBraceToken:
		t, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []ast.Expr{t}, nil
	case lualex.LParenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.accept(lualex.RParenToken); err != nil {
			return nil, err
		} else if ok {
			return nil, nil
		}
		args, err := p.explist()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken, ")"); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, p.errorf(p.tok.Position, "PARSE-006", "unexpected %v (want function arguments)", p.tok)
	}
}

func (p *Parser) tableConstructor() (ast.Expr, error) {
	pos := p.tok.Position
	if _, err := p.expect(lualex.LBraceToken, "{"); err != nil {
		return nil, err
	}
	var fields []ast.TableField
	for p.tok.Kind != lualex.RBraceToken {
		isRecordName := false
		if p.tok.Kind == lualex.IdentifierToken {
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			isRecordName = next.Kind == lualex.AssignToken
		}
		switch {
		case p.tok.Kind == lualex.LBracketToken:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken, "]"); err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.AssignToken, "="); err != nil {
				return nil, err
			}
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.TableField{Key: key, Value: val})
		case isRecordName:
			name, namePos, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.AssignToken, "="); err != nil {
				return nil, err
			}
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.TableField{Key: &ast.StringExpr{ast.E(namePos), name}, Value: val})
		default:
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.TableField{Value: val})
		}
		if p.tok.Kind == lualex.CommaToken || p.tok.Kind == lualex.SemiToken {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(lualex.RBraceToken, "}"); err != nil {
		return nil, err
	}
	return &ast.TableExpr{ast.E(pos), fields}, nil
}

// funcBody parses the `(params) block end` common to function statements,
// local functions, and function literals. name is used only for debug info.
func (p *Parser) funcBody(name string, isMethod bool) (*ast.FunctionExpr, error) {
	pos := p.tok.Position
	if _, err := p.expect(lualex.LParenToken, "("); err != nil {
		return nil, err
	}
	var params []string
	if isMethod {
		params = append(params, "self")
	}
	vararg := false
	if p.tok.Kind != lualex.RParenToken {
		for {
			if p.tok.Kind == lualex.VarargToken {
				if err := p.advance(); err != nil {
					return nil, err
				}
				vararg = true
				break
			}
			pname, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			params = append(params, pname)
			if ok, err := p.accept(lualex.CommaToken); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	if _, err := p.expect(lualex.RParenToken, ")"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken, "end"); err != nil {
		return nil, err
	}
	return &ast.FunctionExpr{
		ExprPos:  ast.E(pos),
		Params:   params,
		IsVararg: vararg,
		Body:     body,
		Name:     name,
	}, nil
}

