// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"math"
	"strings"

	"lua54.dev/core/internal/ast"
)

// arith implements the arithmetic and bitwise binary operators of
// §3.4.1/§3.4.2, including string-to-number coercion and metamethod
// fallback.
func (s *State) arith(op ast.BinOp, a, b Value) (Value, error) {
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpMod, ast.OpIDiv:
		if ai, aok := a.(int64); aok {
			if bi, bok := b.(int64); bok {
				return intArith(op, ai, bi)
			}
		}
		if af, bf, ok := bothNumbers(a, b); ok {
			return floatArith(op, af, bf)
		}
	case ast.OpDiv, ast.OpPow:
		if af, bf, ok := bothNumbers(a, b); ok {
			return floatArith(op, af, bf)
		}
	case ast.OpBAnd, ast.OpBOr, ast.OpBXor, ast.OpShl, ast.OpShr:
		if ai, aok := ToInteger(a); aok {
			if bi, bok := ToInteger(b); bok {
				return bitwiseArith(op, ai, bi)
			}
		}
	}
	return s.arithMetamethod(op, a, b)
}

func bothNumbers(a, b Value) (float64, float64, bool) {
	af, aok := ToNumber(a)
	if !aok {
		return 0, 0, false
	}
	bf, bok := ToNumber(b)
	if !bok {
		return 0, 0, false
	}
	return af, bf, true
}

func intArith(op ast.BinOp, a, b int64) (Value, error) {
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpMod:
		if b == 0 {
			return nil, newRuntimeError("attempt to perform 'n%%0'")
		}
		return a - floorDiv(a, b)*b, nil
	case ast.OpIDiv:
		if b == 0 {
			return nil, newRuntimeError("attempt to perform 'n//0'")
		}
		return floorDiv(a, b), nil
	default:
		panic("unreachable")
	}
}

// floorDiv computes integer floor division, rounding toward negative
// infinity rather than Go's default truncation toward zero, per
// §3.4.1's definition of "//" for integers.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floatArith implements "+", "-", "*", "/", "%%", "//", and "^" for
// floats. Unlike [lua54.dev/core/internal/luacode]'s operators.go
// (which uses Go's math.Mod and truncating "%%" directly, both wrong
// for negative operands per §3.4.1 — its float modulo carries a
// self-flagged TODO), modulo here always uses the manual's own
// definition `a - floor(a/b)*b`, which is correct for both signs and
// matches the integer path's floor-division correction.
func floatArith(op ast.BinOp, a, b float64) (Value, error) {
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpDiv:
		return a / b, nil
	case ast.OpPow:
		return math.Pow(a, b), nil
	case ast.OpMod:
		r := a - math.Floor(a/b)*b
		return r, nil
	case ast.OpIDiv:
		return math.Floor(a / b), nil
	default:
		panic("unreachable")
	}
}

func bitwiseArith(op ast.BinOp, a, b int64) (Value, error) {
	switch op {
	case ast.OpBAnd:
		return a & b, nil
	case ast.OpBOr:
		return a | b, nil
	case ast.OpBXor:
		return a ^ b, nil
	case ast.OpShl:
		return shiftLeft(a, b), nil
	case ast.OpShr:
		return shiftLeft(a, -b), nil
	default:
		panic("unreachable")
	}
}

// shiftLeft implements "<<", following §3.4.2: shifts by 64 or more (in
// either direction) always yield 0, and a negative shift count shifts
// the other way.
func shiftLeft(a, n int64) int64 {
	switch {
	case n <= -64 || n >= 64:
		return 0
	case n >= 0:
		return int64(uint64(a) << uint(n))
	default:
		return int64(uint64(a) >> uint(-n))
	}
}

var arithMetaEvent = map[ast.BinOp]string{
	ast.OpAdd:  metaAdd,
	ast.OpSub:  metaSub,
	ast.OpMul:  metaMul,
	ast.OpDiv:  metaDiv,
	ast.OpMod:  metaMod,
	ast.OpPow:  metaPow,
	ast.OpIDiv: metaIDiv,
	ast.OpBAnd: metaBAnd,
	ast.OpBOr:  metaBOr,
	ast.OpBXor: metaBXor,
	ast.OpShl:  metaShl,
	ast.OpShr:  metaShr,
}

func (s *State) arithMetamethod(op ast.BinOp, a, b Value) (Value, error) {
	event := arithMetaEvent[op]
	mm := s.getMetamethod(a, event)
	if mm == nil {
		mm = s.getMetamethod(b, event)
	}
	if mm == nil {
		bad := a
		if _, ok := ToNumber(a); ok {
			bad = b
		}
		verb := "perform arithmetic on"
		if isBitwiseOp(op) {
			verb = "perform bitwise operation on"
		}
		return nil, newRuntimeError("attempt to %s a %s value", verb, TypeName(bad))
	}
	return s.call1(mm, a, b)
}

func isBitwiseOp(op ast.BinOp) bool {
	switch op {
	case ast.OpBAnd, ast.OpBOr, ast.OpBXor, ast.OpShl, ast.OpShr:
		return true
	default:
		return false
	}
}

// unaryMinus implements unary "-", per §3.4.1.
func (s *State) unaryMinus(v Value) (Value, error) {
	switch v := v.(type) {
	case int64:
		return -v, nil
	case float64:
		return -v, nil
	}
	if f, ok := ToNumber(v); ok {
		if _, isStr := v.(string); isStr {
			return -f, nil
		}
	}
	if mm := s.getMetamethod(v, metaUnm); mm != nil {
		return s.call1(mm, v, v)
	}
	return nil, newRuntimeError("attempt to perform arithmetic on a %s value", TypeName(v))
}

// bitwiseNot implements unary "~".
func (s *State) bitwiseNot(v Value) (Value, error) {
	if i, ok := ToInteger(v); ok {
		return ^i, nil
	}
	if mm := s.getMetamethod(v, metaBNot); mm != nil {
		return s.call1(mm, v, v)
	}
	return nil, newRuntimeError("attempt to perform bitwise operation on a %s value", TypeName(v))
}

// concat implements "..", per §3.4.6: numbers and strings concatenate
// directly, anything else falls back to `__concat`.
func (s *State) concat(a, b Value) (Value, error) {
	as, aok := concatOperand(a)
	bs, bok := concatOperand(b)
	if aok && bok {
		return as + bs, nil
	}
	mm := s.getMetamethod(a, metaConcat)
	if mm == nil {
		mm = s.getMetamethod(b, metaConcat)
	}
	if mm == nil {
		bad := a
		if aok {
			bad = b
		}
		return nil, newRuntimeError("attempt to concatenate a %s value", TypeName(bad))
	}
	return s.call1(mm, a, b)
}

func concatOperand(v Value) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case int64, float64:
		return ToStringValue(v), true
	default:
		return "", false
	}
}

// less implements "<", per §3.4.4.
func (s *State) less(a, b Value) (bool, error) {
	if ai, aok := a.(int64); aok {
		if bi, bok := b.(int64); bok {
			return ai < bi, nil
		}
	}
	if an, aok := numericOperand(a); aok {
		if bn, bok := numericOperand(b); bok {
			return an < bn, nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs) < 0, nil
		}
	}
	if mm := s.getMetamethod(a, metaLt); mm != nil {
		result, err := s.call1(mm, a, b)
		return Truthy(result), err
	}
	if mm := s.getMetamethod(b, metaLt); mm != nil {
		result, err := s.call1(mm, a, b)
		return Truthy(result), err
	}
	return false, newRuntimeError("attempt to compare %s with %s", TypeName(a), TypeName(b))
}

// lessEqual implements "<=".
func (s *State) lessEqual(a, b Value) (bool, error) {
	if ai, aok := a.(int64); aok {
		if bi, bok := b.(int64); bok {
			return ai <= bi, nil
		}
	}
	if an, aok := numericOperand(a); aok {
		if bn, bok := numericOperand(b); bok {
			return an <= bn, nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs) <= 0, nil
		}
	}
	if mm := s.getMetamethod(a, metaLe); mm != nil {
		result, err := s.call1(mm, a, b)
		return Truthy(result), err
	}
	if mm := s.getMetamethod(b, metaLe); mm != nil {
		result, err := s.call1(mm, a, b)
		return Truthy(result), err
	}
	return false, newRuntimeError("attempt to compare %s with %s", TypeName(a), TypeName(b))
}

// numericOperand reports a's numeric value without the string coercion
// that arithmetic gets: relational operators never coerce strings to
// numbers (§3.4.4).
func numericOperand(v Value) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
