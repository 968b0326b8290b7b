// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGlobal(t *testing.T, s *State, name string) Value {
	t.Helper()
	return s.Globals.Get(name)
}

func TestArithmeticAndRelational(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		a = 1 + 2 * 3
		b = 7 // 2
		c = 7 % 2
		d = 2 ^ 10
		e = (1 < 2) and (2 <= 2) and not (3 < 2)
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(7), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "b"))
	assert.Equal(t, int64(1), mustGlobal(t, s, "c"))
	assert.Equal(t, float64(1024), mustGlobal(t, s, "d"))
	assert.Equal(t, true, mustGlobal(t, s, "e"))
}

func TestBitwiseOperators(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		a = 5 & 3
		b = 5 | 2
		c = 5 ~ 1
		d = 1 << 4
		e = ~0
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(7), mustGlobal(t, s, "b"))
	assert.Equal(t, int64(4), mustGlobal(t, s, "c"))
	assert.Equal(t, int64(16), mustGlobal(t, s, "d"))
	assert.Equal(t, int64(-1), mustGlobal(t, s, "e"))
}

func TestStringConcatAndLength(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		a = "foo" .. "bar"
		b = #"hello"
		c = 1 .. 2
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, "foobar", mustGlobal(t, s, "a"))
	assert.Equal(t, int64(5), mustGlobal(t, s, "b"))
	assert.Equal(t, "12", mustGlobal(t, s, "c"))
}

func TestTableBasics(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		t = {10, 20, 30, x = "y"}
		n = #t
		first = t[1]
		named = t.x
		t[4] = 40
		n2 = #t
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mustGlobal(t, s, "n"))
	assert.Equal(t, int64(10), mustGlobal(t, s, "first"))
	assert.Equal(t, "y", mustGlobal(t, s, "named"))
	assert.Equal(t, int64(4), mustGlobal(t, s, "n2"))
}

func TestMetamethodIndexAndNewindex(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		log = {}
		base = {greeting = "hi"}
		mt = {
			__index = base,
			__newindex = function(t, k, v) log[#log+1] = k end,
		}
		obj = setmetatable({}, mt)
		got = obj.greeting
		obj.newfield = 1
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, "hi", mustGlobal(t, s, "got"))
	log, ok := mustGlobal(t, s, "log").(*Table)
	require.True(t, ok)
	assert.Equal(t, int64(1), log.Len())
	assert.Equal(t, "newfield", log.Get(int64(1)))
}

func TestMetamethodEqLtCall(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		mt = {
			__eq = function(a, b) return a.v == b.v end,
			__lt = function(a, b) return a.v < b.v end,
			__call = function(self, x) return x * 2 end,
		}
		a = setmetatable({v = 1}, mt)
		b = setmetatable({v = 1}, mt)
		c = setmetatable({v = 2}, mt)
		eq = (a == b)
		lt = (a < c)
		called = a(21)
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, true, mustGlobal(t, s, "eq"))
	assert.Equal(t, true, mustGlobal(t, s, "lt"))
	assert.Equal(t, int64(42), mustGlobal(t, s, "called"))
}

func TestMetamethodToStringAndClose(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		closed = false
		mt = {
			__tostring = function(self) return "custom!" end,
			__close = function(self, err) closed = true end,
		}
		obj = setmetatable({}, mt)
		str = tostring(obj)
		do
			local x <close> = obj
		end
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, "custom!", mustGlobal(t, s, "str"))
	assert.Equal(t, true, mustGlobal(t, s, "closed"))
}

func TestClosuresAndUpvalues(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		function counter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
		c1 = counter()
		c2 = counter()
		a = c1()
		b = c1()
		c = c2()
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(2), mustGlobal(t, s, "b"))
	assert.Equal(t, int64(1), mustGlobal(t, s, "c"), "separate calls to counter() must not share an upvalue")
}

func TestControlFlowLoops(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		sum = 0
		for i = 1, 10 do
			sum = sum + i
		end

		product = 1
		i = 1
		while i <= 5 do
			product = product * i
			i = i + 1
		end

		count = 0
		repeat
			count = count + 1
		until count >= 3

		found = nil
		for i = 1, 10 do
			if i == 5 then
				found = i
				break
			end
		end
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(55), mustGlobal(t, s, "sum"))
	assert.Equal(t, int64(120), mustGlobal(t, s, "product"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "count"))
	assert.Equal(t, int64(5), mustGlobal(t, s, "found"))
}

func TestGotoSkipsLoopBody(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		skipped = 0
		for i = 1, 5 do
			if i % 2 == 0 then
				goto continue
			end
			skipped = skipped + 1
			::continue::
		end
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mustGlobal(t, s, "skipped"))
}

func TestGenericForOverPairsAndIpairs(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		t = {"a", "b", "c"}
		seen = 0
		for k, v in ipairs(t) do
			seen = seen + 1
		end

		keys = 0
		for k, v in pairs({x = 1, y = 2, z = 3}) do
			keys = keys + 1
		end
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mustGlobal(t, s, "seen"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "keys"))
}

func TestCoroutineBasics(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		co = coroutine.create(function(a, b)
			local c = coroutine.yield(a + b)
			return c * 2
		end)
		ok1, v1 = coroutine.resume(co, 1, 2)
		status1 = coroutine.status(co)
		ok2, v2 = coroutine.resume(co, 10)
		status2 = coroutine.status(co)
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, true, mustGlobal(t, s, "ok1"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "v1"))
	assert.Equal(t, "suspended", mustGlobal(t, s, "status1"))
	assert.Equal(t, true, mustGlobal(t, s, "ok2"))
	assert.Equal(t, int64(20), mustGlobal(t, s, "v2"))
	assert.Equal(t, "dead", mustGlobal(t, s, "status2"))
}

func TestCoroutineWrap(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		gen = coroutine.wrap(function()
			for i = 1, 3 do
				coroutine.yield(i)
			end
		end)
		a = gen()
		b = gen()
		c = gen()
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(2), mustGlobal(t, s, "b"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "c"))
}

func TestStringPatternFunctions(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		f1, f2 = string.find("hello world", "wor")
		m = string.match("key=value", "(%a+)=(%a+)")
		count = 0
		for word in string.gmatch("one two three", "%a+") do
			count = count + 1
		end
		g, n = string.gsub("hello world", "o", "0")
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(7), mustGlobal(t, s, "f1"))
	assert.Equal(t, int64(9), mustGlobal(t, s, "f2"))
	assert.Equal(t, "key", mustGlobal(t, s, "m"))
	assert.Equal(t, int64(3), mustGlobal(t, s, "count"))
	assert.Equal(t, "hell0 w0rld", mustGlobal(t, s, "g"))
	assert.Equal(t, int64(2), mustGlobal(t, s, "n"))
}

func TestErrorHandlingPcallAndArbitraryValues(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		ok1, msg1 = pcall(function() error("boom") end)

		ok2, errval2 = pcall(function() error({code = 42}) end)

		ok3, a, b = pcall(function() return 1, 2 end)

		handled = nil
		ok4 = xpcall(function() error("x") end, function(e) handled = e end)
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, false, mustGlobal(t, s, "ok1"))
	msg1, ok := mustGlobal(t, s, "msg1").(string)
	require.True(t, ok)
	assert.Contains(t, msg1, "boom")

	assert.Equal(t, false, mustGlobal(t, s, "ok2"))
	errval2, ok := mustGlobal(t, s, "errval2").(*Table)
	require.True(t, ok, "error() must preserve a non-string value across pcall unchanged")
	assert.Equal(t, int64(42), errval2.Get("code"))

	assert.Equal(t, true, mustGlobal(t, s, "ok3"))
	assert.Equal(t, int64(1), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(2), mustGlobal(t, s, "b"))

	assert.Equal(t, false, mustGlobal(t, s, "ok4"))
	handled, ok := mustGlobal(t, s, "handled").(string)
	require.True(t, ok)
	assert.Contains(t, handled, "x")
}

func TestRuntimeErrorPropagatesFromDoString(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`return nil + 1`, "test")
	assert.Error(t, err)
}

func TestVarargsAndMultipleReturn(t *testing.T) {
	s := NewState()
	_, err := s.DoString(`
		function sum(...)
			local total = 0
			local args = {...}
			for i = 1, select("#", ...) do
				total = total + args[i]
			end
			return total
		end
		a = sum(1, 2, 3, 4)

		function two() return 10, 20 end
		x, y = two()
	`, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(10), mustGlobal(t, s, "a"))
	assert.Equal(t, int64(10), mustGlobal(t, s, "x"))
	assert.Equal(t, int64(20), mustGlobal(t, s, "y"))
}
